package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/coursora/coursora-go-api/internal/service"
	"github.com/coursora/coursora-go-api/internal/utils"
)

// AnalyticsHandler exposes the aggregation queries behind the admin dashboard
// charts.
type AnalyticsHandler struct {
	analytics service.AnalyticsService
	logger    zerolog.Logger
}

// NewAnalyticsHandler creates an analytics handler instance.
func NewAnalyticsHandler(analytics service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register binds the analytics routes under the provided router group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/trending-courses", h.trendingCourses)
	router.Get("/daily-active-users", h.dailyActiveUsers)
	router.Get("/course-views-by-category", h.courseViewsByCategory)
	router.Get("/review-trends", h.reviewTrends)
}

func (h *AnalyticsHandler) trendingCourses(c *fiber.Ctx) error {
	trending, err := h.analytics.TrendingCourses(requestContext(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch trending courses")
	}

	return utils.SendSuccess(c, "trending courses", trending)
}

func (h *AnalyticsHandler) dailyActiveUsers(c *fiber.Ctx) error {
	series, err := h.analytics.DailyActiveUsers(requestContext(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch daily active users")
	}

	return utils.SendSuccess(c, "daily active users", series)
}

func (h *AnalyticsHandler) courseViewsByCategory(c *fiber.Ctx) error {
	views, err := h.analytics.CourseViewsByCategory(requestContext(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch course views by category")
	}

	return utils.SendSuccess(c, "course views by category", views)
}

func (h *AnalyticsHandler) reviewTrends(c *fiber.Ctx) error {
	trends, err := h.analytics.ReviewTrends(requestContext(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch review trends")
	}

	return utils.SendSuccess(c, "review trends", trends)
}

// fail maps a timed-out aggregation to an explicit gateway timeout so the
// dashboard sees an error instead of hanging.
func (h *AnalyticsHandler) fail(c *fiber.Ctx, err error, message string) error {
	h.logger.Error().Err(err).Msg(message)

	if errors.Is(err, context.DeadlineExceeded) {
		return utils.SendError(c, fiber.StatusGatewayTimeout, "analytics query timed out")
	}

	return utils.SendError(c, fiber.StatusInternalServerError, message)
}
