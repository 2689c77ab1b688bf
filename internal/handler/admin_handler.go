package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/coursora/coursora-go-api/internal/middleware"
	"github.com/coursora/coursora-go-api/internal/service"
	"github.com/coursora/coursora-go-api/internal/utils"
)

// maxRecentEventsLimit caps the client-supplied page size so a single feed
// request cannot pull the whole event log.
const maxRecentEventsLimit = 200

// AdminHandler exposes the presence and event-feed read surface consumed by
// the admin console.
type AdminHandler struct {
	tracking          service.TrackingService
	recentEventsLimit int
	logger            zerolog.Logger
}

// NewAdminHandler creates an admin handler instance.
func NewAdminHandler(tracking service.TrackingService, recentEventsLimit int, logger zerolog.Logger) *AdminHandler {
	if recentEventsLimit <= 0 {
		recentEventsLimit = 50
	}

	return &AdminHandler{
		tracking:          tracking,
		recentEventsLimit: recentEventsLimit,
		logger:            logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register binds the admin read routes under the provided router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/active-users", h.activeUsers)
	router.Get("/recent-events", h.recentEvents)
}

func (h *AdminHandler) activeUsers(c *fiber.Ctx) error {
	users, err := h.tracking.ActiveUsers(requestContext(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list active users")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch active users")
	}

	return utils.SendSuccess(c, "active users", fiber.Map{
		"count": len(users),
		"users": users,
	})
}

func (h *AdminHandler) recentEvents(c *fiber.Ctx) error {
	limit := h.recentEventsLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
		}
		if parsed > maxRecentEventsLimit {
			parsed = maxRecentEventsLimit
		}
		limit = parsed
	}

	events, err := h.tracking.RecentEvents(requestContext(c), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list recent events")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch recent events")
	}

	return utils.SendSuccess(c, "recent events", events)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
