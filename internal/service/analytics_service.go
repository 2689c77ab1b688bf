package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/coursora/coursora-go-api/internal/dto"
	"github.com/coursora/coursora-go-api/internal/models"
	"github.com/coursora/coursora-go-api/internal/observability"
	"github.com/coursora/coursora-go-api/internal/repository"
)

const dayLabelFormat = "Jan 2"

// AnalyticsOptions tunes the aggregation windows and limits.
type AnalyticsOptions struct {
	TrendingWindow time.Duration
	TrendingLimit  int
	WindowDays     int
	QueryTimeout   time.Duration
	CacheTTL       time.Duration
}

func (o AnalyticsOptions) withDefaults() AnalyticsOptions {
	if o.TrendingWindow <= 0 {
		o.TrendingWindow = time.Hour
	}
	if o.TrendingLimit <= 0 {
		o.TrendingLimit = 5
	}
	if o.WindowDays <= 0 {
		o.WindowDays = 30
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 3 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Minute
	}
	return o
}

// AnalyticsService computes read-only aggregations over the event log for
// the admin dashboard. Queries run under a timeout sized for dashboard
// polling and tolerate an empty log.
type AnalyticsService interface {
	TrendingCourses(ctx context.Context) ([]dto.TrendingCourseResponse, error)
	DailyActiveUsers(ctx context.Context) ([]dto.DailyActiveUsersPoint, error)
	CourseViewsByCategory(ctx context.Context) ([]dto.CategoryViewsResponse, error)
	ReviewTrends(ctx context.Context) ([]dto.ReviewTrendPoint, error)
}

type analyticsService struct {
	events  repository.EventRepository
	courses repository.CourseRepository
	cache   *redis.Client
	opts    AnalyticsOptions
	logger  zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewAnalyticsService constructs the analytics aggregation service.
func NewAnalyticsService(events repository.EventRepository, courses repository.CourseRepository, cache *redis.Client, opts AnalyticsOptions, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		events:  events,
		courses: courses,
		cache:   cache,
		opts:    opts.withDefaults(),
		logger:  logger.With().Str("component", "analytics_service").Logger(),
		tracer:  otel.Tracer("github.com/coursora/coursora-go-api/internal/service/analytics"),
		now:     time.Now,
	}
}

func (s *analyticsService) TrendingCourses(ctx context.Context) ([]dto.TrendingCourseResponse, error) {
	var result []dto.TrendingCourseResponse
	err := s.run(ctx, "trending_courses", "analytics:trending", &result, func(ctx context.Context) (interface{}, error) {
		since := s.now().Add(-s.opts.TrendingWindow)
		events, err := s.events.ListByTypeSince(ctx, models.EventViewCourse, since)
		if err != nil {
			return nil, err
		}

		type tally struct {
			courseID string
			title    string
			count    int64
			latest   time.Time
		}

		tallies := map[string]*tally{}
		for _, event := range events {
			courseID := metadataString(event.Metadata, "courseId")
			if courseID == "" {
				continue
			}

			entry, ok := tallies[courseID]
			if !ok {
				entry = &tally{courseID: courseID, title: metadataString(event.Metadata, "courseTitle")}
				tallies[courseID] = entry
			}

			entry.count++
			if event.CreatedAt.After(entry.latest) {
				entry.latest = event.CreatedAt
			}
		}

		ranked := make([]*tally, 0, len(tallies))
		for _, entry := range tallies {
			ranked = append(ranked, entry)
		}

		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].count != ranked[j].count {
				return ranked[i].count > ranked[j].count
			}
			return ranked[i].latest.After(ranked[j].latest)
		})

		if len(ranked) > s.opts.TrendingLimit {
			ranked = ranked[:s.opts.TrendingLimit]
		}

		trending := make([]dto.TrendingCourseResponse, 0, len(ranked))
		for _, entry := range ranked {
			trending = append(trending, dto.TrendingCourseResponse{
				CourseID: entry.courseID,
				Title:    entry.title,
				Views:    entry.count,
			})
		}

		return trending, nil
	})
	return result, err
}

func (s *analyticsService) DailyActiveUsers(ctx context.Context) ([]dto.DailyActiveUsersPoint, error) {
	var result []dto.DailyActiveUsersPoint
	err := s.run(ctx, "daily_active_users", "analytics:dau", &result, func(ctx context.Context) (interface{}, error) {
		since := s.now().AddDate(0, 0, -s.opts.WindowDays)
		events, err := s.events.ListByTypeSince(ctx, models.EventUserOnline, since)
		if err != nil {
			return nil, err
		}

		points, err := groupByDay(events)
		if err != nil {
			return nil, err
		}

		series := make([]dto.DailyActiveUsersPoint, 0, len(points))
		for _, point := range points {
			series = append(series, dto.DailyActiveUsersPoint{Day: point.label, Users: point.count})
		}

		return series, nil
	})
	return result, err
}

func (s *analyticsService) CourseViewsByCategory(ctx context.Context) ([]dto.CategoryViewsResponse, error) {
	var result []dto.CategoryViewsResponse
	err := s.run(ctx, "course_views_by_category", "analytics:category_views", &result, func(ctx context.Context) (interface{}, error) {
		since := s.now().AddDate(0, 0, -s.opts.WindowDays)
		events, err := s.events.ListByTypeSince(ctx, models.EventViewCourse, since)
		if err != nil {
			return nil, err
		}

		categories, err := s.courses.CategoryNamesByCourse(ctx)
		if err != nil {
			return nil, err
		}

		counts := map[string]int64{}
		for _, event := range events {
			courseID := metadataString(event.Metadata, "courseId")
			category, ok := categories[courseID]
			if !ok {
				// View of a course the catalog no longer knows about.
				continue
			}
			counts[category]++
		}

		views := make([]dto.CategoryViewsResponse, 0, len(counts))
		for category, count := range counts {
			views = append(views, dto.CategoryViewsResponse{Category: category, Views: count})
		}

		sort.Slice(views, func(i, j int) bool {
			if views[i].Views != views[j].Views {
				return views[i].Views > views[j].Views
			}
			return views[i].Category < views[j].Category
		})

		return views, nil
	})
	return result, err
}

func (s *analyticsService) ReviewTrends(ctx context.Context) ([]dto.ReviewTrendPoint, error) {
	var result []dto.ReviewTrendPoint
	err := s.run(ctx, "review_trends", "analytics:review_trends", &result, func(ctx context.Context) (interface{}, error) {
		since := s.now().AddDate(0, 0, -s.opts.WindowDays)
		events, err := s.events.ListByTypeSince(ctx, models.EventReviewSubmit, since)
		if err != nil {
			return nil, err
		}

		points, err := groupByDay(events)
		if err != nil {
			return nil, err
		}

		series := make([]dto.ReviewTrendPoint, 0, len(points))
		for _, point := range points {
			series = append(series, dto.ReviewTrendPoint{Day: point.label, Reviews: point.count})
		}

		return series, nil
	})
	return result, err
}

// run wraps one aggregation with the query timeout, a trace span, latency
// observation and best-effort Redis result caching.
func (s *analyticsService) run(ctx context.Context, name, cacheKey string, dest interface{}, compute func(ctx context.Context) (interface{}, error)) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "analytics."+name)
	span.SetAttributes(attribute.String("analytics.cache_key", cacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			if unmarshalErr := json.Unmarshal([]byte(cached), dest); unmarshalErr == nil {
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				return nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Str("query", name).Msg("failed to read analytics cache")
		}
	}

	timer := prometheus.NewTimer(observability.AnalyticsQueryLatency().WithLabelValues(name))
	result, err := compute(ctx)
	timer.ObserveDuration()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+"_failed")
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, payload, s.opts.CacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Str("query", name).Msg("failed to store analytics cache")
		}
	}

	return nil
}

type dayPoint struct {
	day   string
	label string
	count int64
}

// groupByDay buckets events by UTC calendar day, ordered chronologically,
// with chart-friendly labels.
func groupByDay(events []models.Event) ([]dayPoint, error) {
	buckets := map[string]int64{}
	for _, event := range events {
		buckets[event.CreatedAt.UTC().Format("2006-01-02")]++
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]dayPoint, 0, len(days))
	for _, day := range days {
		parsed, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, err
		}
		points = append(points, dayPoint{day: day, label: parsed.Format(dayLabelFormat), count: buckets[day]})
	}

	return points, nil
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if value, ok := metadata[key].(string); ok {
		return value
	}
	return ""
}
