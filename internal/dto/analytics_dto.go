package dto

import (
	"time"

	"github.com/coursora/coursora-go-api/internal/models"
	"github.com/coursora/coursora-go-api/internal/presence"
)

// ActiveUserResponse is one entry of the admin "who is online" list.
type ActiveUserResponse struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	LastActiveAt time.Time `json:"last_active_at"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// NewActiveUserResponse converts a presence record into its API shape.
func NewActiveUserResponse(record presence.Record) ActiveUserResponse {
	return ActiveUserResponse{
		UserID:       record.UserID,
		Name:         record.Name,
		LastActiveAt: record.LastActiveAt,
		IPAddress:    record.IPAddress,
	}
}

// EventResponse is one entry of the admin recent-events feed.
type EventResponse struct {
	ID        uint                   `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Metadata  map[string]interface{} `json:"metadata"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEventResponse converts an event row into its API shape.
func NewEventResponse(event models.Event) EventResponse {
	metadata := map[string]interface{}(event.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return EventResponse{
		ID:        event.ID,
		UserID:    event.UserID,
		Type:      event.Type,
		Metadata:  metadata,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		CreatedAt: event.CreatedAt,
	}
}

// TrendingCourseResponse is one row of the trending-courses ranking.
type TrendingCourseResponse struct {
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Views    int64  `json:"views"`
}

// DailyActiveUsersPoint is one day of the daily-active-users series.
type DailyActiveUsersPoint struct {
	Day   string `json:"day"`
	Users int64  `json:"users"`
}

// CategoryViewsResponse is one row of the per-category view ranking.
type CategoryViewsResponse struct {
	Category string `json:"category"`
	Views    int64  `json:"views"`
}

// ReviewTrendPoint is one day of the review-submission series.
type ReviewTrendPoint struct {
	Day     string `json:"day"`
	Reviews int64  `json:"reviews"`
}
