package models

import (
	"time"

	"gorm.io/datatypes"
)

// Tracked event types. The set is closed: anything else is rejected before it
// reaches the log.
const (
	EventUserOnline   = "user_online"
	EventUserOffline  = "user_offline"
	EventViewCourse   = "view_course"
	EventSearch       = "search"
	EventReviewSubmit = "review_submit"
	EventPageView     = "page_view"
)

// KnownEventType reports whether the given type belongs to the tracked set.
func KnownEventType(eventType string) bool {
	switch eventType {
	case EventUserOnline, EventUserOffline, EventViewCourse, EventSearch, EventReviewSubmit, EventPageView:
		return true
	default:
		return false
	}
}

// Event is one durable record in the append-only activity log. Rows are never
// updated or deleted after insert; aggregation queries read them back in bulk.
type Event struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"size:64;not null;index:idx_events_user_type" json:"user_id"`
	Type      string            `gorm:"size:32;not null;index:idx_events_type_created,priority:1;index:idx_events_user_type" json:"type"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	IPAddress string            `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string            `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt time.Time         `gorm:"index:idx_events_type_created,priority:2" json:"created_at"`
}
