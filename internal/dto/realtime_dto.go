package dto

import "encoding/json"

// Client -> server signal names.
const (
	SignalUserOnline   = "user_online"
	SignalUserOffline  = "user_offline"
	SignalUserActivity = "user_activity"
	SignalViewCourse   = "view_course"
	SignalSearch       = "search"
	SignalReviewSubmit = "review_submit"
)

// Server -> client broadcast names.
const (
	BroadcastUserStatusChange = "user_status_change"
	BroadcastNewEvent         = "new_event"
)

// SignalEnvelope frames every message on the realtime connection: a signal
// name plus a signal-specific payload.
type SignalEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// UserOnlinePayload identifies a user coming online.
type UserOnlinePayload struct {
	UserID    string `json:"userId" validate:"required"`
	UserName  string `json:"userName" validate:"required"`
	IPAddress string `json:"ipAddress"`
}

// UserOfflinePayload identifies a user going offline explicitly.
type UserOfflinePayload struct {
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName"`
}

// UserActivityPayload is a heartbeat; it refreshes presence and nothing else.
type UserActivityPayload struct {
	UserID    string `json:"userId" validate:"required"`
	UserName  string `json:"userName" validate:"required"`
	IPAddress string `json:"ipAddress"`
}

// ViewCoursePayload records one course detail view.
type ViewCoursePayload struct {
	UserID      string `json:"userId" validate:"required"`
	CourseID    string `json:"courseId" validate:"required"`
	CourseTitle string `json:"courseTitle"`
	IPAddress   string `json:"ipAddress"`
	UserAgent   string `json:"userAgent"`
}

// SearchPayload records one catalog search.
type SearchPayload struct {
	UserID    string `json:"userId" validate:"required"`
	Query     string `json:"query" validate:"required"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

// ReviewSubmitPayload records one submitted review.
type ReviewSubmitPayload struct {
	UserID    string `json:"userId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

// UserStatusChange is fanned out to every connected client, including the
// originator, whenever a user transitions online or offline.
type UserStatusChange struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsOnline bool   `json:"isOnline"`
}

// NewEventNotification carries a freshly logged activity to live dashboards.
type NewEventNotification struct {
	Type     string                 `json:"type"`
	UserID   string                 `json:"userId"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// BroadcastMessage is the server -> client envelope.
type BroadcastMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
