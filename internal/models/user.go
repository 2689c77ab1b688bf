package models

import "time"

// User carries the denormalized presence snapshot owned by the account
// subsystem. The presence store remains the source of truth for "who is
// online"; IsOnline and LastActiveAt are best-effort side writes that may lag.
type User struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Email        string     `gorm:"size:255;uniqueIndex" json:"email"`
	IsOnline     bool       `gorm:"not null;default:false" json:"is_online"`
	LastActiveAt *time.Time `json:"last_active_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
