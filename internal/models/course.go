package models

import "time"

// Course is the catalog row owned by the CRUD layer. The realtime subsystem
// only reads it to resolve course -> category for view aggregation.
type Course struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	CategoryID string    `gorm:"size:64;index" json:"category_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Category groups courses for the catalog and the view-count aggregation.
type Category struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
