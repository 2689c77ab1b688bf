package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/coursora/coursora-go-api/internal/models"
)

// EventRepository persists the append-only activity log. There is no update
// or delete path: rows are written once and only ever read back for
// aggregation.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	ListRecent(ctx context.Context, limit int) ([]models.Event, error)
	ListByTypeSince(ctx context.Context, eventType string, since time.Time) ([]models.Event, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository constructs the event log repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) ListRecent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []models.Event
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) ListByTypeSince(ctx context.Context, eventType string, since time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("type = ?", eventType).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
