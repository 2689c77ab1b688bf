package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/coursora/coursora-go-api/internal/dto"
	"github.com/coursora/coursora-go-api/internal/models"
	"github.com/coursora/coursora-go-api/internal/presence"
	"github.com/coursora/coursora-go-api/internal/repository"
)

// EventEntry captures the details required to append one activity event.
type EventEntry struct {
	UserID    string
	Type      string
	Metadata  map[string]interface{}
	IPAddress string
	UserAgent string
}

// TrackingService owns presence transitions and the activity log. The
// presence write decides a transition's outcome; the snapshot update and the
// transition event append are best-effort side writes that never fail it.
type TrackingService interface {
	SetUserOnline(ctx context.Context, userID, userName, ipAddress string) error
	SetUserOffline(ctx context.Context, userID, userName string) error
	RecordActivity(ctx context.Context, userID, userName, ipAddress string) error
	LogEvent(ctx context.Context, entry EventEntry) error
	ActiveUsers(ctx context.Context) ([]dto.ActiveUserResponse, error)
	ActiveUserCount(ctx context.Context) (int, error)
	RecentEvents(ctx context.Context, limit int) ([]dto.EventResponse, error)
}

type trackingService struct {
	store     presence.Store
	events    repository.EventRepository
	users     repository.UserRepository
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTrackingService constructs the user tracking service.
func NewTrackingService(store presence.Store, events repository.EventRepository, users repository.UserRepository, logger zerolog.Logger) TrackingService {
	return &trackingService{
		store:     store,
		events:    events,
		users:     users,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "tracking_service").Logger(),
		now:       time.Now,
	}
}

func (s *trackingService) SetUserOnline(ctx context.Context, userID, userName, ipAddress string) error {
	record := presence.Record{
		UserID:    userID,
		Name:      s.cleanText(userName),
		IPAddress: ipAddress,
	}

	if err := s.store.MarkOnline(ctx, record); err != nil {
		return fmt.Errorf("failed to mark user online: %w", err)
	}

	s.updateSnapshot(ctx, userID, true)
	s.appendTransition(ctx, EventEntry{
		UserID:    userID,
		Type:      models.EventUserOnline,
		IPAddress: ipAddress,
	})

	return nil
}

func (s *trackingService) SetUserOffline(ctx context.Context, userID, userName string) error {
	if err := s.store.MarkOffline(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark user offline: %w", err)
	}

	s.updateSnapshot(ctx, userID, false)
	s.appendTransition(ctx, EventEntry{
		UserID: userID,
		Type:   models.EventUserOffline,
	})

	return nil
}

// RecordActivity refreshes the presence TTL. Heartbeats are presence-only:
// no event is appended and nothing is broadcast.
func (s *trackingService) RecordActivity(ctx context.Context, userID, userName, ipAddress string) error {
	record := presence.Record{
		UserID:    userID,
		Name:      s.cleanText(userName),
		IPAddress: ipAddress,
	}

	if err := s.store.Refresh(ctx, record); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}

	if err := s.users.TouchActivity(ctx, userID, s.now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to touch user activity snapshot")
	}

	return nil
}

func (s *trackingService) LogEvent(ctx context.Context, entry EventEntry) error {
	if !models.KnownEventType(entry.Type) {
		return fmt.Errorf("unknown event type %q", entry.Type)
	}

	event := models.Event{
		UserID:    entry.UserID,
		Type:      entry.Type,
		Metadata:  s.cleanMetadata(entry.Metadata),
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
	}

	if err := s.events.Create(ctx, &event); err != nil {
		return fmt.Errorf("failed to append activity event: %w", err)
	}

	return nil
}

func (s *trackingService) ActiveUsers(ctx context.Context) ([]dto.ActiveUserResponse, error) {
	records, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ActiveUserResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewActiveUserResponse(record))
	}

	return responses, nil
}

func (s *trackingService) ActiveUserCount(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *trackingService) RecentEvents(ctx context.Context, limit int) ([]dto.EventResponse, error) {
	events, err := s.events.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, dto.NewEventResponse(event))
	}

	return responses, nil
}

// appendTransition records an online/offline event on the audit log. Once the
// presence store has accepted the transition it must propagate, so a failed
// append is logged and dropped rather than returned.
func (s *trackingService) appendTransition(ctx context.Context, entry EventEntry) {
	if err := s.LogEvent(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("user_id", entry.UserID).Str("type", entry.Type).Msg("failed to append presence transition event")
	}
}

// updateSnapshot applies the denormalized flag on the user row. The presence
// store already holds the truth, so a failed snapshot write is logged and
// dropped instead of failing the transition.
func (s *trackingService) updateSnapshot(ctx context.Context, userID string, online bool) {
	var err error
	if online {
		err = s.users.SetOnline(ctx, userID, s.now().UTC())
	} else {
		err = s.users.SetOffline(ctx, userID)
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Bool("online", online).Msg("failed to update user presence snapshot")
	}
}

func (s *trackingService) cleanText(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *trackingService) cleanMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	cleaned := datatypes.JSONMap{}
	for key, value := range metadata {
		if text, ok := value.(string); ok {
			cleaned[key] = s.cleanText(text)
			continue
		}
		cleaned[key] = value
	}
	return cleaned
}
