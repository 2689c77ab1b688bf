package presence

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coursora/coursora-go-api/internal/observability"
)

// FailoverStore serves presence from a shared primary store and degrades to
// an in-process fallback when the primary is unreachable. Writes go through
// to the fallback unconditionally so it always holds a usable view; reads
// prefer the primary. Degradation and recovery are logged once per transition
// rather than per call.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   zerolog.Logger
	degraded atomic.Bool
}

// NewFailoverStore wraps a primary store with an in-process fallback.
func NewFailoverStore(primary, fallback Store, logger zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "presence_failover").Logger(),
	}
}

// Degraded reports whether the store is currently serving from the fallback.
func (s *FailoverStore) Degraded() bool {
	return s.degraded.Load()
}

// MarkOnline writes to both backings; a primary failure degrades rather than errors.
func (s *FailoverStore) MarkOnline(ctx context.Context, record Record) error {
	if err := s.fallback.MarkOnline(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("user_id", record.UserID).Msg("fallback presence write failed")
	}

	if err := s.primary.MarkOnline(ctx, record); err != nil {
		s.noteDegraded(err)
		observability.PresenceFallbackWrites().Inc()
		return nil
	}

	s.noteRecovered()
	return nil
}

// Refresh writes to both backings; a primary failure degrades rather than errors.
func (s *FailoverStore) Refresh(ctx context.Context, record Record) error {
	return s.MarkOnline(ctx, record)
}

// MarkOffline removes the record from both backings.
func (s *FailoverStore) MarkOffline(ctx context.Context, userID string) error {
	if err := s.fallback.MarkOffline(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("fallback presence delete failed")
	}

	if err := s.primary.MarkOffline(ctx, userID); err != nil {
		s.noteDegraded(err)
		return nil
	}

	s.noteRecovered()
	return nil
}

// ListActive reads from the primary, degrading to the fallback on error.
func (s *FailoverStore) ListActive(ctx context.Context) ([]Record, error) {
	records, err := s.primary.ListActive(ctx)
	if err != nil {
		s.noteDegraded(err)
		return s.fallback.ListActive(ctx)
	}

	s.noteRecovered()
	return records, nil
}

// Count reads from the primary, degrading to the fallback on error.
func (s *FailoverStore) Count(ctx context.Context) (int, error) {
	count, err := s.primary.Count(ctx)
	if err != nil {
		s.noteDegraded(err)
		return s.fallback.Count(ctx)
	}

	s.noteRecovered()
	return count, nil
}

func (s *FailoverStore) noteDegraded(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn().Err(err).Msg("shared presence store unreachable, serving from in-process fallback")
	}
}

func (s *FailoverStore) noteRecovered() {
	if s.degraded.CompareAndSwap(true, false) {
		s.logger.Info().Msg("shared presence store recovered")
	}
}
