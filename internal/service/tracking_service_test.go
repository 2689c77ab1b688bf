package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coursora/coursora-go-api/internal/models"
	"github.com/coursora/coursora-go-api/internal/presence"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type memoryEventRepo struct {
	mu     sync.Mutex
	events []models.Event
}

func (m *memoryEventRepo) Create(_ context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event.ID = uint(len(m.events) + 1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryEventRepo) ListRecent(_ context.Context, limit int) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recent := append([]models.Event(nil), m.events...)
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func (m *memoryEventRepo) ListByTypeSince(_ context.Context, eventType string, since time.Time) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.Event
	for _, event := range m.events {
		if event.Type == eventType && !event.CreatedAt.Before(since) {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

func (m *memoryEventRepo) byType(eventType string) []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.Event
	for _, event := range m.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type failingEventRepo struct {
	*memoryEventRepo
}

func (f *failingEventRepo) Create(context.Context, *models.Event) error {
	return errors.New("event log unavailable")
}

type fakeUserRepo struct {
	mu         sync.Mutex
	online     map[string]bool
	lastActive map[string]time.Time
	fail       bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{online: map[string]bool{}, lastActive: map[string]time.Time{}}
}

func (f *fakeUserRepo) SetOnline(_ context.Context, userID string, at time.Time) error {
	if f.fail {
		return errors.New("database unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = true
	f.lastActive[userID] = at
	return nil
}

func (f *fakeUserRepo) SetOffline(_ context.Context, userID string) error {
	if f.fail {
		return errors.New("database unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = false
	return nil
}

func (f *fakeUserRepo) TouchActivity(_ context.Context, userID string, at time.Time) error {
	if f.fail {
		return errors.New("database unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastActive[userID] = at
	return nil
}

func newTrackingFixture(t *testing.T) (TrackingService, *presence.MemoryStore, *memoryEventRepo, *fakeUserRepo) {
	t.Helper()

	store := presence.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)
	events := &memoryEventRepo{}
	users := newFakeUserRepo()

	return NewTrackingService(store, events, users, testLogger()), store, events, users
}

func TestTrackingServiceSetUserOnline(t *testing.T) {
	svc, store, events, users := newTrackingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "u1", "Alice", "10.0.0.1"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	online := events.byType(models.EventUserOnline)
	require.Len(t, online, 1)
	require.Equal(t, "u1", online[0].UserID)
	require.Equal(t, "10.0.0.1", online[0].IPAddress)

	require.True(t, users.online["u1"])
}

func TestTrackingServiceTwoTabsCountOnce(t *testing.T) {
	svc, store, _, _ := newTrackingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "u1", "Alice", "10.0.0.1"))
	require.NoError(t, svc.SetUserOnline(ctx, "u1", "Alice", "10.0.0.2"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestTrackingServiceSetUserOffline(t *testing.T) {
	svc, store, events, users := newTrackingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "u1", "Alice", "10.0.0.1"))
	require.NoError(t, svc.SetUserOffline(ctx, "u1", "Alice"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	require.Len(t, events.byType(models.EventUserOffline), 1)
	require.False(t, users.online["u1"])
}

func TestTrackingServiceHeartbeatAppendsNoEvent(t *testing.T) {
	svc, store, events, _ := newTrackingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "u1", "Alice", "10.0.0.1"))
	before := len(events.byType(models.EventUserOnline))

	require.NoError(t, svc.RecordActivity(ctx, "u1", "Alice", "10.0.0.1"))
	require.NoError(t, svc.RecordActivity(ctx, "u1", "Alice", "10.0.0.1"))

	events.mu.Lock()
	total := len(events.events)
	events.mu.Unlock()
	require.Equal(t, before, total, "heartbeats must not reach the event log")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestTrackingServiceLogEventRejectsUnknownType(t *testing.T) {
	svc, _, _, _ := newTrackingFixture(t)

	err := svc.LogEvent(context.Background(), EventEntry{UserID: "u1", Type: "cursor_moved"})
	require.Error(t, err)
}

func TestTrackingServiceSanitizesDisplayNameAndMetadata(t *testing.T) {
	svc, store, events, _ := newTrackingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "u1", "<script>alert(1)</script>Alice", "10.0.0.1"))

	records, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Alice", records[0].Name)

	require.NoError(t, svc.LogEvent(ctx, EventEntry{
		UserID:   "u1",
		Type:     models.EventSearch,
		Metadata: map[string]interface{}{"query": "<b>golang</b> generics"},
	}))

	searches := events.byType(models.EventSearch)
	require.Len(t, searches, 1)
	require.Equal(t, "golang generics", searches[0].Metadata["query"])
}

func TestTrackingServiceSnapshotFailureDoesNotBlockPresence(t *testing.T) {
	svc, store, events, users := newTrackingFixture(t)
	users.fail = true
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "u1", "Alice", "10.0.0.1"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count, "presence write must land even when the snapshot write fails")
	require.Len(t, events.byType(models.EventUserOnline), 1)
}

func TestTrackingServiceTransitionSurvivesEventLogFailure(t *testing.T) {
	store := presence.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)
	svc := NewTrackingService(store, &failingEventRepo{memoryEventRepo: &memoryEventRepo{}}, newFakeUserRepo(), testLogger())
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "u1", "Alice", "10.0.0.1"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, svc.SetUserOffline(ctx, "u1", "Alice"))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTrackingServiceRecentEvents(t *testing.T) {
	svc, _, _, _ := newTrackingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.LogEvent(ctx, EventEntry{UserID: "u1", Type: models.EventPageView}))
	require.NoError(t, svc.LogEvent(ctx, EventEntry{UserID: "u2", Type: models.EventSearch, Metadata: map[string]interface{}{"query": "go"}}))

	recent, err := svc.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, models.EventSearch, recent[0].Type, "expected newest event first")
}
