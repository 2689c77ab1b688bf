package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	record Record
	timer  *time.Timer
}

// MemoryStore is the in-process fallback backing. It implements the same
// per-key TTL contract as the Redis store: a timer is armed for every write
// and deletes the record when the window elapses without a refresh.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-process presence store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// MarkOnline inserts or overwrites the user's record and restarts its expiry timer.
func (s *MemoryStore) MarkOnline(_ context.Context, record Record) error {
	record.LastActiveAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[record.UserID]; ok {
		existing.timer.Stop()
	}

	entry := &memoryEntry{record: record}
	entry.timer = time.AfterFunc(s.ttl, func() {
		s.expire(record.UserID, entry)
	})
	s.entries[record.UserID] = entry

	return nil
}

// Refresh has the same effect as MarkOnline.
func (s *MemoryStore) Refresh(ctx context.Context, record Record) error {
	return s.MarkOnline(ctx, record)
}

// MarkOffline deletes the user's record immediately.
func (s *MemoryStore) MarkOffline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[userID]; ok {
		entry.timer.Stop()
		delete(s.entries, userID)
	}

	return nil
}

// ListActive returns all non-expired records, most recently active first.
func (s *MemoryStore) ListActive(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]Record, 0, len(s.entries))
	for _, entry := range s.entries {
		records = append(records, entry.record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LastActiveAt.After(records[j].LastActiveAt)
	})

	return records, nil
}

// Count returns the number of non-expired records.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), nil
}

// Close stops all pending expiry timers.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, entry := range s.entries {
		entry.timer.Stop()
		delete(s.entries, userID)
	}
}

// expire removes the entry the timer was armed for. A refresh that raced the
// timer swaps in a new entry, so a stale firing must not delete it.
func (s *MemoryStore) expire(userID string, armed *memoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entries[userID]; ok && current == armed {
		delete(s.entries, userID)
	}
}
