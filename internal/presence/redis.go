package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const presenceKeyPrefix = "presence:user:"

// RedisStore keeps presence records as per-user keys with a server-side TTL,
// so the liveness contract holds even across API instances and restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed presence store with the given TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "presence_redis").Logger(),
		now:    time.Now,
	}
}

// MarkOnline inserts or overwrites the user's record and restarts its TTL.
func (s *RedisStore) MarkOnline(ctx context.Context, record Record) error {
	record.LastActiveAt = s.now().UTC()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	if err := s.client.Set(ctx, presenceKeyPrefix+record.UserID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write presence record: %w", err)
	}

	return nil
}

// Refresh has the same effect as MarkOnline; ongoing activity keeps extending
// the TTL window.
func (s *RedisStore) Refresh(ctx context.Context, record Record) error {
	return s.MarkOnline(ctx, record)
}

// MarkOffline deletes the user's record immediately, regardless of remaining TTL.
func (s *RedisStore) MarkOffline(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, presenceKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to delete presence record: %w", err)
	}

	return nil
}

// ListActive returns all non-expired records, most recently active first.
func (s *RedisStore) ListActive(ctx context.Context) ([]Record, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(keys))
	if len(keys) == 0 {
		return records, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch presence records: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}

		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Warn().Err(err).Str("key", keys[i]).Msg("skipping corrupt presence record")
			continue
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LastActiveAt.After(records[j].LastActiveAt)
	})

	return records, nil
}

// Count returns the number of non-expired records.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)

	for {
		batch, next, err := s.client.Scan(ctx, cursor, presenceKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan presence keys: %w", err)
		}

		for _, key := range batch {
			if strings.HasPrefix(key, presenceKeyPrefix) {
				keys = append(keys, key)
			}
		}

		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
