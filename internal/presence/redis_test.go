package presence

import (
	"context"
	"io"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, ttl, zerolog.New(io.Discard)), mini
}

func TestRedisStoreMarkOnlineIsIdempotent(t *testing.T) {
	store, _ := newTestRedisStore(t, 120*time.Second)

	ctx := context.Background()
	record := Record{UserID: "u1", Name: "Alice", IPAddress: "10.0.0.1"}
	require.NoError(t, store.MarkOnline(ctx, record))
	require.NoError(t, store.MarkOnline(ctx, record))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRedisStoreExpiresUnrefreshedRecords(t *testing.T) {
	store, mini := newTestRedisStore(t, 120*time.Second)

	ctx := context.Background()
	require.NoError(t, store.MarkOnline(ctx, Record{UserID: "u1", Name: "Alice"}))

	mini.FastForward(119 * time.Second)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count, "record must survive until the ttl elapses")

	mini.FastForward(2 * time.Second)
	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count, "record must be gone once the ttl has elapsed")
}

func TestRedisStoreHeartbeatsKeepUserAliveAcrossDisconnect(t *testing.T) {
	store, mini := newTestRedisStore(t, 120*time.Second)

	ctx := context.Background()
	require.NoError(t, store.MarkOnline(ctx, Record{UserID: "a", Name: "Ann"}))

	// Three heartbeats 10s apart, then the connection drops without an
	// explicit offline signal.
	for i := 0; i < 3; i++ {
		mini.FastForward(10 * time.Second)
		require.NoError(t, store.Refresh(ctx, Record{UserID: "a", Name: "Ann"}))
	}

	records, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "presence survives the disconnect itself")

	mini.FastForward(121 * time.Second)
	records, err = store.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, records, "presence expires once the ttl elapses after the last heartbeat")
}

func TestRedisStoreMarkOfflineRemovesWithinTTL(t *testing.T) {
	store, mini := newTestRedisStore(t, 120*time.Second)

	ctx := context.Background()
	require.NoError(t, store.MarkOnline(ctx, Record{UserID: "u1", Name: "Alice"}))

	mini.FastForward(5 * time.Second)
	require.NoError(t, store.MarkOffline(ctx, "u1"))

	records, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRedisStoreListActiveOrdersByRecency(t *testing.T) {
	store, _ := newTestRedisStore(t, 120*time.Second)

	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	current := base
	store.now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}

	ctx := context.Background()
	require.NoError(t, store.MarkOnline(ctx, Record{UserID: "u1", Name: "Alice"}))
	require.NoError(t, store.MarkOnline(ctx, Record{UserID: "u2", Name: "Bob"}))
	require.NoError(t, store.Refresh(ctx, Record{UserID: "u1", Name: "Alice"}))

	records, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "u1", records[0].UserID)
	require.Equal(t, "u2", records[1].UserID)
}
