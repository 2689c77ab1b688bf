// Package presence tracks the set of currently online users. Liveness is
// inferred from recency: a record that is not refreshed within the TTL window
// expires on its own, so abrupt disconnects converge to offline without an
// explicit signal.
package presence

import (
	"context"
	"time"
)

// DefaultTTL is the inactivity window after which an unrefreshed record is
// considered offline. Heartbeats arrive every 30 seconds, leaving room for
// several missed beats before a user drops out of the active set.
const DefaultTTL = 120 * time.Second

// Record describes one online user. It lives only inside a Store and carries
// no identity beyond its key.
type Record struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	LastActiveAt time.Time `json:"last_active_at"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// Store is the ephemeral online-user registry. At most one record exists per
// user id; every mutation is atomic per key. MarkOnline and Refresh share the
// same effect: overwrite the record with a fresh timestamp and restart the
// TTL clock.
type Store interface {
	MarkOnline(ctx context.Context, record Record) error
	Refresh(ctx context.Context, record Record) error
	MarkOffline(ctx context.Context, userID string) error
	ListActive(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int, error)
}
