// Package heartbeat implements the client side of the presence protocol: a
// periodic user_activity signal that keeps the server-side presence record
// alive, plus one-shot activity trackers.
package heartbeat

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval matches the server's expectation of one heartbeat well
// inside the presence TTL; at 30s against a 120s TTL a single missed beat
// never flips the user offline.
const DefaultInterval = 30 * time.Second

// Conn is the write side of a realtime connection. *websocket.Conn from
// gorilla/websocket satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Identity describes the user the emitter heartbeats for.
type Identity struct {
	UserID    string
	UserName  string
	IPAddress string
	UserAgent string
}

// Emitter periodically refreshes the user's presence over an open realtime
// connection. At most one interval timer runs per emitter: starting again
// replaces the previous timer instead of stacking a second one.
type Emitter struct {
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	conn     Conn
	identity Identity
	stop     chan struct{}
	wg       sync.WaitGroup

	// writeMu serializes writes; gorilla connections do not allow
	// concurrent writers, and heartbeats race one-shot trackers.
	writeMu sync.Mutex
}

// NewEmitter creates a heartbeat emitter with the given interval.
func NewEmitter(interval time.Duration, logger zerolog.Logger) *Emitter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Emitter{
		interval: interval,
		logger:   logger.With().Str("component", "heartbeat_emitter").Logger(),
	}
}

// Start binds the emitter to a connection and identity and begins the
// heartbeat loop. A previous loop, if any, is stopped first.
func (e *Emitter) Start(conn Conn, identity Identity) {
	e.mu.Lock()
	e.stopLocked()
	e.conn = conn
	e.identity = identity
	stop := make(chan struct{})
	e.stop = stop
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(stop)
}

// Stop cancels the heartbeat loop and waits for it to exit. Safe to call
// repeatedly and when no loop is running.
func (e *Emitter) Stop() {
	e.mu.Lock()
	e.stopLocked()
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Emitter) stopLocked() {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

func (e *Emitter) loop(stop chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.beat(); err != nil {
				e.logger.Debug().Err(err).Msg("heartbeat send failed")
			}
		case <-stop:
			return
		}
	}
}

func (e *Emitter) beat() error {
	e.mu.Lock()
	conn := e.conn
	identity := e.identity
	e.mu.Unlock()

	return e.send(conn, "user_activity", map[string]interface{}{
		"userId":    identity.UserID,
		"userName":  identity.UserName,
		"ipAddress": identity.IPAddress,
	})
}

// TrackCourseView emits a one-shot view_course signal, independent of the
// interval timer.
func (e *Emitter) TrackCourseView(courseID, courseTitle string) error {
	conn, identity := e.snapshot()
	return e.send(conn, "view_course", map[string]interface{}{
		"userId":      identity.UserID,
		"courseId":    courseID,
		"courseTitle": courseTitle,
		"ipAddress":   identity.IPAddress,
		"userAgent":   identity.UserAgent,
	})
}

// TrackSearch emits a one-shot search signal.
func (e *Emitter) TrackSearch(query string) error {
	conn, identity := e.snapshot()
	return e.send(conn, "search", map[string]interface{}{
		"userId":    identity.UserID,
		"query":     query,
		"ipAddress": identity.IPAddress,
		"userAgent": identity.UserAgent,
	})
}

// TrackReviewSubmission emits a one-shot review_submit signal.
func (e *Emitter) TrackReviewSubmission(courseID string, rating int) error {
	conn, identity := e.snapshot()
	return e.send(conn, "review_submit", map[string]interface{}{
		"userId":    identity.UserID,
		"courseId":  courseID,
		"rating":    rating,
		"ipAddress": identity.IPAddress,
		"userAgent": identity.UserAgent,
	})
}

func (e *Emitter) snapshot() (Conn, Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn, e.identity
}

func (e *Emitter) send(conn Conn, event string, data map[string]interface{}) error {
	if conn == nil {
		return fmt.Errorf("emitter not bound to a connection")
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return conn.WriteJSON(envelope{Event: event, Data: data})
}
