package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/coursora/coursora-go-api/internal/dto"
	"github.com/coursora/coursora-go-api/internal/models"
	"github.com/coursora/coursora-go-api/internal/observability"
)

const (
	realtimeSendBufferSize = 32
	realtimeKeepalive      = 30 * time.Second
)

// RealtimeConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeConnectionOptions struct {
	CorrelationID string
	RemoteAddr    string
	Context       context.Context
}

// RealtimeService manages persistent client connections: it routes inbound
// presence and activity signals to the tracking layer and fans out
// notifications to every connected client.
type RealtimeService interface {
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
	Start(ctx context.Context)
}

type realtimeService struct {
	tracking    TrackingService
	validator   *validator.Validate
	redis       *redis.Client
	redisTopic  string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	hub         *connectionHub
	nodeID      string
}

// connectionHub keeps the set of live clients and handles fan-out. Each
// client owns a bounded send queue so one stalled receiver cannot stall the
// hub; messages for a full queue are dropped and counted.
type connectionHub struct {
	mu      sync.RWMutex
	clients map[*realtimeClient]struct{}
	log     zerolog.Logger
}

type realtimeClient struct {
	conn       *websocket.Conn
	send       chan dto.BroadcastMessage
	service    *realtimeService
	closed     chan struct{}
	once       sync.Once
	baseCtx    context.Context
	remoteAddr string

	// identity is set by the first user_online signal and guarded by mu;
	// the reader goroutine writes it, the close path reads it.
	mu          sync.Mutex
	userID      string
	userName    string
	wentOffline bool
}

type relayEvent struct {
	Source  string               `json:"source"`
	Message dto.BroadcastMessage `json:"message"`
	SentAt  time.Time            `json:"sent_at"`
}

// NewRealtimeService creates the websocket hub. The Redis client and NATS
// connection are optional; when present, broadcasts are relayed across API
// instances.
func NewRealtimeService(tracking TrackingService, validate *validator.Validate, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) RealtimeService {
	hub := &connectionHub{
		clients: make(map[*realtimeClient]struct{}),
		log:     logger.With().Str("component", "connection_hub").Logger(),
	}

	redisTopic := ""
	natsSubject := ""
	if channelBase != "" {
		redisTopic = channelBase + ":realtime"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".realtime"
	}

	return &realtimeService{
		tracking:    tracking,
		validator:   validate,
		redis:       redisClient,
		redisTopic:  redisTopic,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "realtime_service").Logger(),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

// Start launches the cross-instance relay consumers.
func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisTopic != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

// ServeConnection runs the read loop for one client and blocks until the
// connection terminates.
func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &realtimeClient{
		conn:       conn,
		send:       make(chan dto.BroadcastMessage, realtimeSendBufferSize),
		service:    s,
		closed:     make(chan struct{}),
		baseCtx:    baseCtx,
		remoteAddr: opts.RemoteAddr,
	}

	s.hub.register(client)
	observability.RealtimeConnections().Inc()

	go client.writer()
	client.reader()
}

// processSignal routes one parsed signal. Every failure is logged and
// swallowed: presence or log trouble must never tear down the connection.
func (s *realtimeService) processSignal(ctx context.Context, client *realtimeClient, envelope dto.SignalEnvelope) {
	outcome := "ok"
	if err := s.dispatch(ctx, client, envelope); err != nil {
		outcome = "error"
		s.logger.Warn().Err(err).Str("signal", envelope.Event).Msg("failed to process realtime signal")
	}
	observability.RealtimeSignals().WithLabelValues(envelope.Event, outcome).Inc()
}

func (s *realtimeService) dispatch(ctx context.Context, client *realtimeClient, envelope dto.SignalEnvelope) error {
	switch envelope.Event {
	case dto.SignalUserOnline:
		return s.handleUserOnline(ctx, client, envelope.Data)
	case dto.SignalUserOffline:
		return s.handleUserOffline(ctx, client, envelope.Data)
	case dto.SignalUserActivity:
		return s.handleUserActivity(ctx, client, envelope.Data)
	case dto.SignalViewCourse:
		return s.handleViewCourse(ctx, envelope.Data)
	case dto.SignalSearch:
		return s.handleSearch(ctx, envelope.Data)
	case dto.SignalReviewSubmit:
		return s.handleReviewSubmit(ctx, envelope.Data)
	default:
		return fmt.Errorf("unknown signal %q", envelope.Event)
	}
}

func (s *realtimeService) handleUserOnline(ctx context.Context, client *realtimeClient, data json.RawMessage) error {
	var payload dto.UserOnlinePayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	if payload.IPAddress == "" {
		payload.IPAddress = client.remoteAddr
	}

	client.identify(payload.UserID, payload.UserName)

	if err := s.tracking.SetUserOnline(ctx, payload.UserID, payload.UserName, payload.IPAddress); err != nil {
		return err
	}

	s.broadcast(dto.BroadcastMessage{
		Event: dto.BroadcastUserStatusChange,
		Data:  dto.UserStatusChange{UserID: payload.UserID, UserName: payload.UserName, IsOnline: true},
	}, true)

	return nil
}

func (s *realtimeService) handleUserOffline(ctx context.Context, client *realtimeClient, data json.RawMessage) error {
	var payload dto.UserOfflinePayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	client.markWentOffline()

	if err := s.tracking.SetUserOffline(ctx, payload.UserID, payload.UserName); err != nil {
		return err
	}

	s.broadcast(dto.BroadcastMessage{
		Event: dto.BroadcastUserStatusChange,
		Data:  dto.UserStatusChange{UserID: payload.UserID, UserName: payload.UserName, IsOnline: false},
	}, true)

	return nil
}

// handleUserActivity refreshes the TTL and nothing more: heartbeats append no
// event and trigger no broadcast.
func (s *realtimeService) handleUserActivity(ctx context.Context, client *realtimeClient, data json.RawMessage) error {
	var payload dto.UserActivityPayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	if payload.IPAddress == "" {
		payload.IPAddress = client.remoteAddr
	}

	return s.tracking.RecordActivity(ctx, payload.UserID, payload.UserName, payload.IPAddress)
}

func (s *realtimeService) handleViewCourse(ctx context.Context, data json.RawMessage) error {
	var payload dto.ViewCoursePayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	metadata := map[string]interface{}{
		"courseId":    payload.CourseID,
		"courseTitle": payload.CourseTitle,
	}

	return s.logAndAnnounce(ctx, EventEntry{
		UserID:    payload.UserID,
		Type:      models.EventViewCourse,
		Metadata:  metadata,
		IPAddress: payload.IPAddress,
		UserAgent: payload.UserAgent,
	})
}

func (s *realtimeService) handleSearch(ctx context.Context, data json.RawMessage) error {
	var payload dto.SearchPayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	return s.logAndAnnounce(ctx, EventEntry{
		UserID:    payload.UserID,
		Type:      models.EventSearch,
		Metadata:  map[string]interface{}{"query": payload.Query},
		IPAddress: payload.IPAddress,
		UserAgent: payload.UserAgent,
	})
}

func (s *realtimeService) handleReviewSubmit(ctx context.Context, data json.RawMessage) error {
	var payload dto.ReviewSubmitPayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	metadata := map[string]interface{}{
		"courseId": payload.CourseID,
		"rating":   payload.Rating,
	}

	return s.logAndAnnounce(ctx, EventEntry{
		UserID:    payload.UserID,
		Type:      models.EventReviewSubmit,
		Metadata:  metadata,
		IPAddress: payload.IPAddress,
		UserAgent: payload.UserAgent,
	})
}

func (s *realtimeService) logAndAnnounce(ctx context.Context, entry EventEntry) error {
	if err := s.tracking.LogEvent(ctx, entry); err != nil {
		return err
	}

	s.broadcast(dto.BroadcastMessage{
		Event: dto.BroadcastNewEvent,
		Data: dto.NewEventNotification{
			Type:     entry.Type,
			UserID:   entry.UserID,
			Metadata: entry.Metadata,
		},
	}, true)

	return nil
}

func (s *realtimeService) decode(data json.RawMessage, payload interface{}) error {
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("malformed signal payload: %w", err)
	}
	if err := s.validator.Struct(payload); err != nil {
		return fmt.Errorf("invalid signal payload: %w", err)
	}
	return nil
}

// broadcast fans the message out to every connected client, the originator
// included. When relay is set the message is also published for other API
// instances.
func (s *realtimeService) broadcast(message dto.BroadcastMessage, relay bool) {
	s.hub.broadcast(message)

	if relay {
		if err := s.publish(message); err != nil {
			s.logger.Warn().Err(err).Str("event", message.Event).Msg("failed to relay realtime event")
		}
	}
}

func (s *realtimeService) publish(message dto.BroadcastMessage) error {
	if (s.redis == nil || s.redisTopic == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(relayEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisTopic != "" {
		if err := s.redis.Publish(context.Background(), s.redisTopic, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *realtimeService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisTopic)
	defer func() {
		_ = pubsub.Close()
	}()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleRelay([]byte(msg.Payload))
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "coursora-realtime", func(msg *nats.Msg) {
		s.handleRelay(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (s *realtimeService) handleRelay(data []byte) {
	var event relayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid relayed realtime event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broadcast(event.Message, false)
}

func (h *connectionHub) register(client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	h.log.Debug().Int("clients", len(h.clients)).Msg("realtime client connected")
}

func (h *connectionHub) unregister(client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client)
	h.log.Debug().Int("clients", len(h.clients)).Msg("realtime client disconnected")
}

func (h *connectionHub) broadcast(message dto.BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			observability.RealtimeDroppedBroadcasts().Inc()
			h.log.Warn().Str("event", message.Event).Msg("dropping broadcast for slow client")
		}
	}
}

func (c *realtimeClient) identify(userID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.userName = userName
	c.wentOffline = false
}

func (c *realtimeClient) markWentOffline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wentOffline = true
}

func (c *realtimeClient) reader() {
	defer c.close()

	for {
		var envelope dto.SignalEnvelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			c.service.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		c.service.processSignal(c.baseCtx, c, envelope)
	}
}

func (c *realtimeClient) writer() {
	defer c.close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-time.After(realtimeKeepalive):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// close tears the connection down. Presence is deliberately left to the TTL
// when no explicit offline signal arrived: a transient network blip should
// not flip the user's status back and forth and spam broadcasts.
func (c *realtimeClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		observability.RealtimeConnections().Dec()
		_ = c.conn.Close()

		c.mu.Lock()
		userID := c.userID
		explicit := c.wentOffline
		c.mu.Unlock()

		if userID != "" && !explicit {
			c.service.logger.Debug().Str("user_id", userID).Msg("connection dropped without offline signal, leaving presence to ttl")
		}
	})
}
