package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/coursora/coursora-go-api/internal/middleware"
	"github.com/coursora/coursora-go-api/internal/service"
)

// RealtimeHandler wires the websocket upgrade for the presence connection.
type RealtimeHandler struct {
	service service.RealtimeService
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(service service.RealtimeService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			c.Locals("remote_addr", c.IP())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	remoteAddr, _ := conn.Locals("remote_addr").(string)
	correlation, _ := conn.Locals("correlation_id").(string)

	opts := service.RealtimeConnectionOptions{
		CorrelationID: correlation,
		RemoteAddr:    remoteAddr,
		Context:       baseCtx,
	}

	h.logger.Info().Str("remote_addr", remoteAddr).Msg("realtime client connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("remote_addr", remoteAddr).Msg("realtime client disconnected")
}
