package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coursora/coursora-go-api/internal/dto"
	"github.com/coursora/coursora-go-api/internal/service"
)

type stubTrackingService struct {
	users       []dto.ActiveUserResponse
	events      []dto.EventResponse
	err         error
	lastLimit   int
	activeCalls int
}

func (s *stubTrackingService) SetUserOnline(context.Context, string, string, string) error {
	return nil
}

func (s *stubTrackingService) SetUserOffline(context.Context, string, string) error { return nil }

func (s *stubTrackingService) RecordActivity(context.Context, string, string, string) error {
	return nil
}

func (s *stubTrackingService) LogEvent(context.Context, service.EventEntry) error { return nil }

func (s *stubTrackingService) ActiveUsers(context.Context) ([]dto.ActiveUserResponse, error) {
	s.activeCalls++
	return s.users, s.err
}

func (s *stubTrackingService) ActiveUserCount(context.Context) (int, error) {
	return len(s.users), s.err
}

func (s *stubTrackingService) RecentEvents(_ context.Context, limit int) ([]dto.EventResponse, error) {
	s.lastLimit = limit
	return s.events, s.err
}

func newAdminApp(stub *stubTrackingService) *fiber.App {
	app := fiber.New()
	NewAdminHandler(stub, 50, zerolog.New(io.Discard)).Register(app.Group("/admin"))
	return app
}

func TestAdminActiveUsersReturnsCountAndList(t *testing.T) {
	now := time.Now().UTC()
	stub := &stubTrackingService{users: []dto.ActiveUserResponse{
		{UserID: "u1", Name: "Alice", LastActiveAt: now},
		{UserID: "u2", Name: "Bob", LastActiveAt: now.Add(-time.Minute)},
	}}
	app := newAdminApp(stub)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/admin/active-users", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Count int                      `json:"count"`
			Users []dto.ActiveUserResponse `json:"users"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, 2, body.Data.Count)
	require.Len(t, body.Data.Users, 2)
}

func TestAdminRecentEventsUsesConfiguredDefaultLimit(t *testing.T) {
	stub := &stubTrackingService{}
	app := newAdminApp(stub)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/admin/recent-events", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 50, stub.lastLimit)
}

func TestAdminRecentEventsClampsOversizedLimit(t *testing.T) {
	stub := &stubTrackingService{}
	app := newAdminApp(stub)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/admin/recent-events?limit=10000000", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 200, stub.lastLimit)
}

func TestAdminRecentEventsRejectsBadLimit(t *testing.T) {
	app := newAdminApp(&stubTrackingService{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/admin/recent-events?limit=-3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
