package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/coursora/coursora-go-api/internal/config"
	"github.com/coursora/coursora-go-api/internal/database"
	"github.com/coursora/coursora-go-api/internal/handler"
	"github.com/coursora/coursora-go-api/internal/middleware"
	"github.com/coursora/coursora-go-api/internal/models"
	"github.com/coursora/coursora-go-api/internal/presence"
	"github.com/coursora/coursora-go-api/internal/repository"
	"github.com/coursora/coursora-go-api/internal/router"
	"github.com/coursora/coursora-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Event{}, &models.User{}, &models.Course{}, &models.Category{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// The shared store is preferred so every API instance sees the same
	// online set; without Redis the in-process store carries the same TTL
	// contract alone.
	memoryStore := presence.NewMemoryStore(cfg.PresenceTTL)
	var presenceStore presence.Store = memoryStore

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, presence degraded to in-process store")
		redisClient = nil
	} else {
		defer redisClient.Close()
		redisStore := presence.NewRedisStore(redisClient, cfg.PresenceTTL, logger)
		presenceStore = presence.NewFailoverStore(redisStore, memoryStore, logger)
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, realtime relay limited to redis")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	eventRepo := repository.NewEventRepository(db)
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)

	trackingService := service.NewTrackingService(presenceStore, eventRepo, userRepo, logger)
	realtimeService := service.NewRealtimeService(trackingService, validate, redisClient, natsConn, "coursora", logger)
	analyticsService := service.NewAnalyticsService(eventRepo, courseRepo, redisClient, service.AnalyticsOptions{
		TrendingWindow: cfg.TrendingWindow,
		TrendingLimit:  cfg.TrendingLimit,
		WindowDays:     cfg.AnalyticsWindowDays,
		QueryTimeout:   cfg.AnalyticsQueryTimeout,
		CacheTTL:       cfg.AnalyticsCacheTTL,
	}, logger)

	realtimeHandler := handler.NewRealtimeHandler(realtimeService, logger)
	adminHandler := handler.NewAdminHandler(trackingService, cfg.RecentEventsLimit, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RealtimeHandler:  realtimeHandler,
		AdminHandler:     adminHandler,
		AnalyticsHandler: analyticsHandler,
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	serviceCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()
	realtimeService.Start(serviceCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopServices, memoryStore)
}

func waitForShutdown(app *fiber.App, stopServices context.CancelFunc, memoryStore *presence.MemoryStore) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopServices()
	memoryStore.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
