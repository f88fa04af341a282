package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stackit/internal/config"
	"stackit/internal/db"
	"stackit/internal/router"
	"stackit/internal/services"
	"stackit/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	conn, err := db.New(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	hub := ws.NewHub(logger)
	defer hub.Close()

	karma := services.NewKarmaService(conn)
	votes := services.NewVoteService(conn, karma)
	accepts := services.NewAcceptService(conn, karma)
	mentions := services.NewMentionService(conn)
	notifier := services.NewNotificationService(conn, hub, logger)
	events := services.NewEventService(conn, karma, votes, accepts, mentions, notifier, logger)

	gin.SetMode(cfg.GinMode)
	r := gin.Default()
	router.RegisterRoutes(r, router.Deps{
		DB:        conn,
		Hub:       hub,
		Events:    events,
		Notifier:  notifier,
		JWTSecret: cfg.JWTSecret,
		Log:       logger,
	})

	logger.Info("stackit server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
