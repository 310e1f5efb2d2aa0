package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskhive/taskhive-be/internal/api"
	"github.com/taskhive/taskhive-be/internal/auth"
	"github.com/taskhive/taskhive-be/internal/config"
	"github.com/taskhive/taskhive-be/internal/database"
	"github.com/taskhive/taskhive-be/internal/logger"
	"github.com/taskhive/taskhive-be/internal/mail"
	"github.com/taskhive/taskhive-be/internal/monitoring"
	"github.com/taskhive/taskhive-be/internal/services"
	"github.com/taskhive/taskhive-be/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set. Set a strong secret in production.")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	mailer := mail.NewSMTPSender(cfg)
	jwtManager := auth.NewManager(cfg.JWTSecret)
	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db, mailer, eventService)
	taskService := services.NewTaskService(db, eventService)
	categoryService := services.NewCategoryService(db, eventService)
	transactionService := services.NewTransactionService(db, eventService)

	// Set up and run the background reminder dispatcher
	dispatcher := monitoring.NewReminderDispatcher(taskService, mailer, eventService)
	if err := dispatcher.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reminder dispatcher")
	}

	// Set up and run the background stats broadcaster
	statBroadcaster := monitoring.NewStatBroadcaster(db, hub)
	go statBroadcaster.Run()

	// Set up router
	router := api.NewRouter(api.Deps{
		JWT:            jwtManager,
		Hub:            hub,
		Users:          userService,
		Tasks:          taskService,
		Categories:     categoryService,
		Transactions:   transactionService,
		Events:         eventService,
		FrontendOrigin: cfg.FrontendOrigin,
	})

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	dispatcher.Stop()
	statBroadcaster.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
