package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/helpgrid/fieldtrack/backend/internal/aggregator"
	"github.com/helpgrid/fieldtrack/backend/internal/api"
	"github.com/helpgrid/fieldtrack/backend/internal/config"
	"github.com/helpgrid/fieldtrack/backend/internal/metrics"
	"github.com/helpgrid/fieldtrack/backend/internal/repository"
	"github.com/helpgrid/fieldtrack/backend/internal/tracking"
	"github.com/helpgrid/fieldtrack/backend/internal/websocket"
	"github.com/helpgrid/fieldtrack/backend/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting fieldtrack backend server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create repository (memory, local dynamodb or aws depending on REPO_MODE)
	repo, err := repository.New(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository")
	}

	// Create the location update pipeline
	tracker := tracking.NewTracker(repo, nil, cfg.StatusConfig(), log.Logger)

	// Create WebSocket hub for dashboard clients
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Create WebSocket handler
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	// Create map snapshot aggregator
	aggregatorService := aggregator.NewAggregator(repo, hub, cfg, log.Logger)
	go aggregatorService.Start(ctx)

	// Create REST handlers
	locationHandler := api.NewLocationHandler(tracker, log.Logger)
	mapHandler := api.NewMapHandler(repo, cfg, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())
	r.Get("/ws", wsHandler.ServeHTTP)

	// Tenant-scoped tracking API
	r.Route("/api/tenants/{tenantId}", func(r chi.Router) {
		r.Get("/agents", mapHandler.GetAgents)
		r.Get("/agents/nearest", mapHandler.GetNearest)
		r.Get("/agents/{agentId}", mapHandler.GetAgent)
		r.Post("/agents/{agentId}/location", locationHandler.UpdateLocation)
		r.Get("/agents/{agentId}/history", locationHandler.GetHistory)
		r.Post("/locations/batch", locationHandler.UpdateBatch)
		r.Get("/map/clusters", mapHandler.GetClusters)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the aggregator
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"fieldtrack-backend"}`)
}
