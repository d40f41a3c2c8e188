package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/aggregator"
	"github.com/dennisdiepolder/callbridge/internal/alerts"
	"github.com/dennisdiepolder/callbridge/internal/api"
	"github.com/dennisdiepolder/callbridge/internal/config"
	"github.com/dennisdiepolder/callbridge/internal/matching"
	"github.com/dennisdiepolder/callbridge/internal/metrics"
	"github.com/dennisdiepolder/callbridge/internal/storage"
	"github.com/dennisdiepolder/callbridge/internal/websocket"
	"github.com/dennisdiepolder/callbridge/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("selection", cfg.AgentSelection).
		Str("promotion", cfg.PromotionMode).
		Str("log_level", cfg.LogLevel).
		Msg("starting callbridge server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize call record store")
	}

	engine, err := matching.NewEngine(engineOptions(cfg), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create matching engine")
	}
	engine.SetStore(store)

	hub := websocket.NewHub(engine, log.Logger)
	go hub.Run()

	thresholds := alerts.Thresholds{
		OfferUnanswered: time.Duration(cfg.OfferAlertSecs) * time.Second,
		QueueWait:       time.Duration(cfg.QueueAlertSecs) * time.Second,
	}

	sampler := aggregator.NewAggregator(engine, cfg.SampleInterval, thresholds, log.Logger)
	go sampler.Start(ctx)

	r := newRouter(cfg, routerDeps{
		hub:        hub,
		engine:     engine,
		store:      store,
		thresholds: thresholds,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the sampler before draining connections
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("server stopped")
}

func engineOptions(cfg *config.Config) matching.Options {
	return matching.Options{
		Selection:   matching.SelectionPolicy(cfg.AgentSelection),
		Promotion:   matching.PromotionMode(cfg.PromotionMode),
		SLTarget:    cfg.SLTarget,
		SLThreshold: cfg.SLThresholdSecs,
	}
}

type routerDeps struct {
	hub        *websocket.Hub
	engine     *matching.Engine
	store      storage.Store
	thresholds alerts.Thresholds
}

func newRouter(cfg *config.Config, deps routerDeps, logger zerolog.Logger) http.Handler {
	wsHandler := websocket.NewHandler(deps.hub, cfg, logger)
	connections := api.NewConnectionsHandler(deps.hub, logger)
	calls := api.NewCallHistoryHandler(deps.store, logger)
	stats := api.NewStatsHandler(deps.engine, deps.hub, deps.thresholds)
	admin := api.NewAdminHandler(cfg.SimURL, logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins, logger))

	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())
	r.Get("/ws", wsHandler.ServeHTTP)

	// Operator routes; expected to be reachable only inside the deployment
	r.Route("/internal", func(r chi.Router) {
		r.Get("/stats", stats.GetStats)
		r.Post("/connections/{connId}/disconnect", connections.Disconnect)
		r.Get("/calls", calls.GetCalls)
		r.Delete("/calls", calls.WipeCalls)

		r.Route("/sim", func(r chi.Router) {
			r.Get("/status", admin.GetSimStatus)
			r.Post("/start", admin.StartSim)
			r.Post("/stop", admin.StopSim)
		})
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"callbridge"}`)
}
