package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ideastockexchange/beliefgraph/internal/api/handlers"
	mw "github.com/ideastockexchange/beliefgraph/internal/api/middleware"
	"github.com/ideastockexchange/beliefgraph/internal/config"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/ideastockexchange/beliefgraph/internal/service"
	"github.com/ideastockexchange/beliefgraph/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router      *chi.Mux
	Analytics   *service.AnalyticsService
	Coordinator *service.Coordinator
	Backfill    *service.BackfillService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	linkStore := store.NewLinkStore(db)
	metricsStore := store.NewMetricsStore(db)
	signalStore := store.NewSignalStore(db)

	// The score weights are configuration but their sum is an invariant;
	// refuse to boot on a broken blend.
	engine, err := service.NewScoreEngine(service.ScoreWeights{
		ReasonRank: config.ScoreWeightReasonRank(),
		Votes:      config.ScoreWeightVotes(),
		Aspects:    config.ScoreWeightAspects(),
	})
	if err != nil {
		return nil, err
	}

	touched := service.NewTouchedSet()

	// Services
	recomputeSvc := service.NewRecomputeService(linkStore, signalStore, engine, logger)
	recomputeSvc.SetSignalTimeout(config.SignalTimeout())
	recomputeSvc.SetRetryPolicy(config.RecomputeMaxRetries(), config.RecomputeBackoff())

	analyticsSvc := service.NewAnalyticsService(linkStore, metricsStore, touched, logger)
	analyticsSvc.SetDamping(config.NetworkDamping())
	analyticsSvc.SetIterationBounds(config.InfluenceMaxRounds(), config.InfluenceEpsilon())
	analyticsSvc.SetTopK(config.TopKLimit())
	analyticsSvc.SetIntervals(config.AnalyticsInterval(), config.IncrementalInterval())

	coordinatorSvc := service.NewCoordinator(recomputeSvc, signalStore, linkStore, touched, logger)
	coordinatorSvc.SetWorkers(config.EventWorkers())
	coordinatorSvc.SetQueueSize(config.EventQueueSize())

	querySvc := service.NewQueryService(linkStore, analyticsSvc, logger)
	backfillSvc := service.NewBackfillService(signalStore, signalStore, recomputeSvc, touched, logger)

	// Handlers
	linkHandler := handlers.NewLinkHandler(querySvc)
	networkHandler := handlers.NewNetworkHandler(analyticsSvc)
	eventHandler := handlers.NewEventHandler(coordinatorSvc)

	r := chi.NewRouter()

	app := &App{
		Router:      r,
		Analytics:   analyticsSvc,
		Coordinator: coordinatorSvc,
		Backfill:    backfillSvc,
		startTime:   time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/links", func(r chi.Router) {
			r.Get("/incoming", linkHandler.Incoming)
			r.Get("/outgoing", linkHandler.Outgoing)
			r.Get("/graph", linkHandler.Graph)
			r.Get("/summary", linkHandler.Summary)
		})

		r.Route("/network", func(r chi.Router) {
			r.Get("/top-influential", networkHandler.TopInfluential)
			r.Get("/most-central", networkHandler.MostCentral)
			r.Get("/stats", networkHandler.Stats)
		})

		// Mutation entry points consumed from upstream collaborators.
		r.Route("/events", func(r chi.Router) {
			r.Post("/vote-changed", eventHandler.VoteChanged)
			r.Post("/aspect-changed", eventHandler.AspectRatingChanged)
			r.Post("/argument-changed", eventHandler.ArgumentChanged)
			r.Post("/belief-archived", eventHandler.BeliefArchived)
		})
	})

	return app, nil
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.LinkStore      = (*store.LinkStore)(nil)
	_ domain.MetricsStore   = (*store.MetricsStore)(nil)
	_ domain.SignalSource   = (*store.SignalStore)(nil)
	_ domain.BeliefResolver = (*store.SignalStore)(nil)
)
