// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/ops-triage-hub/api/openapi"
	"github.com/bissquit/ops-triage-hub/internal/config"
	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/eventbus"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
	"github.com/bissquit/ops-triage-hub/internal/ops"
	"github.com/bissquit/ops-triage-hub/internal/pkg/ctxlog"
	"github.com/bissquit/ops-triage-hub/internal/pkg/httputil"
	"github.com/bissquit/ops-triage-hub/internal/pkg/metrics"
	"github.com/bissquit/ops-triage-hub/internal/triage"
	"github.com/bissquit/ops-triage-hub/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	store         *store
	publisher     incidents.EventPublisher
	closeBus      func() error
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	st, err := openStore(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}

	publisher, closeBus, err := openPublisher(cfg.Events)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("connect event bus: %w", err)
	}

	metrics.RecordBuildInfo(version.Version, version.GitCommit, cfg.Storage.Driver)
	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		store:         st,
		publisher:     publisher,
		closeBus:      closeBus,
		metricsCancel: metricsCancel,
	}

	if st.recordPool != nil {
		go app.collectPoolMetrics(metricsCtx, st.recordPool)
	}

	router, err := app.setupRouter(connectCtx)
	if err != nil {
		metricsCancel()
		_ = closeBus()
		st.close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"storage", a.config.Storage.Driver,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	// In-flight requests are done, so nothing publishes after this point.
	if err := a.closeBus(); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}
	a.store.close()

	return errors.Join(errs...)
}

func (a *App) collectPoolMetrics(ctx context.Context, record func()) {
	record()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			record()
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		httputil.Blob(w, http.StatusOK, "application/x-yaml", openapi.Spec)
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		httputil.Blob(w, http.StatusOK, "text/html; charset=utf-8", []byte(`<!DOCTYPE html>
<html>
<head>
    <title>Ops Triage Hub API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	incidentsService := incidents.NewService(a.store.repo, a.publisher, incidents.Config{
		ResolverRoles: a.config.Incidents.ResolverRoles,
	})
	if a.config.Incidents.SeedIfEmpty {
		n, err := incidentsService.SeedIfEmpty(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed incidents: %w", err)
		}
		if n > 0 {
			a.logger.Info("seeded empty store", "incidents", n)
		}
	}
	incidentsHandler := incidents.NewHandler(incidentsService)

	policy := opsPolicy(a.config.Ops)
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("ops policy: %w", err)
	}
	opsHandler := ops.NewHandler(ops.NewService(incidentsService, policy))

	triageHandler := triage.NewHandler(triage.New(nil))

	r.Route("/api/v1", func(r chi.Router) {
		if a.config.RateLimit.Enabled {
			limiter := rate.NewLimiter(rate.Limit(a.config.RateLimit.RequestsPerSecond), a.config.RateLimit.Burst)
			r.Use(httputil.RateLimitMiddleware(limiter))
		}

		incidentsHandler.RegisterRoutes(r)
		incidentsHandler.RegisterOpsRoutes(r)
		opsHandler.RegisterRoutes(r)
		triageHandler.RegisterRoutes(r)
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "storage", a.config.Storage.Driver, "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func openPublisher(cfg config.EventsConfig) (incidents.EventPublisher, func() error, error) {
	if !cfg.Enabled {
		return eventbus.NoopPublisher{}, func() error { return nil }, nil
	}

	p, err := eventbus.NewNATSPublisher(eventbus.Config{
		URL:            cfg.NATSURL,
		Name:           "ops-triage-hub",
		SubjectPrefix:  cfg.SubjectPrefix,
		ConnectTimeout: cfg.ConnectTimeout,
		ReconnectWait:  cfg.ReconnectWait,
		MaxReconnects:  cfg.MaxReconnects,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func opsPolicy(cfg config.OpsConfig) ops.Policy {
	return ops.Policy{
		SLA: map[domain.Priority]time.Duration{
			domain.PriorityP0: cfg.SLA.P0,
			domain.PriorityP1: cfg.SLA.P1,
			domain.PriorityP2: cfg.SLA.P2,
			domain.PriorityP3: cfg.SLA.P3,
		},
		BreachedHighWater:      cfg.BreachedHighWater,
		ActiveMediumWater:      cfg.ActiveMediumWater,
		AgedHighWater:          cfg.AgedHighWater,
		MTTRWindowDays:         cfg.MTTRWindowDays,
		DefaultRecommendations: cfg.DefaultRecommendations,
		MaxRecommendations:     cfg.MaxRecommendations,
		TopResolvers:           cfg.TopResolvers,
		BreachListLimit:        cfg.BreachListLimit,
	}
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
