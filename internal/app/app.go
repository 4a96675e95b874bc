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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bissquit/crisiskit/internal/classify"
	"github.com/bissquit/crisiskit/internal/config"
	"github.com/bissquit/crisiskit/internal/intake"
	"github.com/bissquit/crisiskit/internal/netmon"
	"github.com/bissquit/crisiskit/internal/pkg/httputil"
	"github.com/bissquit/crisiskit/internal/queue/sqlite"
	"github.com/bissquit/crisiskit/internal/remote"
	"github.com/bissquit/crisiskit/internal/status"
	syncengine "github.com/bissquit/crisiskit/internal/sync"
	"github.com/bissquit/crisiskit/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	store         *sqlite.Store
	monitor       *netmon.Monitor
	projector     *status.Projector
	server        *http.Server
	metricsServer *http.Server
	runCancel     context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	remoteClient, err := remote.NewClient(remote.Config{
		BaseURL:   cfg.Remote.BaseURL,
		Timeout:   cfg.Remote.Timeout,
		RateLimit: cfg.Remote.RateLimit,
		AuthToken: cfg.Remote.AuthToken,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create remote client: %w", err)
	}

	engine := syncengine.NewEngine(syncengine.Config{
		MaxRetries: cfg.Sync.MaxRetries,
	}, store, remoteClient.SubmitResponse)

	monitor := netmon.NewMonitor(netmon.Config{
		ProbeInterval: cfg.Network.ProbeInterval,
		SettleDelay:   cfg.Network.SettleDelay,
	}, netmon.ProberFunc(remoteClient.Healthy))

	projector := status.NewProjector(status.Config{
		RefreshInterval: cfg.Sync.RefreshInterval,
	}, store, engine, monitor)
	monitor.SetTrigger(projector.AutoSync)

	intakeService := intake.NewService(store, remoteClient, monitor, projector, classify.NewHeuristic())
	intakeHandler := intake.NewHandler(intakeService, projector, store, engine)

	app := &App{
		config:    cfg,
		logger:    logger,
		store:     store,
		monitor:   monitor,
		projector: projector,
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(intakeHandler),
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

// Run starts the monitor, projector and HTTP servers.
func (a *App) Run() error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.runCancel = cancel

	a.monitor.Start(runCtx)
	a.projector.Start(runCtx)

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
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if a.runCancel != nil {
		a.runCancel()
	}
	a.projector.Stop()
	a.monitor.Stop()

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

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(intakeHandler *intake.Handler) *chi.Mux {
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

	r.Route("/api/v1", func(r chi.Router) {
		intakeHandler.RegisterRoutes(r)

		if a.config.Admin.JWTSecret != "" {
			r.Group(func(r chi.Router) {
				r.Use(httputil.AdminAuth(a.config.Admin.JWTSecret))
				intakeHandler.RegisterAdminRoutes(r)
			})
		} else {
			slog.Warn("admin secret not set: queue administration routes are disabled")
		}
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		a.logger.Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Queue storage unavailable")
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
