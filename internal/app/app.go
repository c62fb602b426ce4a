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

	"github.com/bissquit/news-digest/internal/config"
	"github.com/bissquit/news-digest/internal/digest"
	"github.com/bissquit/news-digest/internal/digest/brevo"
	digestpostgres "github.com/bissquit/news-digest/internal/digest/postgres"
	"github.com/bissquit/news-digest/internal/digest/smtp"
	"github.com/bissquit/news-digest/internal/identity"
	"github.com/bissquit/news-digest/internal/identity/jwt"
	identitypostgres "github.com/bissquit/news-digest/internal/identity/postgres"
	"github.com/bissquit/news-digest/internal/news"
	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
	"github.com/bissquit/news-digest/internal/pkg/httputil"
	"github.com/bissquit/news-digest/internal/pkg/metrics"
	"github.com/bissquit/news-digest/internal/pkg/postgres"
	"github.com/bissquit/news-digest/internal/pkg/secret"
	"github.com/bissquit/news-digest/internal/preferences"
	preferencespostgres "github.com/bissquit/news-digest/internal/preferences/postgres"
	"github.com/bissquit/news-digest/internal/version"
	"github.com/bissquit/news-digest/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	scheduler     *digest.Scheduler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MinIdleConns:    cfg.Database.MinIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go metrics.CollectDBPoolMetrics(metricsCtx, db, 15*time.Second)

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		metricsCancel()
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

// Run starts the digest scheduler and the HTTP servers.
func (a *App) Run(ctx context.Context) error {
	if a.config.Digest.SchedulerEnabled {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		a.logger.Info("digest scheduler disabled, use GET /api/cron to run the job")
	}

	// Start metrics server in background
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
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	addErr := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		if !a.config.Digest.SchedulerEnabled {
			return
		}
		if err := a.scheduler.Stop(ctx); err != nil {
			addErr(fmt.Errorf("stop scheduler: %w", err))
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			addErr(fmt.Errorf("shutdown server: %w", err))
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			addErr(fmt.Errorf("shutdown metrics server: %w", err))
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Scheduler returns the digest scheduler. Used in tests to trigger runs.
func (a *App) Scheduler() *digest.Scheduler {
	return a.scheduler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httputil.Text(w, http.StatusOK, "News Digest API is running")
	})
	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>News Digest API</title>
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

	aggregator := news.NewAggregator(news.Config{
		APIKey:   a.config.News.APIKey,
		BaseURL:  a.config.News.BaseURL,
		Language: a.config.News.Language,
		Timeout:  a.config.News.Timeout,
	})

	renderer, err := digest.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create digest renderer: %w", err)
	}

	sender, err := newEmailSender(a.config.Email)
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	dispatcher := digest.NewDispatcher(renderer, sender)
	job := digest.NewJob(digestpostgres.NewRepository(a.db), aggregator, dispatcher)

	loc, err := time.LoadLocation(a.config.Digest.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load digest timezone: %w", err)
	}

	a.scheduler, err = digest.NewScheduler(digest.SchedulerConfig{
		Schedule:   digest.ResolveSchedule(a.config.Digest.IsProduction(), a.config.Digest.Schedule),
		Location:   loc,
		RunTimeout: a.config.Digest.RunTimeout,
	}, job)
	if err != nil {
		return nil, fmt.Errorf("create digest scheduler: %w", err)
	}

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:     a.config.JWT.SecretKey,
		TokenDuration: a.config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	identityService := identity.NewService(identityRepo, jwtAuth)
	identityHandler := identity.NewHandler(identityService)

	preferencesService := preferences.NewService(preferencespostgres.NewRepository(a.db), aggregator, job)
	preferencesHandler := preferences.NewHandler(preferencesService)

	digestHandler := digest.NewHandler(a.scheduler)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			identityHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.AuthMiddleware(identityService))
				preferencesHandler.RegisterRoutes(r)
			})
		})

		// The batch run may outlast the request timeout.
		r.Group(func(r chi.Router) {
			r.Use(httputil.SharedSecretMiddleware(a.config.Digest.CronSecret))
			r.Use(httputil.RateLimitMiddleware(newTriggerLimiter(a.config.Digest)))
			digestHandler.RegisterRoutes(r)
		})
	})

	return r, nil
}

// newEmailSender returns the configured provider, or nil when its
// credentials are missing so that digests fall back to the log.
func newEmailSender(cfg config.EmailConfig) (digest.Sender, error) {
	switch cfg.Provider {
	case config.EmailProviderSMTP:
		if cfg.SMTP.Host == "" {
			slog.Warn("smtp host not configured, digests will be logged instead of sent")
			return nil, nil
		}
		sender, err := smtp.NewSender(smtp.Config{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			User:        cfg.SMTP.User,
			Password:    cfg.SMTP.Password,
			FromName:    cfg.FromName,
			FromAddress: cfg.FromAddress,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		if !secret.IsConfigured(cfg.Brevo.APIKey) {
			slog.Warn("brevo api key not configured, digests will be logged instead of sent")
			return nil, nil
		}
		sender, err := brevo.NewSender(brevo.Config{
			APIKey:      cfg.Brevo.APIKey,
			BaseURL:     cfg.Brevo.BaseURL,
			FromName:    cfg.FromName,
			FromAddress: cfg.FromAddress,
			Timeout:     cfg.Timeout,
			RateLimit:   cfg.Brevo.RateLimit,
		})
		if err != nil {
			return nil, err
		}
		return sender, nil
	}
}

func newTriggerLimiter(cfg config.DigestConfig) *rate.Limiter {
	if cfg.TriggerRatePerMinute <= 0 {
		return nil
	}
	burst := max(cfg.TriggerBurst, 1)
	return rate.NewLimiter(rate.Limit(cfg.TriggerRatePerMinute/60), burst)
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
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
