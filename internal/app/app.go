package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SajivJess/Wally/internal/config"
	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/event"
	"github.com/SajivJess/Wally/internal/fixtures"
	handler "github.com/SajivJess/Wally/internal/handler/http"
	"github.com/SajivJess/Wally/internal/seed"
	"github.com/SajivJess/Wally/internal/service"
	"github.com/SajivJess/Wally/internal/store"
	"github.com/SajivJess/Wally/pkg/health"
	pkgkafka "github.com/SajivJess/Wally/pkg/kafka"
	"github.com/SajivJess/Wally/pkg/middleware"
	"github.com/SajivJess/Wally/pkg/tracing"
)

// App wires together all dependencies and runs the Wally API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          store.Store
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    config.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	s, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	set, err := fixtures.Load()
	if err != nil {
		_ = s.Close(context.Background())
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("load fixtures: %w", err)
	}

	if cfg.SeedSampleData {
		if _, err := seed.NewSeeder(s, set, logger).Run(ctx, false); err != nil {
			// The API still serves an unseeded store.
			logger.Warn("sample data seeding failed", slog.String("error", err.Error()))
		}
	}

	// Events are optional; without Kafka the producer is a no-op.
	var (
		producer  *pkgkafka.Producer
		publisher event.Publisher
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Build the dependency graph.
	locks := service.NewKeyedLocks()
	svcs := handler.Services{
		Cart:            service.NewCartService(s, locks, eventProducer, logger),
		Checkout:        service.NewCheckoutService(s, locks, eventProducer, domain.OrderIDScheme(cfg.OrderIDScheme), logger),
		Users:           service.NewUserService(s, logger),
		Products:        service.NewProductService(s, set, logger),
		Missions:        service.NewMissionService(s, set, logger),
		MealPlans:       service.NewMealPlanService(s, set, logger),
		Recommendations: service.NewRecommendationService(s, set, logger),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("store", s.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment
	cors.AllowCredentials = cfg.CORSAllowCredentials
	bgCtx, stopBackground := context.WithCancel(context.Background())
	router := handler.NewRouter(svcs, healthHandler, logger, handler.RouterConfig{
		ServiceName: config.ServiceName,
		CORS:        cors,
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		RateLimit:   middleware.RateLimit(bgCtx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          s,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		stopBackground: stopBackground,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("store", a.store.Driver()),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server drains
// in-flight requests, then the tracer flushes, then Kafka and the store close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.stopBackground()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.logger.Error("store close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
