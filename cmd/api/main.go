package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-booking-core/internal/api/router"
	"github.com/wolfman30/dental-booking-core/internal/app/bootstrap"
	"github.com/wolfman30/dental-booking-core/internal/appointments"
	"github.com/wolfman30/dental-booking-core/internal/cache"
	appconfig "github.com/wolfman30/dental-booking-core/internal/config"
	"github.com/wolfman30/dental-booking-core/internal/directory"
	"github.com/wolfman30/dental-booking-core/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-booking-core/internal/http/middleware"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/observability/metrics"
	"github.com/wolfman30/dental-booking-core/internal/pms"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, bookingMetrics := setupMetrics()

	r, err := bootstrap.LoadRoster(cfg, logger)
	if err != nil {
		logger.Error("failed to load roster", "error", err)
		os.Exit(1)
	}
	dir := directory.New(r, directory.WithLogger(logger), directory.WithRecorder(bookingMetrics))

	pmsClient, err := pms.New(pmsConfig(cfg, r.Location()), pms.WithLogger(logger), pms.WithRecorder(bookingMetrics))
	if err != nil {
		logger.Error("failed to create PMS client", "error", err)
		os.Exit(1)
	}
	go func() {
		driftCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := bootstrap.CheckRosterDrift(driftCtx, pmsClient, dir, logger); err != nil {
			logger.Warn("roster drift check skipped", "error", err)
		}
	}()

	readiness := map[string]router.ReadinessCheck{}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, cfg.UseRedisCache())
	if redisClient != nil {
		defer redisClient.Close()
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	store, backend := bootstrap.BuildCacheStore(cfg, redisClient, logger)
	bookingCache := cache.New(store, cache.Config{
		ScheduleTTL:      cfg.ScheduleTTL,
		RecordTTL:        cfg.RecordTTL,
		RecordPurgeAfter: cfg.RecordPurgeAfter,
	}, cache.WithLogger(logger), cache.WithRecorder(bookingMetrics))
	go cache.NewSweeper(bookingCache, cache.SweeperConfig{Interval: cfg.CacheSweepInterval, Logger: logger}).Start(ctx)
	logger.Info("cache ready", "backend", backend)

	pool := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	var reporter handlers.InteractionReporter
	if pool != nil {
		defer pool.Close()
		readiness["postgres"] = pool.Ping
	}
	interactionStore, storeName := bootstrap.BuildInteractionStore(pool, logger)
	if pg, ok := interactionStore.(*interactions.PostgresStore); ok {
		reporter = pg
	}
	dispatcher := interactions.NewDispatcher(interactionStore, interactions.DispatcherConfig{
		QueueSize: cfg.InteractionQueueSize,
		Workers:   cfg.InteractionWorkers,
		Logger:    logger,
		Recorder:  bookingMetrics,
	})
	dispatcher.Start(ctx)
	logger.Info("interaction log ready", "store", storeName)

	service := appointments.NewService(pmsClient, dir, r,
		appointments.WithCache(bookingCache),
		appointments.WithInteractionLogger(dispatcher),
		appointments.WithRecorder(bookingMetrics),
		appointments.WithLogger(logger),
		appointments.WithAvailabilityDays(cfg.AvailabilityDays),
	)

	limiter := httpmiddleware.NewRateLimiter(cfg.HTTPRateLimit, cfg.HTTPRateBurst)
	go limiter.Run(ctx, cfg.RateLimitSweep)

	handler := router.New(&router.Config{
		Logger:         logger,
		Appointments:   handlers.NewAppointmentsHandler(service, reporter, logger),
		MetricsHandler: metricsHandler,
		CORS: httpmiddleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedHeaders: cfg.CORSAllowedHeaders,
			AllowedMethods: cfg.CORSAllowedMethods,
			MaxAge:         cfg.CORSMaxAge,
		},
		RateLimiter:       limiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Readiness:         readiness,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	// Flush queued interaction records after the last request has finished.
	dispatcher.Close()

	logger.Info("server stopped")
}

// setupMetrics registers booking metrics on a private registry alongside
// the Go runtime and process collectors.
func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewBookingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func pmsConfig(cfg *appconfig.Config, loc *time.Location) pms.Config {
	return pms.Config{
		BaseURL:     cfg.PMSBaseURL,
		Token:       cfg.PMSToken,
		ConnectorID: cfg.PMSConnectorID,
		ConsumerID:  cfg.PMSConsumerID,
		Timeout:     cfg.PMSTimeout,
		RateLimit:   cfg.PMSRateLimit,
		Burst:       cfg.PMSBurst,
		SchedulerID: cfg.PMSSchedulerID,
		CancelerID:  cfg.PMSCancelerID,
		Location:    loc,
	}
}
