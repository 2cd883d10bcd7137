package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-intake/internal/analyses"
	"github.com/wolfman30/clinic-intake/internal/api/router"
	"github.com/wolfman30/clinic-intake/internal/app/bootstrap"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/dashboard"
	"github.com/wolfman30/clinic-intake/internal/gateway"
	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func main() {
	envErr := godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}
	logger.Info("starting clinic-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store_configured", cfg.StoreConfigured(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildStorePool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build store pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Repositories and gateway
	patientsRepo := patients.NewPostgresRepository(pool)
	appointmentsRepo := appointments.NewPostgresRepository(pool)
	analysesRepo := analyses.NewPostgresRepository(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gatewayMetrics := metrics.NewGatewayMetrics(registry)
	dashboardMetrics := metrics.NewDashboardMetrics(registry)

	gwOpts := []gateway.Option{gateway.WithMetrics(gatewayMetrics)}
	if listener := bootstrap.BuildAnalysisListener(cfg, analysesRepo, redisClient, logger); listener != nil {
		gwOpts = append(gwOpts, gateway.WithRealtime(gateway.ListenerSource{Listener: listener}))
	}
	gw := gateway.New(patientsRepo, appointmentsRepo, analysesRepo, logger, gwOpts...)

	// Handlers
	intakeHandler := intake.NewHandler(intake.NewService(gw, logger), logger)
	hub := dashboard.NewHub(dashboardMetrics, logger)
	defer hub.Close()
	dashboardHandler := dashboard.NewHandler(gw, hub, cfg.CORSAllowedOrigins, logger)

	// The relay waits for the store in the background so serving never depends on it.
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay, err := dashboardHandler.Relay(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("realtime analyses unavailable; dashboard will not update live", "error", err)
			}
			return
		}
		<-ctx.Done()
		_ = relay.Close()
	}()

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		IntakeHandler:      intakeHandler,
		DashboardHandler:   dashboardHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Store:              pool,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SubmitRateLimit:    1,
		SubmitBurst:        5,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	<-relayDone
	logger.Info("server stopped")
}
