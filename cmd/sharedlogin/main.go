package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	promobserver "github.com/ericfisherdev/sharedlogin/internal/adapter/driven/prometheus"
	sqliteadapter "github.com/ericfisherdev/sharedlogin/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/sharedlogin/internal/adapter/driving/http"
	"github.com/ericfisherdev/sharedlogin/internal/application"
	"github.com/ericfisherdev/sharedlogin/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"secret_key_set", cfg.HasSecretKey(),
		"demo_phones", len(cfg.DemoPhones),
		"health_interval", cfg.HealthInterval,
	)
	if !cfg.HasSecretKey() {
		slog.Warn("SHAREDLOGIN_SECRET_KEY not set, credential reads and writes will fail")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "version", version)

	// 5. Wire adapters.
	credStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	subStore := sqliteadapter.NewSubscriberRepo(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := promobserver.NewObserver("sharedlogin", registry)
	if err != nil {
		return err
	}

	// 6. Create the credential service and start the health monitor.
	credSvc := application.NewCredentialService(credStore, subStore, observer, cfg.DemoPhones, slog.Default())

	healthMon := application.NewHealthMonitor(credSvc, observer, cfg.HealthInterval, slog.Default())
	go healthMon.Start(ctx)

	// 7. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(credStore, subStore, credSvc, healthMon, registry, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// 8. Log startup complete.
	slog.Info("sharedlogin started",
		"listen_addr", cfg.ListenAddr,
		"health_interval", cfg.HealthInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// 11. Log shutdown complete.
	slog.Info("shutdown complete")
	return nil
}
