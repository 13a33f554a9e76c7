package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tokenized/pollr/cmd/pollrd/bootstrap"
	"github.com/tokenized/pollr/cmd/pollrd/handlers"
	"github.com/tokenized/pollr/internal/lookup"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tokenized/pkg/logger"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
	buildUser    = "unknown"
)

// Pollr overlay node
func main() {
	// -------------------------------------------------------------------------
	// Config

	cfg := bootstrap.NewConfigFromEnv(bootstrap.NewContextWithTextLogger())

	// -------------------------------------------------------------------------
	// Logging

	ctx := bootstrap.NewContextWithLogger(cfg)

	// -------------------------------------------------------------------------
	// App Starting

	logger.Info(ctx, "Started : Application Initializing")
	defer logger.Info(ctx, "Completed")

	logger.Info(ctx, "Build %v (%v on %v)", buildVersion, buildUser, buildDate)

	// -------------------------------------------------------------------------
	// Start Database / Storage

	logger.Info(ctx, "Started : Initialize Database")

	masterDB := bootstrap.NewMasterDB(ctx, cfg)
	defer masterDB.Close()

	// -------------------------------------------------------------------------
	// Metrics

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := bootstrap.NewMetrics(ctx, reg)

	// -------------------------------------------------------------------------
	// Overlay

	store := bootstrap.LoadIndexFromDB(ctx, masterDB, m)
	service := lookup.NewService(store, m)
	engine := bootstrap.NewEngine(masterDB, service, m)

	// -------------------------------------------------------------------------
	// Periodic Jobs

	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()

	sch := bootstrap.NewScheduler(ctx, cfg, store, masterDB, m)
	go sch.Run(jobsCtx)

	// -------------------------------------------------------------------------
	// Start API Service

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handlers.API(ctx, cfg, engine, service, masterDB, reg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info(ctx, "API Listening %s", cfg.Server.Address)
		serverErrors <- server.ListenAndServe()
	}()

	// -------------------------------------------------------------------------
	// Shutdown

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error(ctx, "Error starting server : %s", err)
		}

	case <-osSignals:
		logger.Info(ctx, "Start shutdown...")

		// Asking listener to shutdown and load shed.
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Graceful shutdown did not complete in %v : %s",
				cfg.Server.ShutdownTimeout, err)
			if err := server.Close(); err != nil {
				logger.Error(ctx, "Could not stop http server : %s", err)
			}
		}
	}
}
