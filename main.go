package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tagify/internal/database"
	"tagify/internal/filesystem"
	"tagify/internal/handlers"
	"tagify/internal/logging"
	"tagify/internal/memory"
	"tagify/internal/middleware"
	"tagify/internal/scanner"
	"tagify/internal/startup"
	"tagify/internal/store"
	"tagify/internal/tagcache"
	"tagify/internal/thumbs"
)

func main() {
	startTime := time.Now()
	ctx := context.Background()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("Failed to close database: %v", err)
		}
	}()

	// A previous process may have died mid-scan; those scans are not
	// resumable and their libraries must not stay locked.
	if n, err := db.ClearStaleScans(ctx); err != nil {
		logging.Fatal("Failed to clear stale scans: %v", err)
	} else if n > 0 {
		logging.Warn("Cleared %d interrupted scan(s) from a previous run", n)
	}

	thumbs.InitVips()
	defer thumbs.ShutdownVips()

	st, err := store.New(ctx, config)
	if err != nil {
		logging.Fatal("Failed to initialize object store: %v", err)
	}

	sc := scanner.New(db, st, thumbs.NewGenerator(config.ThumbMaxEdge), scanner.Options{
		Workers:  config.ScanWorkers,
		Takeover: config.ScanTakeover,
		Retry:    filesystem.DefaultRetryConfig(),
	})

	tc := tagcache.New(config.TagCacheTTL, db.TagCounts)

	h := handlers.New(db, st, sc, tc, config)
	router := h.Router()
	router.Use(middleware.Logger(middleware.LoggingConfig{LogHealthChecks: config.LogHealthChecks}))
	router.Use(middleware.Metrics())

	if config.MetricsEnabled {
		go serveMetrics(config.MetricsPort)
	}

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // proxy-mode media streams have no fixed bound
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, sc)

	logging.Info("Server started on port %s in %v", config.Port, time.Since(startTime).Round(time.Millisecond))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("Server error: %v", err)
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logging.Info("Metrics server started on port %s", port)
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, sc *scanner.Scanner) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Shutdown initiated (%s)", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logging.Info("Stopping active scans")
	sc.Shutdown()

	logging.Info("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	logging.Info("Shutdown complete")
}
