// Command broker runs the pub/sub server that producers and viewers
// connect to over WebSocket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rerun-io/tracepipe/internal/api/middleware"
	"github.com/rerun-io/tracepipe/internal/broker"
	"github.com/rerun-io/tracepipe/internal/config"
)

func main() {
	_ = godotenv.Load()

	addrFlag := flag.String("addr", "", "bind address, overrides PUBSUB_ADDR and any config file value")
	configFlag := flag.String("config", "", "optional YAML config overlay")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	setupLogger(cfg.LogLevel)
	slog.Info("starting pub/sub broker", "addr", cfg.Addr, "metrics_addr", cfg.MetricsAddr)

	registry := prometheus.NewRegistry()
	b := broker.New(nil)
	b.SetMetrics(broker.NewMetrics(registry, b.TopicCount))

	done := make(chan struct{})
	go b.Run(done)
	defer close(done)

	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.CORSMiddleware([]string{"*"}))
	router.Use(middleware.BodyLimitMiddleware)

	router.Handle("/ws", broker.NewWebSocketHandler(b))
	router.Handle("/healthz", broker.NewHealthHandler(b))
	router.Handle("/debug/topics", broker.NewDebugTopicsHandler(b))

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", broker.MetricsHandlerFor(registry))

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("broker listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		slog.Info("metrics listening", "addr", metricsSrv.Addr)
		errCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("listener error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("broker shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown error", "error", err)
	}

	slog.Info("broker stopped")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
