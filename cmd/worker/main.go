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

	"github.com/joho/godotenv"

	"github.com/kirillkom/medbrief/internal/bootstrap"
	"github.com/kirillkom/medbrief/internal/config"
	"github.com/kirillkom/medbrief/internal/observability/logging"
	"github.com/kirillkom/medbrief/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("medbrief-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("medbrief-worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{SweepMetrics: workerMetrics})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()

	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	slog.Info("worker_started", "sweep_interval", interval.String(), "stale_after_minutes", cfg.SweepStaleAfterMinutes)
	if err := app.Sweeper.Run(ctx, interval); err != nil {
		slog.Error("worker_sweep_error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
