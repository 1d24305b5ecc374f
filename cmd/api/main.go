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

	httpadapter "github.com/kirillkom/medbrief/internal/adapters/http"
	"github.com/kirillkom/medbrief/internal/bootstrap"
	"github.com/kirillkom/medbrief/internal/config"
	"github.com/kirillkom/medbrief/internal/infrastructure/session"
	"github.com/kirillkom/medbrief/internal/observability/logging"
	"github.com/kirillkom/medbrief/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("medbrief-api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("medbrief-api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Session:           session.NewContextual(cfg.UserID),
		SubmissionMetrics: httpMetrics,
	})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Submissions, app.Records, app.Callback, app.Admin).
		WithMetrics(httpMetrics).
		WithReadiness(app.Ready)
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.WatchTimeout() + cfg.DispatchTimeout() + time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
