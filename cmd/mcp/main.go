package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/medbrief/internal/adapters/mcp"
	"github.com/kirillkom/medbrief/internal/bootstrap"
	"github.com/kirillkom/medbrief/internal/config"
	"github.com/kirillkom/medbrief/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.SetDefault(os.Stderr, "medbrief-mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	handler := mcpadapter.NewHandler(app.Submissions, cfg.WatchTimeout()+cfg.DispatchTimeout())
	if err := server.ServeStdio(mcpadapter.NewServer("medbrief", version, handler)); err != nil {
		slog.Error("mcp_server_error", "error", err)
	}
}
