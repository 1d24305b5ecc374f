package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/medbrief/internal/adapters/cli"
	"github.com/kirillkom/medbrief/internal/bootstrap"
	"github.com/kirillkom/medbrief/internal/config"
	"github.com/kirillkom/medbrief/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.SetDefault(os.Stderr, "medbrief-cli", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	load := func(ctx context.Context) (*cli.App, func(), error) {
		app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
		if err != nil {
			return nil, nil, err
		}
		return &cli.App{
			Views:    app.Submissions,
			Settings: app.Settings,
			Admin:    app.Admin,
			Auth:     app.State,
			Session:  app.Session,
		}, app.Close, nil
	}

	code := cli.Execute(ctx, cli.NewRootCommand(load))
	stop()
	os.Exit(code)
}
