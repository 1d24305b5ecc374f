package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/medbrief/internal/config"
	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
	"github.com/kirillkom/medbrief/internal/core/usecase"
	"github.com/kirillkom/medbrief/internal/infrastructure/automation/n8n"
	"github.com/kirillkom/medbrief/internal/infrastructure/extractor/pdf"
	natsfeed "github.com/kirillkom/medbrief/internal/infrastructure/feed/nats"
	"github.com/kirillkom/medbrief/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/medbrief/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/medbrief/internal/infrastructure/resilience"
	"github.com/kirillkom/medbrief/internal/infrastructure/scrape/edgefn"
	"github.com/kirillkom/medbrief/internal/infrastructure/scrape/htmlscrape"
	"github.com/kirillkom/medbrief/internal/infrastructure/session"
	"github.com/kirillkom/medbrief/internal/infrastructure/state/yamlfile"
)

// Options carries the per-binary pieces: each main decides how the user is
// resolved and where lifecycle signals go.
type Options struct {
	Session           ports.Session
	SubmissionMetrics usecase.SubmissionObserver
	SweepMetrics      usecase.SweepObserver
}

type App struct {
	Config   config.Config
	Messages domain.Messages

	Records  ports.RecordStore
	Session  ports.Session
	State    ports.SettingsStore
	Settings *usecase.SettingsResolver

	Submissions *usecase.SubmissionService
	Callback    *usecase.RecordCallbackService
	Admin       *usecase.AdminService
	Sweeper     *usecase.StaleSweeper

	Resilience *resilience.Executor

	db      *sql.DB
	feed    *natsfeed.Feed
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	messages := domain.NewMessages(cfg.UILocale)
	executor := resilience.NewExecutor(resilienceConfig(cfg))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	records := postgres.NewRecordRepository(db)
	profiles := postgres.NewProfileRepository(db)
	activity := postgres.NewActivityRepository(db)

	var feed ports.RecordFeed
	var natsFeed *natsfeed.Feed
	if cfg.NATSURL != "" {
		natsFeed, err = natsfeed.New(cfg.NATSURL, cfg.NATSSubjectPrefix, natsfeed.Options{
			ClientName:         "medbrief",
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init change feed: %w", err)
		}
		feed = natsFeed
	} else {
		slog.Warn("change_feed_disabled", "reason", "NATS_URL is empty; watches rely on polling")
	}

	state, err := yamlfile.New(cfg.StatePath)
	if err != nil {
		closeAll(db, natsFeed)
		return nil, fmt.Errorf("init local state: %w", err)
	}
	settings := usecase.NewSettingsResolver(state, domain.Settings{
		WebhookURL:      cfg.WebhookURL,
		AdminWebhookURL: cfg.AdminWebhookURL,
	})

	sess := opts.Session
	if sess == nil {
		sess = session.NewStatic(cfg.UserID)
	}

	automation := n8n.New(cfg.DispatchTimeout(), cfg.AdminWebhookKey, executor)
	lifecycle := usecase.NewRecordLifecycle(records, feed, activity, messages)
	resolver := usecase.NewContentResolver(
		pdf.NewExtractor(cfg.PDFMaxPages),
		newScraper(cfg, executor),
		messages,
	)

	listeners := []usecase.Listener{usecase.NewPollListener(records, cfg.WatchPollInterval())}
	if feed != nil {
		listeners = append([]usecase.Listener{usecase.NewPushListener(feed)}, listeners...)
	}
	var watchMetrics usecase.WatchObserver
	if opts.SubmissionMetrics != nil {
		watchMetrics = opts.SubmissionMetrics
	}
	watcher := usecase.NewCompletionWatcher(listeners, cfg.WatchTimeout(), messages, watchMetrics)

	submissions := usecase.NewSubmissionService(
		sess,
		lifecycle,
		resolver,
		watcher,
		automation,
		settings,
		messages,
		opts.SubmissionMetrics,
		usecase.SubmissionOptions{
			AcceptDispatchResult: cfg.DispatchResultAuthoritative,
			DispatchTimeout:      cfg.DispatchTimeout(),
		},
	)

	staleAfter := time.Duration(cfg.SweepStaleAfterMinutes) * time.Minute

	return &App{
		Config:   cfg,
		Messages: messages,

		Records:  records,
		Session:  sess,
		State:    state,
		Settings: settings,

		Submissions: submissions,
		Callback:    usecase.NewRecordCallbackService(records, feed, activity, messages),
		Admin:       usecase.NewAdminService(profiles, activity, automation, settings, state, xlsx.NewWriter(), messages),
		Sweeper:     usecase.NewStaleSweeper(records, lifecycle, messages, staleAfter, opts.SweepMetrics),

		Resilience: executor,

		db:   db,
		feed: natsFeed,
		closeFn: func() {
			closeAll(db, natsFeed)
		},
	}, nil
}

// Ready reports whether the backing services answer.
func (a *App) Ready(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if a.feed != nil && !a.feed.Connected() {
		return fmt.Errorf("nats: not connected")
	}
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeAll(db *sql.DB, feed *natsfeed.Feed) {
	if feed != nil {
		feed.Close()
	}
	_ = db.Close()
}

func newScraper(cfg config.Config, executor *resilience.Executor) ports.Scraper {
	if cfg.ScraperMode == "local" || cfg.FunctionsURL == "" {
		return htmlscrape.New(cfg.HTTPClientTimeout(), executor)
	}
	return edgefn.New(cfg.FunctionsURL, cfg.FunctionsAnonKey, cfg.HTTPClientTimeout(), executor)
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.ResilienceBreakerOpenTimeoutSecs) * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}
