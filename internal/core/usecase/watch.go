package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

const (
	SourcePush     = "push"
	SourcePoll     = "poll"
	SourceDispatch = "dispatch"
	SourceTimeout  = "timeout"

	DefaultPollInterval = 4 * time.Second
	DefaultWatchTimeout = 5 * time.Minute
)

// WatchOutcome is the single result delivered by a watch. Err is set for
// remote failures and timeouts.
type WatchOutcome struct {
	Update domain.RecordUpdate
	Source string
	Err    error
}

// Listener is one independent observer of a record. Listen must return
// promptly; emit may be called from any goroutine until stop is called or ctx
// is done.
type Listener interface {
	Name() string
	Listen(ctx context.Context, recordID string, emit func(domain.RecordUpdate)) (stop func(), err error)
}

// PushListener observes the realtime change feed.
type PushListener struct {
	feed ports.RecordFeed
}

func NewPushListener(feed ports.RecordFeed) *PushListener {
	return &PushListener{feed: feed}
}

func (l *PushListener) Name() string { return SourcePush }

func (l *PushListener) Listen(ctx context.Context, recordID string, emit func(domain.RecordUpdate)) (func(), error) {
	sub, err := l.feed.SubscribeRecord(ctx, recordID, emit)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("watch_unsubscribe_error", "record_id", recordID, "error", err)
		}
	}, nil
}

// PollListener re-reads the record on a fixed interval.
type PollListener struct {
	store    ports.RecordStore
	interval time.Duration
}

func NewPollListener(store ports.RecordStore, interval time.Duration) *PollListener {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollListener{store: store, interval: interval}
}

func (l *PollListener) Name() string { return SourcePoll }

func (l *PollListener) Listen(ctx context.Context, recordID string, emit func(domain.RecordUpdate)) (func(), error) {
	pollCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}
			if pollCtx.Err() != nil {
				return
			}

			update, err := l.store.ReadStatus(pollCtx, recordID)
			if err != nil {
				if pollCtx.Err() == nil {
					slog.Warn("watch_poll_error", "record_id", recordID, "error", err)
				}
				continue
			}
			emit(update)
		}
	}()
	return cancel, nil
}

// WatchObserver receives watch resolutions, typically for metrics.
type WatchObserver interface {
	WatchResolved(source string, status domain.SummaryStatus, elapsed time.Duration)
}

// CompletionWatcher arms watches that race their listeners: the first
// terminal observation wins and tears every listener down.
type CompletionWatcher struct {
	listeners []Listener
	timeout   time.Duration
	messages  domain.Messages
	observer  WatchObserver
}

func NewCompletionWatcher(listeners []Listener, timeout time.Duration, messages domain.Messages, observer WatchObserver) *CompletionWatcher {
	return &CompletionWatcher{
		listeners: listeners,
		timeout:   timeout,
		messages:  messages,
		observer:  observer,
	}
}

// Arm starts every listener for recordID. A listener that fails to start is
// logged and skipped; Arm fails only when none could start.
func (cw *CompletionWatcher) Arm(ctx context.Context, recordID string) (*Watch, error) {
	if recordID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "arm watch", errors.New("record id is required"))
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watch{
		recordID: recordID,
		messages: cw.messages,
		observer: cw.observer,
		armedAt:  time.Now(),
		cancel:   cancel,
		outcome:  make(chan WatchOutcome, 1),
		done:     make(chan struct{}),
	}

	started := 0
	var lastErr error
	for _, listener := range cw.listeners {
		source := listener.Name()
		stop, err := listener.Listen(watchCtx, recordID, func(update domain.RecordUpdate) {
			w.Offer(source, update)
		})
		if err != nil {
			lastErr = err
			slog.Warn("watch_listener_error", "record_id", recordID, "source", source, "error", err)
			continue
		}
		started++
		w.addStop(stop)
	}
	if started == 0 {
		w.Stop()
		if lastErr == nil {
			lastErr = errors.New("no listeners configured")
		}
		return nil, domain.WrapError(domain.ErrTemporary, "arm watch", lastErr)
	}

	if cw.timeout > 0 {
		timer := time.AfterFunc(cw.timeout, func() {
			w.settle(&WatchOutcome{
				Update: domain.RecordUpdate{ID: recordID, Status: domain.StatusFailed, ErrorMessage: cw.messages.Get(domain.MsgWatchTimeout)},
				Source: SourceTimeout,
				Err:    domain.NewUserError(domain.ErrWatchTimeout, cw.messages.Get(domain.MsgWatchTimeout), nil),
			})
		})
		w.addStop(func() { timer.Stop() })
	}

	go func() {
		select {
		case <-watchCtx.Done():
			w.Stop()
		case <-w.done:
		}
	}()

	slog.Debug("watch_armed", "record_id", recordID, "listeners", started)
	return w, nil
}

// Watch is one armed completion watch for exactly one record.
type Watch struct {
	recordID string
	messages domain.Messages
	observer WatchObserver
	armedAt  time.Time
	cancel   context.CancelFunc

	once    sync.Once
	mu      sync.Mutex
	settled bool
	stops   []func()

	outcome chan WatchOutcome
	done    chan struct{}
}

func (w *Watch) RecordID() string { return w.recordID }

// Outcome yields at most one value, then nothing: a watch stopped without a
// terminal observation never sends.
func (w *Watch) Outcome() <-chan WatchOutcome { return w.outcome }

// Done is closed once the watch is torn down, with or without an outcome.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Offer feeds an observation into the resolver. Non-terminal updates and
// updates for other records are ignored.
func (w *Watch) Offer(source string, update domain.RecordUpdate) {
	if update.ID != "" && update.ID != w.recordID {
		return
	}
	if !update.Terminal() {
		return
	}
	update.ID = w.recordID

	outcome := WatchOutcome{Update: update, Source: source}
	if update.Status == domain.StatusFailed {
		message := update.ErrorMessage
		if message == "" {
			message = w.messages.Get(domain.MsgRemoteFailed)
		}
		outcome.Err = domain.NewUserError(domain.ErrRemoteProcessing, message, nil)
	}
	w.settle(&outcome)
}

// Stop tears the watch down without an outcome. Safe to call repeatedly and
// concurrently with a resolution.
func (w *Watch) Stop() {
	w.settle(nil)
}

func (w *Watch) settle(outcome *WatchOutcome) {
	w.once.Do(func() {
		w.teardown()
		if outcome != nil {
			if w.observer != nil {
				w.observer.WatchResolved(outcome.Source, outcome.Update.Status, time.Since(w.armedAt))
			}
			slog.Info("watch_resolved", "record_id", w.recordID, "source", outcome.Source, "status", outcome.Update.Status)
			w.outcome <- *outcome
		}
		close(w.done)
	})
}

func (w *Watch) teardown() {
	w.mu.Lock()
	w.settled = true
	stops := w.stops
	w.stops = nil
	w.mu.Unlock()

	w.cancel()
	for _, stop := range stops {
		stop()
	}
}

// addStop registers a teardown hook; after settlement the hook runs at once.
func (w *Watch) addStop(stop func()) {
	if stop == nil {
		return
	}
	w.mu.Lock()
	if w.settled {
		w.mu.Unlock()
		stop()
		return
	}
	w.stops = append(w.stops, stop)
	w.mu.Unlock()
}
