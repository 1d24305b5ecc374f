package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

var errSubmissionAbandoned = errors.New("submission abandoned")

type SubmissionOptions struct {
	// AcceptDispatchResult lets a summary returned directly by the dispatch
	// call settle the watch. The watch stays armed either way.
	AcceptDispatchResult bool
	DispatchTimeout      time.Duration
}

// SubmissionService wires the submission pipeline and hands out one
// controller per view.
type SubmissionService struct {
	session    ports.Session
	records    *RecordLifecycle
	resolver   *ContentResolver
	watcher    *CompletionWatcher
	dispatcher ports.Dispatcher
	settings   *SettingsResolver
	messages   domain.Messages
	observer   SubmissionObserver
	options    SubmissionOptions
}

func NewSubmissionService(
	session ports.Session,
	records *RecordLifecycle,
	resolver *ContentResolver,
	watcher *CompletionWatcher,
	dispatcher ports.Dispatcher,
	settings *SettingsResolver,
	messages domain.Messages,
	observer SubmissionObserver,
	options SubmissionOptions,
) *SubmissionService {
	if observer == nil {
		observer = noopObserver{}
	}
	return &SubmissionService{
		session:    session,
		records:    records,
		resolver:   resolver,
		watcher:    watcher,
		dispatcher: dispatcher,
		settings:   settings,
		messages:   messages,
		observer:   observer,
		options:    options,
	}
}

func (s *SubmissionService) NewView(onChange func(domain.Snapshot)) ports.SubmissionView {
	return s.NewController(s.settings.Current(context.Background()), onChange)
}

// NewController builds a controller bound to an explicit settings value.
func (s *SubmissionService) NewController(settings domain.Settings, onChange func(domain.Snapshot)) *SubmissionController {
	ctx, cancel := context.WithCancel(context.Background())
	return &SubmissionController{
		svc:      s,
		settings: settings,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
		state:    domain.Snapshot{Phase: domain.PhaseIdle},
	}
}

// SubmissionController owns the state of one submission view:
// IDLE -> SUBMITTING -> RESULT | ERROR, and back to IDLE on Reset.
type SubmissionController struct {
	svc      *SubmissionService
	settings domain.Settings
	onChange func(domain.Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      domain.Snapshot
	generation uint64
	seq        uint64
	watch      *Watch
	settled    chan struct{}
	startedAt  time.Time
	closed     bool

	notifyMu   sync.Mutex
	pending    []pendingSnapshot
	delivering bool
	delivered  uint64
}

// Submit validates the input, then runs record creation, watch arming,
// content resolution and dispatch in order. The final result arrives later
// through the watch; use Wait or the change callback to observe it.
func (c *SubmissionController) Submit(ctx context.Context, input domain.Input) error {
	gen, err := c.begin(input)
	if err != nil {
		return err
	}

	userID, err := c.svc.session.CurrentUserID(ctx)
	if err == nil && strings.TrimSpace(userID) == "" {
		err = errors.New("empty user id")
	}
	if err != nil {
		err = domain.NewUserError(domain.ErrUnauthorized, c.svc.messages.Get(domain.MsgNotAuthenticated), err)
		c.fail(gen, "", err)
		return err
	}

	meta := input.Meta()
	recordID, err := c.svc.records.CreatePending(ctx, userID, meta)
	if err != nil {
		c.fail(gen, "", err)
		return err
	}
	c.setRecordID(gen, recordID)

	watch, err := c.svc.watcher.Arm(c.ctx, recordID)
	if err != nil {
		c.fail(gen, recordID, err)
		return err
	}
	if !c.attachWatch(gen, watch) {
		watch.Stop()
		return domain.WrapError(domain.ErrValidation, "submit", errSubmissionAbandoned)
	}

	content, err := c.svc.resolver.Resolve(ctx, recordID, input)
	if err != nil {
		c.fail(gen, recordID, err)
		return err
	}

	dispatchCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.svc.options.DispatchTimeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, c.svc.options.DispatchTimeout)
	}
	result, err := c.svc.dispatcher.Dispatch(dispatchCtx, c.settings.WebhookURL, domain.DispatchPayload{
		Type:     "text",
		Content:  content,
		FileName: meta.FileName,
		MimeType: meta.MimeType,
		ID:       recordID,
	})
	cancel()
	if err != nil {
		c.fail(gen, recordID, err)
		return err
	}

	slog.Info("submission_dispatched",
		"record_id", recordID,
		"input_type", meta.Kind,
		"content_length", len(content),
		"ack_length", len(result.Summary),
	)
	if c.svc.options.AcceptDispatchResult && result.Primary && strings.TrimSpace(result.Summary) != "" {
		watch.Offer(SourceDispatch, domain.RecordUpdate{
			ID:          recordID,
			Status:      domain.StatusCompleted,
			SummaryText: result.Summary,
		})
	}
	return nil
}

func (c *SubmissionController) begin(input domain.Input) (uint64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, domain.WrapError(domain.ErrValidation, "submit", errors.New("view is closed"))
	}
	if c.state.Phase == domain.PhaseSubmitting {
		c.mu.Unlock()
		return 0, domain.NewUserError(domain.ErrValidation, c.svc.messages.Get(domain.MsgInProgress), nil)
	}

	if msg := c.validate(input); msg != "" {
		c.state = domain.Snapshot{Phase: domain.PhaseIdle, Error: msg}
		snap, seq := c.state, c.nextSeqLocked()
		c.mu.Unlock()
		c.notify(seq, snap)
		return 0, domain.NewUserError(domain.ErrValidation, msg, nil)
	}

	c.generation++
	gen := c.generation
	c.state = domain.Snapshot{Phase: domain.PhaseSubmitting}
	c.settled = make(chan struct{})
	c.startedAt = time.Now()
	snap, seq := c.state, c.nextSeqLocked()
	c.mu.Unlock()

	c.svc.observer.SubmissionStarted()
	c.notify(seq, snap)
	return gen, nil
}

func (c *SubmissionController) validate(input domain.Input) string {
	if strings.TrimSpace(c.settings.WebhookURL) == "" {
		return c.svc.messages.Get(domain.MsgEndpointMissing)
	}
	switch input.Mode {
	case domain.InputModeFile:
		if input.File == nil || len(input.File.Data) == 0 {
			return c.svc.messages.Get(domain.MsgFileMissing)
		}
	default:
		if strings.TrimSpace(input.Text) == "" {
			return c.svc.messages.Get(domain.MsgTextMissing)
		}
	}
	return ""
}

func (c *SubmissionController) setRecordID(gen uint64, recordID string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state.RecordID = recordID
	snap, seq := c.state, c.nextSeqLocked()
	c.mu.Unlock()
	c.notify(seq, snap)
}

func (c *SubmissionController) attachWatch(gen uint64, w *Watch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state.Phase != domain.PhaseSubmitting {
		return false
	}
	c.watch = w
	go c.awaitOutcome(gen, w)
	return true
}

func (c *SubmissionController) awaitOutcome(gen uint64, w *Watch) {
	select {
	case outcome := <-w.Outcome():
		c.finish(gen, outcome)
	case <-w.Done():
		// The outcome is buffered before Done closes.
		select {
		case outcome := <-w.Outcome():
			c.finish(gen, outcome)
		default:
		}
	}
}

func (c *SubmissionController) finish(gen uint64, outcome WatchOutcome) {
	c.mu.Lock()
	if gen != c.generation || c.state.Phase != domain.PhaseSubmitting {
		c.mu.Unlock()
		return
	}
	c.watch = nil
	if outcome.Err != nil {
		c.state.Phase = domain.PhaseError
		c.state.Error = domain.UserMessage(outcome.Err, c.svc.messages.Get(domain.MsgRemoteFailed))
		c.state.Result = ""
	} else {
		c.state.Phase = domain.PhaseResult
		c.state.Result = outcome.Update.SummaryText
		c.state.Error = ""
	}
	snap, seq := c.state, c.nextSeqLocked()
	started := c.startedAt
	c.closeSettledLocked()
	c.mu.Unlock()

	c.svc.observer.SubmissionFinished(snap.Phase, time.Since(started))
	c.notify(seq, snap)

	if domain.IsKind(outcome.Err, domain.ErrWatchTimeout) {
		c.svc.records.MarkFailed(c.ctx, snap.RecordID, snap.Error)
	}
}

func (c *SubmissionController) fail(gen uint64, recordID string, err error) {
	message := c.userMessage(err)

	c.mu.Lock()
	if gen != c.generation || c.state.Phase != domain.PhaseSubmitting {
		c.mu.Unlock()
		slog.Warn("submission_late_error", "record_id", recordID, "error", err)
		return
	}
	watch := c.watch
	c.watch = nil
	c.state.Phase = domain.PhaseError
	c.state.Error = message
	c.state.Result = ""
	snap, seq := c.state, c.nextSeqLocked()
	started := c.startedAt
	c.closeSettledLocked()
	c.mu.Unlock()

	if watch != nil {
		watch.Stop()
	}
	slog.Error("submission_failed", "record_id", recordID, "error", err)
	c.svc.observer.SubmissionFinished(domain.PhaseError, time.Since(started))
	c.notify(seq, snap)

	if recordID != "" {
		c.svc.records.MarkFailed(c.ctx, recordID, message)
	}
}

func (c *SubmissionController) userMessage(err error) string {
	var statusErr interface{ StatusText() string }
	switch {
	case domain.IsKind(err, domain.ErrConfiguration):
		return c.svc.messages.Get(domain.MsgEndpointMissing)
	case domain.IsKind(err, domain.ErrTransport) && errors.As(err, &statusErr):
		return fmt.Sprintf("%s: %s", c.svc.messages.Get(domain.MsgDispatchTransport), statusErr.StatusText())
	case domain.IsKind(err, domain.ErrTransport):
		return c.svc.messages.Get(domain.MsgDispatchTransport)
	default:
		return domain.UserMessage(err, c.svc.messages.Get(domain.MsgProcessingFailed))
	}
}

func (c *SubmissionController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the current submission settles. It returns immediately
// when nothing is in flight.
func (c *SubmissionController) Wait(ctx context.Context) (domain.Snapshot, error) {
	c.mu.Lock()
	settled := c.settled
	inFlight := c.state.Phase == domain.PhaseSubmitting
	c.mu.Unlock()

	if !inFlight || settled == nil {
		return c.Snapshot(), nil
	}
	select {
	case <-settled:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Reset returns the view to IDLE, abandoning any in-flight watch.
func (c *SubmissionController) Reset() {
	c.mu.Lock()
	c.generation++
	abandoned := c.state.Phase == domain.PhaseSubmitting
	started := c.startedAt
	watch := c.watch
	c.watch = nil
	c.state = domain.Snapshot{Phase: domain.PhaseIdle}
	c.closeSettledLocked()
	snap, seq := c.state, c.nextSeqLocked()
	c.mu.Unlock()

	if watch != nil {
		watch.Stop()
	}
	if abandoned {
		c.svc.observer.SubmissionFinished(domain.PhaseIdle, time.Since(started))
	}
	c.notify(seq, snap)
}

// Close tears the view down. Later callbacks from in-flight work are inert.
func (c *SubmissionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	abandoned := c.state.Phase == domain.PhaseSubmitting
	started := c.startedAt
	watch := c.watch
	c.watch = nil
	c.closeSettledLocked()
	c.mu.Unlock()

	if watch != nil {
		watch.Stop()
	}
	if abandoned {
		c.svc.observer.SubmissionFinished(domain.PhaseIdle, time.Since(started))
	}
	c.cancel()
}

func (c *SubmissionController) closeSettledLocked() {
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

type pendingSnapshot struct {
	seq  uint64
	snap domain.Snapshot
}

// nextSeqLocked numbers a published state. Callers hold c.mu, so sequence
// order is state order.
func (c *SubmissionController) nextSeqLocked() uint64 {
	c.seq++
	return c.seq
}

// notify delivers snapshots one at a time and in state order. A snapshot
// older than one already delivered is dropped. A callback that re-enters the
// controller only queues its snapshot; the goroutine already delivering
// sends it after the callback returns.
func (c *SubmissionController) notify(seq uint64, snap domain.Snapshot) {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	c.pending = append(c.pending, pendingSnapshot{seq: seq, snap: snap})
	if c.delivering {
		c.notifyMu.Unlock()
		return
	}
	c.delivering = true
	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		if next.seq <= c.delivered {
			continue
		}
		c.delivered = next.seq
		c.notifyMu.Unlock()
		c.onChange(next.snap)
		c.notifyMu.Lock()
	}
	c.delivering = false
	c.notifyMu.Unlock()
}
