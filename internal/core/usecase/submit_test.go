package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

const testWebhook = "https://automation.test/webhook/summarize"

type submissionFixture struct {
	store      *recordStoreFake
	feed       *recordFeedFake
	activity   *activityLogFake
	scraper    *scraperFake
	dispatcher *dispatcherFake
	messages   domain.Messages
	session    sessionFake
	extractor  extractorFake
	timeout    time.Duration
	options    SubmissionOptions

	mu     sync.Mutex
	phases []domain.Phase
}

func newSubmissionFixture() *submissionFixture {
	return &submissionFixture{
		store:      newRecordStoreFake(),
		feed:       newRecordFeedFake(),
		activity:   &activityLogFake{},
		scraper:    &scraperFake{err: errors.New("scraper unavailable")},
		dispatcher: &dispatcherFake{},
		messages:   domain.NewMessages("pt-BR"),
		session:    sessionFake{userID: "user-1"},
		extractor:  extractorFake{text: "Extracted PDF text."},
	}
}

func (f *submissionFixture) controller(settings domain.Settings) *SubmissionController {
	lifecycle := NewRecordLifecycle(f.store, f.feed, f.activity, f.messages)
	watcher := NewCompletionWatcher(
		[]Listener{NewPushListener(f.feed), NewPollListener(f.store, 10*time.Millisecond)},
		f.timeout,
		f.messages,
		nil,
	)
	svc := NewSubmissionService(
		f.session,
		lifecycle,
		NewContentResolver(f.extractor, f.scraper, f.messages),
		watcher,
		f.dispatcher,
		NewSettingsResolver(nil, settings),
		f.messages,
		nil,
		f.options,
	)
	return svc.NewController(settings, func(s domain.Snapshot) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.phases = append(f.phases, s.Phase)
	})
}

func (f *submissionFixture) countPhase(phase domain.Phase) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.phases {
		if p == phase {
			n++
		}
	}
	return n
}

// completeRemotely makes the dispatch behave like the automation engine:
// it writes the terminal state and announces it on the feed.
func (f *submissionFixture) completeRemotely(update func(id string) domain.RecordUpdate) {
	f.dispatcher.onCall = func(p domain.DispatchPayload) {
		u := update(p.ID)
		f.store.settle(u)
		_ = f.feed.PublishRecordUpdate(context.Background(), u)
	}
}

func waitSettled(t *testing.T, c *SubmissionController) domain.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return snap
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSubmitTextEndToEnd(t *testing.T) {
	f := newSubmissionFixture()
	f.completeRemotely(func(id string) domain.RecordUpdate {
		return domain.RecordUpdate{ID: id, Status: domain.StatusCompleted, SummaryText: "Summary."}
	})
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "Aspirin reduces cardiovascular risk."})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	snap := waitSettled(t, c)
	if snap.Phase != domain.PhaseResult {
		t.Fatalf("expected RESULT, got %s (%s)", snap.Phase, snap.Error)
	}
	if snap.Result != "Summary." {
		t.Fatalf("expected summary, got %q", snap.Result)
	}

	calls := f.dispatcher.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(calls))
	}
	if calls[0].Type != "text" || calls[0].Content != "Aspirin reduces cardiovascular risk." {
		t.Fatalf("unexpected payload %+v", calls[0])
	}
	if calls[0].ID != snap.RecordID || snap.RecordID == "" {
		t.Fatalf("expected payload id %q to match record %q", calls[0].ID, snap.RecordID)
	}

	// Give the poll a few ticks to observe the same terminal state.
	time.Sleep(40 * time.Millisecond)
	if n := f.countPhase(domain.PhaseResult); n != 1 {
		t.Fatalf("expected exactly one RESULT transition, got %d", n)
	}
	if f.feed.subscribers(snap.RecordID) != 0 {
		t.Fatalf("expected watch teardown")
	}
}

func TestSubmitPollOnlyCompletion(t *testing.T) {
	f := newSubmissionFixture()
	f.dispatcher.onCall = func(p domain.DispatchPayload) {
		f.store.settle(domain.RecordUpdate{ID: p.ID, Status: domain.StatusCompleted, SummaryText: "Polled."})
	}
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	snap := waitSettled(t, c)
	if snap.Phase != domain.PhaseResult || snap.Result != "Polled." {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSubmitURLFallsBackToRawURL(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "https://example.com/article"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	calls := f.dispatcher.calls()
	if len(calls) != 1 || calls[0].Content != "https://example.com/article" {
		t.Fatalf("expected raw URL content, got %+v", calls)
	}
	if f.scraper.calls != 1 {
		t.Fatalf("expected one scrape attempt, got %d", f.scraper.calls)
	}
}

func TestSubmitFileSendsMetadata(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	err := c.Submit(context.Background(), domain.Input{
		Mode: domain.InputModeFile,
		File: &domain.FileInput{Name: "trial.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.7")},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	calls := f.dispatcher.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(calls))
	}
	if calls[0].FileName != "trial.pdf" || calls[0].MimeType != "application/pdf" || calls[0].Content != "Extracted PDF text." {
		t.Fatalf("unexpected payload %+v", calls[0])
	}
}

func TestSubmitWithoutEndpointDoesNoIO(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{})
	defer c.Close()

	err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Phase != domain.PhaseIdle {
		t.Fatalf("expected IDLE, got %s", snap.Phase)
	}
	if snap.Error != f.messages.Get(domain.MsgEndpointMissing) {
		t.Fatalf("unexpected error message %q", snap.Error)
	}
	if f.store.count() != 0 || len(f.dispatcher.calls()) != 0 || f.scraper.calls != 0 {
		t.Fatalf("expected no I/O without endpoint")
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "   "}); err == nil {
		t.Fatalf("expected error for blank text")
	}
	if got := c.Snapshot().Error; got != f.messages.Get(domain.MsgTextMissing) {
		t.Fatalf("unexpected message %q", got)
	}

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeFile}); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if got := c.Snapshot().Error; got != f.messages.Get(domain.MsgFileMissing) {
		t.Fatalf("unexpected message %q", got)
	}
	if f.store.count() != 0 {
		t.Fatalf("expected no record to be created")
	}
}

func TestSubmitDispatchHTTPErrorMarksRecordFailed(t *testing.T) {
	f := newSubmissionFixture()
	f.dispatcher.err = domain.WrapError(domain.ErrTransport, "dispatch", statusErrFake{code: 500})
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"})
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	snap := c.Snapshot()
	if snap.Phase != domain.PhaseError {
		t.Fatalf("expected ERROR, got %s", snap.Phase)
	}
	if !strings.HasPrefix(snap.Error, "Erro na comunicação") || !strings.Contains(snap.Error, "500") {
		t.Fatalf("unexpected error message %q", snap.Error)
	}
	if got := f.store.status(snap.RecordID); got != domain.StatusFailed {
		t.Fatalf("expected record failed, got %s", got)
	}
	if f.feed.subscribers(snap.RecordID) != 0 {
		t.Fatalf("expected watch teardown on error")
	}
}

func TestSubmitExtractionFailure(t *testing.T) {
	f := newSubmissionFixture()
	f.extractor = extractorFake{err: errors.New("broken pdf")}
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	err := c.Submit(context.Background(), domain.Input{
		Mode: domain.InputModeFile,
		File: &domain.FileInput{Name: "broken.pdf", Data: []byte("garbage")},
	})
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Error != f.messages.Get(domain.MsgExtraction) {
		t.Fatalf("unexpected message %q", snap.Error)
	}
	if got := f.store.status(snap.RecordID); got != domain.StatusFailed {
		t.Fatalf("expected record failed, got %s", got)
	}
	if len(f.dispatcher.calls()) != 0 {
		t.Fatalf("expected no dispatch after extraction failure")
	}
}

func TestSubmitRecordCreationFailure(t *testing.T) {
	f := newSubmissionFixture()
	f.store.createErr = errors.New("insert denied")
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"})
	if !domain.IsKind(err, domain.ErrRecordCreation) {
		t.Fatalf("expected record creation error, got %v", err)
	}
	if got := c.Snapshot().Error; got != f.messages.Get(domain.MsgRecordCreation) {
		t.Fatalf("unexpected message %q", got)
	}
	if len(f.dispatcher.calls()) != 0 {
		t.Fatalf("expected no dispatch")
	}
}

func TestSubmitWithoutUser(t *testing.T) {
	f := newSubmissionFixture()
	f.session = sessionFake{}
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"})
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Phase != domain.PhaseError || snap.Error != f.messages.Get(domain.MsgNotAuthenticated) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if f.store.count() != 0 {
		t.Fatalf("expected no record I/O")
	}
}

func TestSubmitRemoteFailure(t *testing.T) {
	f := newSubmissionFixture()
	f.completeRemotely(func(id string) domain.RecordUpdate {
		return domain.RecordUpdate{ID: id, Status: domain.StatusFailed, ErrorMessage: "Modelo indisponível."}
	})
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	snap := waitSettled(t, c)
	if snap.Phase != domain.PhaseError || snap.Error != "Modelo indisponível." {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSubmitWatchTimeoutMarksRecordFailed(t *testing.T) {
	f := newSubmissionFixture()
	f.timeout = 30 * time.Millisecond
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	snap := waitSettled(t, c)
	if snap.Phase != domain.PhaseError || snap.Error != f.messages.Get(domain.MsgWatchTimeout) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	eventually(t, func() bool { return f.store.status(snap.RecordID) == domain.StatusFailed })
}

func TestSubmitDispatchResultIsOnlyAckByDefault(t *testing.T) {
	f := newSubmissionFixture()
	f.dispatcher.result = domain.DispatchResult{Summary: "Direct.", Primary: true}
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if snap := c.Snapshot(); snap.Phase != domain.PhaseSubmitting {
		t.Fatalf("expected SUBMITTING while awaiting the record, got %+v", snap)
	}
}

func TestSubmitAcceptsPrimaryDispatchResult(t *testing.T) {
	f := newSubmissionFixture()
	f.options = SubmissionOptions{AcceptDispatchResult: true}
	f.dispatcher.result = domain.DispatchResult{Summary: "Direct.", Primary: true}
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	snap := waitSettled(t, c)
	if snap.Phase != domain.PhaseResult || snap.Result != "Direct." {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "first"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "second"})
	if got := domain.UserMessage(err, ""); got != f.messages.Get(domain.MsgInProgress) {
		t.Fatalf("expected in-progress rejection, got %v", err)
	}
	if len(f.dispatcher.calls()) != 1 {
		t.Fatalf("expected a single dispatch")
	}
}

func TestResetAbandonsInFlightWatch(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	recordID := c.Snapshot().RecordID
	c.Reset()

	if snap := c.Snapshot(); snap.Phase != domain.PhaseIdle || snap.RecordID != "" {
		t.Fatalf("expected clean IDLE, got %+v", snap)
	}
	if f.feed.subscribers(recordID) != 0 {
		t.Fatalf("expected watch teardown on reset")
	}

	// A late completion must not resurrect the old submission.
	update := domain.RecordUpdate{ID: recordID, Status: domain.StatusCompleted, SummaryText: "late"}
	f.store.settle(update)
	_ = f.feed.PublishRecordUpdate(context.Background(), update)
	time.Sleep(30 * time.Millisecond)
	if snap := c.Snapshot(); snap.Phase != domain.PhaseIdle {
		t.Fatalf("expected IDLE after late completion, got %+v", snap)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{WebhookURL: testWebhook})

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	c.Close()
	c.Close()

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "again"}); err == nil {
		t.Fatalf("expected closed view to reject submissions")
	}
}

func TestNotifyDropsSnapshotsOlderThanDelivered(t *testing.T) {
	f := newSubmissionFixture()
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	// A reset published after a late result must win even when the result
	// reaches notify second.
	c.notify(7, domain.Snapshot{Phase: domain.PhaseIdle})
	c.notify(6, domain.Snapshot{Phase: domain.PhaseResult, Result: "stale"})
	c.notify(8, domain.Snapshot{Phase: domain.PhaseSubmitting})

	f.mu.Lock()
	defer f.mu.Unlock()
	want := []domain.Phase{domain.PhaseIdle, domain.PhaseSubmitting}
	if len(f.phases) != len(want) {
		t.Fatalf("expected %v, got %v", want, f.phases)
	}
	for i := range want {
		if f.phases[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, f.phases)
		}
	}
}

func TestResetFromChangeCallback(t *testing.T) {
	f := newSubmissionFixture()
	f.completeRemotely(func(id string) domain.RecordUpdate {
		return domain.RecordUpdate{ID: id, Status: domain.StatusCompleted, SummaryText: "done"}
	})
	c := f.controller(domain.Settings{WebhookURL: testWebhook})
	defer c.Close()

	var mu sync.Mutex
	var phases []domain.Phase
	c.onChange = func(s domain.Snapshot) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
		if s.Phase == domain.PhaseResult {
			c.Reset()
		}
	}

	if err := c.Submit(context.Background(), domain.Input{Mode: domain.InputModeText, Text: "note"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) > 0 && phases[len(phases)-1] == domain.PhaseIdle
	})

	mu.Lock()
	defer mu.Unlock()
	var sawResult bool
	for _, p := range phases {
		if p == domain.PhaseResult {
			sawResult = true
		}
		if sawResult && p == domain.PhaseSubmitting {
			t.Fatalf("phases out of order: %v", phases)
		}
	}
	if !sawResult {
		t.Fatalf("expected RESULT before reset, got %v", phases)
	}
	if snap := c.Snapshot(); snap.Phase != domain.PhaseIdle {
		t.Fatalf("expected IDLE, got %+v", snap)
	}
}
