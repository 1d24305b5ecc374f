package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

type recordStoreFake struct {
	mu        sync.Mutex
	records   map[string]*domain.SubmissionRecord
	seq       int
	createErr error
	readErr   error
	applyErr  error
	reads     int
}

func newRecordStoreFake() *recordStoreFake {
	return &recordStoreFake{records: map[string]*domain.SubmissionRecord{}}
}

func (f *recordStoreFake) Create(_ context.Context, ownerID string, meta domain.InputMeta) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.seq++
	id := fmt.Sprintf("rec-%d", f.seq)
	f.records[id] = &domain.SubmissionRecord{
		ID:        id,
		OwnerID:   ownerID,
		InputKind: meta.Kind,
		InputText: meta.InputText,
		FileName:  meta.FileName,
		MimeType:  meta.MimeType,
		Status:    domain.StatusProcessing,
		CreatedAt: time.Now(),
	}
	return id, nil
}

func (f *recordStoreFake) GetByID(_ context.Context, id string) (*domain.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	copyRec := *rec
	return &copyRec, nil
}

func (f *recordStoreFake) ReadStatus(_ context.Context, id string) (domain.RecordUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return domain.RecordUpdate{}, f.readErr
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.RecordUpdate{}, domain.ErrRecordNotFound
	}
	return rec.Update(), nil
}

func (f *recordStoreFake) ApplyUpdate(_ context.Context, update domain.RecordUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	rec, ok := f.records[update.ID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if rec.Status != domain.StatusProcessing {
		return domain.ErrInvalidTransition
	}
	rec.Status = update.Status
	rec.SummaryText = update.SummaryText
	rec.ErrorMessage = update.ErrorMessage
	rec.UpdatedAt = time.Now()
	return nil
}

func (f *recordStoreFake) ListStale(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, rec := range f.records {
		if rec.Status == domain.StatusProcessing && rec.CreatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// settle writes a terminal state directly, the way the remote engine would.
func (f *recordStoreFake) settle(update domain.RecordUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[update.ID]
	rec.Status = update.Status
	rec.SummaryText = update.SummaryText
	rec.ErrorMessage = update.ErrorMessage
}

func (f *recordStoreFake) status(id string) domain.SummaryStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		return rec.Status
	}
	return ""
}

func (f *recordStoreFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *recordStoreFake) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type recordFeedFake struct {
	mu           sync.Mutex
	handlers     map[string]map[int]func(domain.RecordUpdate)
	seq          int
	published    []domain.RecordUpdate
	subscribeErr error
}

func newRecordFeedFake() *recordFeedFake {
	return &recordFeedFake{handlers: map[string]map[int]func(domain.RecordUpdate){}}
}

func (f *recordFeedFake) PublishRecordUpdate(_ context.Context, update domain.RecordUpdate) error {
	f.mu.Lock()
	f.published = append(f.published, update)
	handlers := make([]func(domain.RecordUpdate), 0, len(f.handlers[update.ID]))
	for _, h := range f.handlers[update.ID] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(update)
	}
	return nil
}

func (f *recordFeedFake) SubscribeRecord(_ context.Context, recordID string, handler func(domain.RecordUpdate)) (ports.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.seq++
	if f.handlers[recordID] == nil {
		f.handlers[recordID] = map[int]func(domain.RecordUpdate){}
	}
	f.handlers[recordID][f.seq] = handler
	return &feedSubFake{feed: f, recordID: recordID, key: f.seq}, nil
}

func (f *recordFeedFake) subscribers(recordID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[recordID])
}

func (f *recordFeedFake) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type feedSubFake struct {
	feed     *recordFeedFake
	recordID string
	key      int
}

func (s *feedSubFake) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	delete(s.feed.handlers[s.recordID], s.key)
	return nil
}

type activityLogFake struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
	stats   domain.DashboardStats
}

func (f *activityLogFake) Append(_ context.Context, entry domain.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *activityLogFake) Recent(_ context.Context, limit int) ([]domain.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) > limit {
		return append([]domain.ActivityEntry(nil), f.entries[:limit]...), nil
	}
	return append([]domain.ActivityEntry(nil), f.entries...), nil
}

func (f *activityLogFake) Stats(context.Context) (domain.DashboardStats, error) {
	return f.stats, nil
}

func (f *activityLogFake) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type extractorFake struct {
	text string
	err  error
}

func (f extractorFake) ExtractText(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type scraperFake struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *scraperFake) Scrape(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

type dispatcherFake struct {
	mu       sync.Mutex
	result   domain.DispatchResult
	err      error
	payloads []domain.DispatchPayload
	onCall   func(domain.DispatchPayload)
}

func (f *dispatcherFake) Dispatch(_ context.Context, endpoint string, payload domain.DispatchPayload) (domain.DispatchResult, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	onCall := f.onCall
	f.mu.Unlock()

	if endpoint == "" {
		return domain.DispatchResult{}, domain.WrapError(domain.ErrConfiguration, "dispatch", errors.New("endpoint is empty"))
	}
	if onCall != nil {
		onCall(payload)
	}
	return f.result, f.err
}

func (f *dispatcherFake) calls() []domain.DispatchPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DispatchPayload(nil), f.payloads...)
}

type sessionFake struct {
	userID string
	err    error
}

func (f sessionFake) CurrentUserID(context.Context) (string, error) {
	return f.userID, f.err
}

type settingsStoreFake struct {
	mu       sync.Mutex
	settings domain.Settings
	saved    bool
	mode     domain.AuthMode
	loadErr  error
}

func (f *settingsStoreFake) LoadSettings(context.Context) (domain.Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, f.saved, f.loadErr
}

func (f *settingsStoreFake) SaveSettings(_ context.Context, settings domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = settings
	f.saved = true
	return nil
}

func (f *settingsStoreFake) AuthMode(context.Context) (domain.AuthMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode, nil
}

func (f *settingsStoreFake) SetAuthMode(_ context.Context, mode domain.AuthMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
	return nil
}

type statusErrFake struct {
	code int
}

func (e statusErrFake) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }
func (e statusErrFake) StatusText() string { return fmt.Sprintf("%d Internal Server Error", e.code) }
