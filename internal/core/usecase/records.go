package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

const markFailedTimeout = 10 * time.Second

// RecordLifecycle creates pending records and marks them failed on local
// errors. It never moves a record to completed.
type RecordLifecycle struct {
	store    ports.RecordStore
	feed     ports.RecordFeed
	activity ports.ActivityLog
	messages domain.Messages
}

func NewRecordLifecycle(
	store ports.RecordStore,
	feed ports.RecordFeed,
	activity ports.ActivityLog,
	messages domain.Messages,
) *RecordLifecycle {
	return &RecordLifecycle{
		store:    store,
		feed:     feed,
		activity: activity,
		messages: messages,
	}
}

func (l *RecordLifecycle) CreatePending(ctx context.Context, ownerID string, meta domain.InputMeta) (string, error) {
	id, err := l.store.Create(ctx, ownerID, meta)
	if err == nil && strings.TrimSpace(id) == "" {
		err = errors.New("insert returned no identifier")
	}
	if err != nil {
		return "", domain.NewUserError(domain.ErrRecordCreation, l.messages.Get(domain.MsgRecordCreation), err)
	}

	appendActivity(ctx, l.activity, domain.ActivityEntry{
		UserID:   ownerID,
		RecordID: id,
		Action:   "Generate Summary",
		Details:  describeInput(meta),
		Status:   domain.LogWarning,
	})
	return id, nil
}

// MarkFailed is best effort: its own failure is logged and never returned.
func (l *RecordLifecycle) MarkFailed(ctx context.Context, recordID, message string) {
	if recordID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markFailedTimeout)
	defer cancel()

	update := domain.RecordUpdate{
		ID:           recordID,
		Status:       domain.StatusFailed,
		ErrorMessage: message,
	}
	if err := l.store.ApplyUpdate(ctx, update); err != nil {
		slog.Warn("mark_failed_error", "record_id", recordID, "error", err)
		return
	}
	if l.feed != nil {
		if err := l.feed.PublishRecordUpdate(ctx, update); err != nil {
			slog.Warn("mark_failed_publish_error", "record_id", recordID, "error", err)
		}
	}
	appendActivity(ctx, l.activity, domain.ActivityEntry{
		RecordID: recordID,
		Action:   "Summary Failed",
		Details:  message,
		Status:   domain.LogError,
	})
}

func describeInput(meta domain.InputMeta) string {
	if meta.Kind == domain.InputKindFile {
		return fmt.Sprintf("PDF: %s", meta.FileName)
	}
	text := meta.InputText
	if isAbsoluteURL(text) {
		return fmt.Sprintf("URL: %s", text)
	}
	if len([]rune(text)) > 60 {
		text = string([]rune(text)[:60]) + "..."
	}
	return fmt.Sprintf("Text: %s", text)
}

func appendActivity(ctx context.Context, log ports.ActivityLog, entry domain.ActivityEntry) {
	if log == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := log.Append(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("activity_append_error", "action", entry.Action, "record_id", entry.RecordID, "error", err)
	}
}
