package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

// RecordCallbackService applies terminal results reported by the automation
// engine and fans them out on the change feed.
type RecordCallbackService struct {
	store    ports.RecordStore
	feed     ports.RecordFeed
	activity ports.ActivityLog
	messages domain.Messages
}

func NewRecordCallbackService(
	store ports.RecordStore,
	feed ports.RecordFeed,
	activity ports.ActivityLog,
	messages domain.Messages,
) *RecordCallbackService {
	return &RecordCallbackService{
		store:    store,
		feed:     feed,
		activity: activity,
		messages: messages,
	}
}

func (s *RecordCallbackService) Apply(ctx context.Context, update domain.RecordUpdate) error {
	update.ID = strings.TrimSpace(update.ID)
	if update.ID == "" {
		return domain.WrapError(domain.ErrValidation, "apply callback", errors.New("record id is required"))
	}

	switch update.Status {
	case domain.StatusCompleted:
		if strings.TrimSpace(update.SummaryText) == "" {
			return domain.WrapError(domain.ErrValidation, "apply callback", errors.New("summary_text is required for completed records"))
		}
		update.ErrorMessage = ""
	case domain.StatusFailed:
		if strings.TrimSpace(update.ErrorMessage) == "" {
			update.ErrorMessage = s.messages.Get(domain.MsgRemoteFailed)
		}
		update.SummaryText = ""
	default:
		return domain.WrapError(domain.ErrValidation, "apply callback", fmt.Errorf("unsupported status %q", update.Status))
	}

	if err := s.store.ApplyUpdate(ctx, update); err != nil {
		return err
	}

	if s.feed != nil {
		if err := s.feed.PublishRecordUpdate(ctx, update); err != nil {
			// Pollers still observe the persisted state.
			slog.Warn("callback_publish_error", "record_id", update.ID, "error", err)
		}
	}

	entry := domain.ActivityEntry{RecordID: update.ID, Action: "Summary Completed", Status: domain.LogSuccess}
	if update.Status == domain.StatusFailed {
		entry.Action = "Summary Failed"
		entry.Details = update.ErrorMessage
		entry.Status = domain.LogError
	}
	appendActivity(ctx, s.activity, entry)

	slog.Info("record_callback_applied", "record_id", update.ID, "status", update.Status)
	return nil
}
