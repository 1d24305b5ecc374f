package ports

import (
	"context"
	"io"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

// SubmissionView is one submission screen: it owns the view state of a
// single in-flight submission.
type SubmissionView interface {
	Submit(ctx context.Context, input domain.Input) error
	Snapshot() domain.Snapshot
	Wait(ctx context.Context) (domain.Snapshot, error)
	Reset()
	Close()
}

// SubmissionViewFactory builds a fresh view per caller.
type SubmissionViewFactory interface {
	NewView(onChange func(domain.Snapshot)) SubmissionView
}

// RecordReader is the read model for record state.
type RecordReader interface {
	GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error)
}

// RecordCallback applies terminal results reported by the automation engine.
type RecordCallback interface {
	Apply(ctx context.Context, update domain.RecordUpdate) error
}

// AdminConsole is the inbound contract for admin monitoring.
type AdminConsole interface {
	VerifyAdmin(ctx context.Context, userID string) error
	Stats(ctx context.Context) (domain.DashboardStats, error)
	Users(ctx context.Context) ([]domain.AdminUser, error)
	Logs(ctx context.Context) ([]domain.SystemLog, error)
	SetUserStatus(ctx context.Context, userID string, status domain.AccountStatus) error
	ExportXLSX(ctx context.Context, w io.Writer) error
}
