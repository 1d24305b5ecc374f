package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

// RecordStore persists submission records.
type RecordStore interface {
	Create(ctx context.Context, ownerID string, meta domain.InputMeta) (string, error)
	GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error)
	ReadStatus(ctx context.Context, id string) (domain.RecordUpdate, error)
	ApplyUpdate(ctx context.Context, update domain.RecordUpdate) error
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// Subscription is one live change-feed listener.
type Subscription interface {
	Unsubscribe() error
}

// RecordFeed is the realtime change feed for record updates.
type RecordFeed interface {
	PublishRecordUpdate(ctx context.Context, update domain.RecordUpdate) error
	SubscribeRecord(ctx context.Context, recordID string, handler func(domain.RecordUpdate)) (Subscription, error)
}

// PDFExtractor extracts plain text from a PDF document.
type PDFExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Scraper turns a URL into plain text.
type Scraper interface {
	Scrape(ctx context.Context, recordID, url string) (string, error)
}

// Dispatcher sends resolved content to the automation endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, endpoint string, payload domain.DispatchPayload) (domain.DispatchResult, error)
}

// SettingsStore is the persisted local state: endpoint settings and the
// last-used authentication mode.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (domain.Settings, bool, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error
	AuthMode(ctx context.Context) (domain.AuthMode, error)
	SetAuthMode(ctx context.Context, mode domain.AuthMode) error
}

// Session resolves the authenticated user. Authentication itself is delegated
// to the hosted backend.
type Session interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// ProfileStore reads user profiles and toggles account status.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	ListUsers(ctx context.Context, limit int) ([]domain.AdminUser, error)
	SetStatus(ctx context.Context, userID string, status domain.AccountStatus) error
}

// ActivityLog records lifecycle events for the admin console.
type ActivityLog interface {
	Append(ctx context.Context, entry domain.ActivityEntry) error
	Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error)
	Stats(ctx context.Context) (domain.DashboardStats, error)
}

// AdminBackend serves admin console actions from a remote automation
// endpoint.
type AdminBackend interface {
	Stats(ctx context.Context, endpoint string) (domain.DashboardStats, error)
	Users(ctx context.Context, endpoint string) ([]domain.AdminUser, error)
	Logs(ctx context.Context, endpoint string) ([]domain.SystemLog, error)
	SetUserStatus(ctx context.Context, endpoint, userID string, status domain.AccountStatus) error
}

// ReportWriter renders admin data into a downloadable report.
type ReportWriter interface {
	WriteAdminReport(w io.Writer, stats domain.DashboardStats, users []domain.AdminUser, logs []domain.SystemLog) error
}
