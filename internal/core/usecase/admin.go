package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

const (
	adminUsersLimit = 200
	adminLogsLimit  = 100
)

// AdminService backs the admin console. Reads and status changes go to the
// admin automation endpoint when one is configured, otherwise to the local
// store.
type AdminService struct {
	profiles ports.ProfileStore
	activity ports.ActivityLog
	backend  ports.AdminBackend
	settings *SettingsResolver
	state    ports.SettingsStore
	report   ports.ReportWriter
	messages domain.Messages
}

func NewAdminService(
	profiles ports.ProfileStore,
	activity ports.ActivityLog,
	backend ports.AdminBackend,
	settings *SettingsResolver,
	state ports.SettingsStore,
	report ports.ReportWriter,
	messages domain.Messages,
) *AdminService {
	return &AdminService{
		profiles: profiles,
		activity: activity,
		backend:  backend,
		settings: settings,
		state:    state,
		report:   report,
		messages: messages,
	}
}

// VerifyAdmin checks that userID has an active admin profile. Any failure
// clears the persisted auth mode; success stores ADMIN.
func (s *AdminService) VerifyAdmin(ctx context.Context, userID string) error {
	err := s.verify(ctx, userID)
	mode := domain.AuthModeAdmin
	if err != nil {
		mode = domain.AuthModeNone
	}
	if s.state != nil {
		if stateErr := s.state.SetAuthMode(ctx, mode); stateErr != nil {
			slog.Warn("auth_mode_save_error", "mode", mode, "error", stateErr)
		}
	}
	if err != nil {
		appendActivity(ctx, s.activity, domain.ActivityEntry{
			UserID:  userID,
			Action:  "Auth Error",
			Details: "admin verification failed",
			Status:  domain.LogError,
		})
	}
	return err
}

func (s *AdminService) verify(ctx context.Context, userID string) error {
	denied := func(cause error) error {
		return domain.NewUserError(domain.ErrUnauthorized, s.messages.Get(domain.MsgAdminProfile), cause)
	}
	if strings.TrimSpace(userID) == "" {
		return denied(errors.New("user id is required"))
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return denied(err)
	}
	if profile == nil {
		return denied(domain.ErrRecordNotFound)
	}
	if profile.Role != domain.RoleAdmin {
		return denied(fmt.Errorf("role %q", profile.Role))
	}
	if profile.Status != domain.AccountActive {
		return denied(fmt.Errorf("status %q", profile.Status))
	}
	return nil
}

func (s *AdminService) Stats(ctx context.Context) (domain.DashboardStats, error) {
	if endpoint, ok := s.remoteEndpoint(ctx); ok {
		return s.backend.Stats(ctx, endpoint)
	}
	return s.activity.Stats(ctx)
}

func (s *AdminService) Users(ctx context.Context) ([]domain.AdminUser, error) {
	if endpoint, ok := s.remoteEndpoint(ctx); ok {
		return s.backend.Users(ctx, endpoint)
	}
	return s.profiles.ListUsers(ctx, adminUsersLimit)
}

func (s *AdminService) Logs(ctx context.Context) ([]domain.SystemLog, error) {
	if endpoint, ok := s.remoteEndpoint(ctx); ok {
		return s.backend.Logs(ctx, endpoint)
	}
	entries, err := s.activity.Recent(ctx, adminLogsLimit)
	if err != nil {
		return nil, err
	}
	logs := make([]domain.SystemLog, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, entry.SystemLog())
	}
	return logs, nil
}

func (s *AdminService) SetUserStatus(ctx context.Context, userID string, status domain.AccountStatus) error {
	if strings.TrimSpace(userID) == "" {
		return domain.WrapError(domain.ErrValidation, "set user status", errors.New("user id is required"))
	}
	if status != domain.AccountActive && status != domain.AccountBlocked {
		return domain.WrapError(domain.ErrValidation, "set user status", fmt.Errorf("unsupported status %q", status))
	}

	var err error
	if endpoint, ok := s.remoteEndpoint(ctx); ok {
		err = s.backend.SetUserStatus(ctx, endpoint, userID, status)
	} else {
		err = s.profiles.SetStatus(ctx, userID, status)
	}
	if err != nil {
		return err
	}

	appendActivity(ctx, s.activity, domain.ActivityEntry{
		UserID:  userID,
		Action:  "User Status Changed",
		Details: fmt.Sprintf("%s -> %s", userID, status),
		Status:  domain.LogSuccess,
	})
	return nil
}

// ExportXLSX writes stats, users and logs as one workbook.
func (s *AdminService) ExportXLSX(ctx context.Context, w io.Writer) error {
	if s.report == nil {
		return domain.WrapError(domain.ErrConfiguration, "export admin report", errors.New("report writer is not configured"))
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	users, err := s.Users(ctx)
	if err != nil {
		return err
	}
	logs, err := s.Logs(ctx)
	if err != nil {
		return err
	}
	return s.report.WriteAdminReport(w, stats, users, logs)
}

func (s *AdminService) remoteEndpoint(ctx context.Context) (string, bool) {
	if s.backend == nil || s.settings == nil {
		return "", false
	}
	endpoint := strings.TrimSpace(s.settings.Current(ctx).AdminEndpoint())
	return endpoint, endpoint != ""
}
