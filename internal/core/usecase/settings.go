package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

// SettingsResolver merges persisted settings over environment defaults.
// Persisted settings replace the defaults as a whole, as they were saved.
type SettingsResolver struct {
	store    ports.SettingsStore
	defaults domain.Settings
}

func NewSettingsResolver(store ports.SettingsStore, defaults domain.Settings) *SettingsResolver {
	return &SettingsResolver{store: store, defaults: defaults}
}

func (r *SettingsResolver) Current(ctx context.Context) domain.Settings {
	if r.store == nil {
		return r.defaults
	}
	saved, ok, err := r.store.LoadSettings(ctx)
	if err != nil {
		slog.Error("settings_load_error", "error", err)
		return r.defaults
	}
	if !ok {
		return r.defaults
	}
	return saved
}

func (r *SettingsResolver) Save(ctx context.Context, settings domain.Settings) error {
	settings.WebhookURL = strings.TrimSpace(settings.WebhookURL)
	settings.AdminWebhookURL = strings.TrimSpace(settings.AdminWebhookURL)
	return r.store.SaveSettings(ctx, settings)
}
