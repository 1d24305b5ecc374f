package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

func newSettingsCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the automation endpoints",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the endpoints in use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.with(cmd.Context(), func(app *App) error {
					s := app.Settings.Current(cmd.Context())
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "webhook:       %s\n", orUnset(s.WebhookURL))
					fmt.Fprintf(out, "admin webhook: %s\n", orUnset(s.AdminWebhookURL))
					return nil
				})
			},
		},
		newSetEndpointCommand(r, "set-webhook", "Set the summary automation endpoint", func(s *domain.Settings, v string) {
			s.WebhookURL = v
		}),
		newSetEndpointCommand(r, "set-admin-webhook", "Set the admin automation endpoint", func(s *domain.Settings, v string) {
			s.AdminWebhookURL = v
		}),
	)
	return cmd
}

func newSetEndpointCommand(r *runner, use, short string, apply func(*domain.Settings, string)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <url>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(args[0])
			if value != "" {
				if err := validateEndpoint(value); err != nil {
					return err
				}
			}
			return r.with(cmd.Context(), func(app *App) error {
				s := app.Settings.Current(cmd.Context())
				apply(&s, value)
				if err := app.Settings.Save(cmd.Context(), s); err != nil {
					return fmt.Errorf("save settings: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "saved")
				return nil
			})
		},
	}
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("endpoint must be an absolute http(s) URL")
	}
	return nil
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
