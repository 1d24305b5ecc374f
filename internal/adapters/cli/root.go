// Package cli is the medbrief command line: submissions, endpoint settings
// and the admin console.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

// SettingsEditor reads and persists endpoint settings.
type SettingsEditor interface {
	Current(ctx context.Context) domain.Settings
	Save(ctx context.Context, settings domain.Settings) error
}

// AuthState exposes the persisted authentication mode.
type AuthState interface {
	AuthMode(ctx context.Context) (domain.AuthMode, error)
	SetAuthMode(ctx context.Context, mode domain.AuthMode) error
}

// App is everything the commands need from a running backend.
type App struct {
	Views    ports.SubmissionViewFactory
	Settings SettingsEditor
	Admin    ports.AdminConsole
	Auth     AuthState
	Session  ports.Session
}

// Loader builds the backend lazily so that help and flag errors never touch
// the database. The returned close function releases it.
type Loader func(ctx context.Context) (*App, func(), error)

type runner struct {
	load Loader
}

func (r *runner) with(ctx context.Context, fn func(app *App) error) error {
	app, closeFn, err := r.load(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(app)
}

func NewRootCommand(load Loader) *cobra.Command {
	r := &runner{load: load}
	root := &cobra.Command{
		Use:           "medbrief",
		Short:         "Summarize clinical documents, links and text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSubmitCommand(r),
		newSettingsCommand(r),
		newLoginCommand(r),
		newLogoutCommand(r),
		newAdminCommand(r),
		newTUICommand(r),
	)
	return root
}

// Execute runs the root command and prints the user-facing message of any
// failure to stderr.
func Execute(ctx context.Context, root *cobra.Command) int {
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", domain.UserMessage(err, ""))
		return 1
	}
	return 0
}

func renderMarkdown(out io.Writer, text string, raw bool) error {
	if !raw {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
		if err == nil {
			if rendered, err := renderer.Render(text); err == nil {
				_, err = io.WriteString(out, rendered)
				return err
			}
		}
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
