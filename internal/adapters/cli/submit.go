package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/medbrief/internal/adapters/tui"
	"github.com/kirillkom/medbrief/internal/core/domain"
)

type submitOptions struct {
	file    string
	text    string
	raw     bool
	quiet   bool
	timeout time.Duration
}

func newSubmitCommand(r *runner) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit [text or link]",
		Short: "Submit a PDF, a link or text and wait for the summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.text != "" {
					return errors.New("pass the text either as an argument or with --text")
				}
				opts.text = args[0]
			}
			input, err := opts.input()
			if err != nil {
				return err
			}
			return r.with(cmd.Context(), func(app *App) error {
				return runSubmit(cmd, app, input, opts)
			})
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "PDF file to summarize")
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Text or link to summarize")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the summary without markdown rendering")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print progress")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Give up waiting after this long")
	cmd.MarkFlagsMutuallyExclusive("file", "text")
	return cmd
}

func (o *submitOptions) input() (domain.Input, error) {
	if o.file == "" {
		return domain.Input{Mode: domain.InputModeText, Text: o.text}, nil
	}
	data, err := os.ReadFile(o.file)
	if err != nil {
		return domain.Input{}, fmt.Errorf("read %s: %w", o.file, err)
	}
	return domain.Input{
		Mode: domain.InputModeFile,
		File: &domain.FileInput{Name: filepath.Base(o.file), MimeType: "application/pdf", Data: data},
	}, nil
}

func runSubmit(cmd *cobra.Command, app *App, input domain.Input, opts *submitOptions) error {
	stderr := cmd.ErrOrStderr()
	var lastPhase domain.Phase
	view := app.Views.NewView(func(s domain.Snapshot) {
		if opts.quiet || s.Phase == lastPhase {
			return
		}
		lastPhase = s.Phase
		if s.Phase == domain.PhaseSubmitting {
			fmt.Fprintln(stderr, "summarizing...")
		}
	})
	defer view.Close()

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	submitErr := view.Submit(ctx, input)
	snap, waitErr := view.Wait(ctx)
	switch {
	case snap.Phase == domain.PhaseResult:
		if !opts.quiet && snap.RecordID != "" {
			fmt.Fprintln(stderr, "record", snap.RecordID)
		}
		return renderMarkdown(cmd.OutOrStdout(), snap.Result, opts.raw)
	case snap.Error != "":
		return errors.New(strings.TrimSpace(snap.Error))
	case submitErr != nil:
		return submitErr
	case waitErr != nil:
		return fmt.Errorf("no summary yet for record %s: %w", snap.RecordID, waitErr)
	default:
		return fmt.Errorf("submission ended in phase %s", snap.Phase)
	}
}

func newTUICommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive submission screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd.Context(), func(app *App) error {
				return tui.Run(app.Views)
			})
		},
	}
}
