package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

func newLoginCommand(r *runner) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Record the session mode, verifying admin access when asked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd.Context(), func(app *App) error {
				ctx := cmd.Context()
				if !admin {
					if err := app.Auth.SetAuthMode(ctx, domain.AuthModeUser); err != nil {
						return fmt.Errorf("save auth mode: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "signed in")
					return nil
				}
				userID, err := app.Session.CurrentUserID(ctx)
				if err != nil {
					return err
				}
				if err := app.Admin.VerifyAdmin(ctx, userID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "admin access granted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Verify the admin profile and open the admin console")
	return cmd
}

func newLogoutCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd.Context(), func(app *App) error {
				return app.Auth.SetAuthMode(cmd.Context(), domain.AuthModeNone)
			})
		},
	}
}

// requireAdmin wraps an admin action so it runs only after a successful
// "login --admin".
func requireAdmin(r *runner, fn func(cmd *cobra.Command, args []string, app *App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return r.with(cmd.Context(), func(app *App) error {
			mode, err := app.Auth.AuthMode(cmd.Context())
			if err != nil {
				return fmt.Errorf("read auth mode: %w", err)
			}
			if mode != domain.AuthModeAdmin {
				return errors.New("admin console is locked; run medbrief login --admin")
			}
			return fn(cmd, args, app)
		})
	}
}

func newAdminCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin console: stats, users, logs and exports",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		Args:  cobra.NoArgs,
		RunE: requireAdmin(r, func(cmd *cobra.Command, _ []string, app *App) error {
			s, err := app.Admin.Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "summaries\t%d\n", s.TotalSummaries)
			fmt.Fprintf(w, "active users\t%d\n", s.ActiveUsers)
			fmt.Fprintf(w, "avg processing\t%s\n", s.AverageTime)
			fmt.Fprintf(w, "server\t%s\n", s.ServerStatus)
			return w.Flush()
		}),
	}

	users := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: requireAdmin(r, func(cmd *cobra.Command, _ []string, app *App) error {
			list, err := app.Admin.Users(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTATUS\tJOINED")
			for _, u := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Status, u.JoinedAt)
			}
			return w.Flush()
		}),
	}

	logs := &cobra.Command{
		Use:   "logs",
		Short: "Show recent activity",
		Args:  cobra.NoArgs,
		RunE: requireAdmin(r, func(cmd *cobra.Command, _ []string, app *App) error {
			list, err := app.Admin.Logs(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tSTATUS\tDETAILS")
			for _, l := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Timestamp, l.Action, l.Status, l.Details)
			}
			return w.Flush()
		}),
	}

	setStatus := func(use, short string, status domain.AccountStatus) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <user-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: requireAdmin(r, func(cmd *cobra.Command, args []string, app *App) error {
				if err := app.Admin.SetUserStatus(cmd.Context(), args[0], status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], status)
				return nil
			}),
		}
	}

	export := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write stats, users and logs to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: requireAdmin(r, func(cmd *cobra.Command, args []string, app *App) error {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := app.Admin.ExportXLSX(cmd.Context(), f); err != nil {
				f.Close()
				os.Remove(args[0])
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[0])
			return nil
		}),
	}

	cmd.AddCommand(
		stats,
		users,
		logs,
		setStatus("ban", "Block a user", domain.AccountBlocked),
		setStatus("unban", "Reactivate a user", domain.AccountActive),
		export,
	)
	return cmd
}
