package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"paymanager/internal/core"
	apphttp "paymanager/internal/http"
	"paymanager/internal/log"
	"paymanager/internal/middleware/ratelimit"
	"paymanager/internal/services"
)

var errPurgeNotConfirmed = errors.New("refusing to delete every payment without --yes")

const shutdownTimeout = 30 * time.Second

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", string(FormatTable), "output format: table, json or yaml")
}

func (r *runner) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the settings store and run its migrations",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store ready (%s backend)\n", app.Config.DataBackend)
			version, ok, err := app.Service.SchemaVersion()
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "Schema version %d\n", version)
			}
			return nil
		}),
	}
}

func (r *runner) createCmd() *cobra.Command {
	var (
		in     core.PaymentInput
		output string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a new payment",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			format, err := ParseFormat(output)
			if err != nil {
				return err
			}
			p, err := app.Service.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writePayment(cmd.OutOrStdout(), format, p, app.Service.Location())
		}),
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "payment name, 3 to 255 characters")
	cmd.Flags().StringVar(&in.Amount, "amount", "", `amount with a comma decimal separator, e.g. "19,99"`)
	cmd.Flags().StringVar(&in.DueDate, "due", "", "due date as D/M/YYYY, optionally followed by HH:MM")
	cmd.Flags().StringVar(&in.DueTime, "time", "", "due time as HH:MM")
	addOutputFlag(cmd, &output)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func (r *runner) listCmd() *cobra.Command {
	var status, query, sort, order, output string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List payments",
		Args:    cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			format, err := ParseFormat(output)
			if err != nil {
				return err
			}
			opts := services.ListOptions{Query: strings.TrimSpace(query)}
			if status != "" {
				if opts.Status, err = core.ParseStatus(status); err != nil {
					return err
				}
			}
			if opts.Sort, err = services.ParseSortField(sort); err != nil {
				return err
			}
			switch strings.ToLower(order) {
			case "", "asc":
			case "desc":
				opts.Desc = true
			default:
				return fmt.Errorf("unknown order %q: must be asc or desc", order)
			}

			snap, err := app.Service.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for _, skipped := range snap.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped unreadable record %q\n", skipped.Key)
			}
			return writePayments(cmd.OutOrStdout(), format, snap.Payments, app.Service.Location())
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "only payments with this status: pending, late, future or paid")
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive name filter")
	cmd.Flags().StringVar(&sort, "sort", "name", "sort by name, amount, dueAt, status or createdAt")
	cmd.Flags().StringVar(&order, "order", "asc", "asc or desc")
	addOutputFlag(cmd, &output)
	return cmd
}

func (r *runner) showCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show one payment",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			format, err := ParseFormat(output)
			if err != nil {
				return err
			}
			p, err := app.Service.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writePayment(cmd.OutOrStdout(), format, p, app.Service.Location())
		}),
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func (r *runner) updateCmd() *cobra.Command {
	var (
		in     core.PatchInput
		output string
	)
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Change the amount, due date or status of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			format, err := ParseFormat(output)
			if err != nil {
				return err
			}
			patch, err := core.ParsePatchInput(in, app.Service.Location())
			if err != nil {
				return err
			}
			p, err := app.Service.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return writePayment(cmd.OutOrStdout(), format, p, app.Service.Location())
		}),
	}
	cmd.Flags().StringVar(&in.Amount, "amount", "", `new amount, e.g. "19,99"`)
	cmd.Flags().StringVar(&in.DueDate, "due", "", "new due date as D/M/YYYY, optionally followed by HH:MM")
	cmd.Flags().StringVar(&in.DueTime, "time", "", "new due time as HH:MM")
	cmd.Flags().StringVar(&in.Status, "status", "", "paid, or any other status to reopen the payment")
	addOutputFlag(cmd, &output)
	return cmd
}

func (r *runner) payCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pay NAME",
		Short: "Mark a payment as paid",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			p, err := app.Service.MarkPaid(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %q as paid (%s)\n", p.Name, p.AmountMoney())
			return nil
		}),
	}
}

func (r *runner) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a payment",
		Args:    cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			if err := app.Service.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", args[0])
			return nil
		}),
	}
}

func (r *runner) purgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errPurgeNotConfirmed
			}
			return r.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
				if err := app.Service.DeleteAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All payments deleted")
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func (r *runner) dashboardCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals, payment health and this week's and month's progress",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			format, err := ParseFormat(output)
			if err != nil {
				return err
			}
			summary, err := app.Service.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), format, summary, app.Service.Location())
		}),
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func (r *runner) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-status",
		Short: "Re-derive the status of every unpaid payment from its due date",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			changed, err := app.Service.RefreshStatuses(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d payment(s) changed status\n", len(changed))
			for _, p := range changed {
				fmt.Fprintf(out, "  %s: %s\n", p.Name, p.Status)
			}
			return nil
		}),
	}
}

func (r *runner) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore FILE",
		Short: "Write back payments saved with list -o json or list -o yaml",
		Long: "Restore reads a list of payments and writes each one as it is, keeping its id and timestamps.\n" +
			"A stored payment with the same name is replaced. Files ending in .yaml or .yml are read as YAML.",
		Args: cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			backup, err := readBackup(args[0])
			if err != nil {
				return err
			}
			n, err := app.Service.Restore(cmd.Context(), backup)
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d of %d payment(s)\n", n, len(backup))
			return err
		}),
	}
}

func (r *runner) serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			if port == "" {
				port = app.Config.Port
			}
			return serve(cmd.Context(), app, ":"+port)
		}),
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default $PORT)")
	return cmd
}

func serve(ctx context.Context, app *App, addr string) error {
	logger := app.Logger.WithComponent(log.ComponentHTTP)
	srv := apphttp.NewServer(addr, app.Service, apphttp.Options{
		Logger:         app.Logger,
		Metrics:        app.Metrics,
		Gatherer:       app.Registry,
		RequestTimeout: app.Config.RequestTimeout,
		RateLimit:      ratelimit.DefaultConfig(),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = app.Config.RequestTimeout + 5*time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := GracefulShutdown(ctx, logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting paymanager server", "addr", addr, "backend", app.Config.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", addr)
		return err
	}

	WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
	return nil
}
