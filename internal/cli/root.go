package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"paymanager/internal/core"
	"paymanager/internal/payments"
)

// Options wires the root command. Zero values use the process environment.
type Options struct {
	Out io.Writer
	Err io.Writer
	// Args overrides os.Args[1:] when non-nil.
	Args []string
	// Open builds the application for commands that touch the store.
	Open func(ctx context.Context) (*App, error)
}

type runner struct {
	opts Options
}

// NewRootCommand returns the paymanager command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Open == nil {
		opts.Open = openFromEnv(opts.Err)
	}
	r := &runner{opts: opts}

	root := &cobra.Command{
		Use:           "paymanager",
		Short:         "Track recurring payments, their due dates and how much is still owed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if opts.Args != nil {
		root.SetArgs(opts.Args)
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.AddCommand(
		r.initCmd(),
		r.createCmd(),
		r.listCmd(),
		r.showCmd(),
		r.updateCmd(),
		r.payCmd(),
		r.deleteCmd(),
		r.purgeCmd(),
		r.dashboardCmd(),
		r.refreshCmd(),
		r.restoreCmd(),
		r.serveCmd(),
	)
	return root
}

// Execute runs the command tree and prints a readable error on failure.
func Execute(ctx context.Context, opts Options) int {
	root := NewRootCommand(opts)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", describe(err))
		return 1
	}
	return 0
}

func openFromEnv(stderr io.Writer) func(ctx context.Context) (*App, error) {
	return func(ctx context.Context) (*App, error) {
		LoadEnvFile()
		level := os.Getenv("LOG_LEVEL")
		logger := SetupLogger(level, stderr)
		cfg, err := LoadAndValidateConfig(logger)
		if err != nil {
			return nil, err
		}
		return Open(ctx, cfg, logger)
	}
}

// withApp opens the application around fn and closes it afterwards.
func (r *runner) withApp(fn func(cmd *cobra.Command, args []string, app *App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := r.opts.Open(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cmd, args, app)
	}
}

// describe turns domain errors into a single user-facing line.
func describe(err error) string {
	var (
		verr *core.ValidationError
		dup  *payments.DuplicateKeyError
		perr *payments.PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		if verr.Field != "" {
			return fmt.Sprintf("invalid %s: %v", verr.Field, verr.Err)
		}
		return verr.Err.Error()
	case errors.As(err, &dup):
		return dup.Error()
	case errors.Is(err, payments.ErrNotFound):
		return err.Error()
	case errors.As(err, &perr):
		return "storage unavailable, please retry later: " + perr.Error()
	}
	return err.Error()
}
