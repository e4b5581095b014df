package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bloom/bloomctl/internal/infrastructure/config"
	"github.com/bloom/bloomctl/internal/infrastructure/logger"
	"github.com/bloom/bloomctl/internal/infrastructure/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options is shared by all subcommands; cfg and log are set before any RunE.
type options struct {
	workDir        string
	migrationsPath string

	cfg *config.Config
	log *zap.Logger
}

// Execute runs the bloomctl command tree. Errors are reported on stderr
// before being returned, so callers only need to pick the exit code.
func Execute(ctx context.Context) error {
	return execute(ctx, NewRootCommand())
}

func execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err != nil {
		reportError(root.ErrOrStderr(), err)
	}
	return err
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "bloomctl",
		Short:         "Prepare and launch the Bloom backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = logger.Sync(opts.log)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.workDir, "work-dir", "", "application directory (default $WORK_DIR or .)")
	root.PersistentFlags().StringVar(&opts.migrationsPath, "migrations-path", "", "migrations directory (default $MIGRATIONS_PATH or ./migrations)")

	root.AddCommand(prestartCmd(opts), devCmd(opts), startCmd(opts), migrateCmd(opts))
	return root
}

// load reads configuration, applies flag overrides and builds the logger
func (o *options) load() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.workDir != "" {
		cfg.App.WorkDir = o.workDir
	}
	if o.migrationsPath != "" {
		cfg.Migration.Path = o.migrationsPath
	}

	log, err := logger.New(logger.ForEnvironment(cfg.App.Env, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	o.cfg = cfg
	o.log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))
	return nil
}

func reportError(w io.Writer, err error) {
	var usageErr *migration.UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintln(w, usageErr.Usage)
		return
	}
	fmt.Fprintln(w, err)
}
