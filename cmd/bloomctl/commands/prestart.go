package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bloom/bloomctl/internal/infrastructure/cache"
	"github.com/bloom/bloomctl/internal/infrastructure/logger"
	"github.com/bloom/bloomctl/internal/infrastructure/migration"
	"github.com/bloom/bloomctl/internal/infrastructure/persistence"
	"github.com/bloom/bloomctl/internal/infrastructure/readiness"
	"github.com/bloom/bloomctl/internal/launcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const readinessAttemptTimeout = 5 * time.Second

func prestartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prestart",
		Short: "Wait for the database, apply migrations and load fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := opts.prestart(cmd)
			if err != nil {
				return err
			}
			defer seq.Close()

			if err := seq.Run(cmd.Context()); err != nil {
				opts.log.Error("Pre-start failed", zap.Error(err))
				return err
			}
			opts.log.Info("Pre-start completed")
			return nil
		},
	}
}

// prestartSequence releases its connections once the steps have run
type prestartSequence struct {
	*launcher.Sequence
	closeOnce sync.Once
	close     func()
}

func (s *prestartSequence) Run(ctx context.Context) error {
	defer s.Close()
	return s.Sequence.Run(ctx)
}

// Close releases the connections; safe to call more than once
func (s *prestartSequence) Close() {
	s.closeOnce.Do(s.close)
}

// prestart wires readiness, migrations, fixtures and the hook script.
// Nothing here contacts a server; the readiness step makes the first round trip.
func (o *options) prestart(cmd *cobra.Command) (*prestartSequence, error) {
	cfg := o.cfg

	gormLog := logger.NewGormLogger(o.log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	closers := []func() error{db.Close}

	checkers := []readiness.Checker{readiness.NewDatabaseChecker(db)}
	if cfg.Readiness.CheckRedis {
		client := cache.NewRedisClient(cfg.Redis)
		checkers = append(checkers, readiness.NewRedisChecker(client))
		closers = append(closers, client.Close)
	}
	prober := readiness.NewProber(readiness.Config{
		MaxTries:       cfg.Readiness.MaxTries,
		Wait:           cfg.Readiness.Wait,
		AttemptTimeout: readinessAttemptTimeout,
	}, o.log.Named("readiness"), checkers...)

	fixtures := persistence.NewFixtureLoader(db, cfg.Fixtures.Enabled, o.log.Named("fixtures"))

	seq := launcher.NewSequence(o.log,
		launcher.ReadinessStep(prober),
		launcher.MigrateStep(o.migrateUp),
		launcher.FixturesStep(fixtures),
		launcher.HookStep(cfg.Server.PrestartScript, cfg.App.WorkDir, cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)

	return &prestartSequence{
		Sequence: seq,
		close: func() {
			for _, c := range closers {
				if err := c(); err != nil {
					o.log.Warn("Failed to close connection", zap.Error(err))
				}
			}
		},
	}, nil
}

func (o *options) migrateUp(ctx context.Context) error {
	m, err := o.openMigrator(logger.FromContext(ctx))
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func (o *options) openMigrator(log *zap.Logger) (*migration.Migrator, error) {
	path, err := o.absMigrationsPath()
	if err != nil {
		return nil, err
	}
	return migration.Open(o.cfg.Database.DSN(), path, log)
}

func (o *options) absMigrationsPath() (string, error) {
	path, err := filepath.Abs(o.cfg.Migration.Path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	return path, nil
}
