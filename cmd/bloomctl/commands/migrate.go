package commands

import (
	"time"

	"github.com/bloom/bloomctl/internal/infrastructure/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd(opts *options) *cobra.Command {
	var command migration.Command

	return &cobra.Command{
		Use:   "migrate {create <message>|up|down}",
		Short: "Create, apply or roll back schema migrations",
		Args:  cobra.ArbitraryArgs,
		// Arguments are checked before configuration is loaded so a bad
		// invocation prints usage without touching anything else.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if command, err = migration.ParseCommand(args); err != nil {
				return err
			}
			return opts.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.log.With(zap.String("command", command.Name))

			if command.Name == migration.CommandCreate {
				path, err := opts.absMigrationsPath()
				if err != nil {
					return err
				}
				mf, err := migration.CreateMigration(path, command.Message, time.Now())
				if err != nil {
					log.Error("Failed to create migration", zap.Error(err))
					return err
				}
				log.Info("Migration created",
					zap.String("version", mf.Version),
					zap.String("up_file", mf.UpPath),
					zap.String("down_file", mf.DownPath),
				)
				return nil
			}

			m, err := opts.openMigrator(log)
			if err != nil {
				log.Error("Failed to create migrator", zap.Error(err))
				return err
			}
			defer m.Close()

			switch command.Name {
			case migration.CommandUp:
				err = m.Up()
			case migration.CommandDown:
				err = m.Down()
			}
			if err != nil {
				log.Error("Migration failed", zap.Error(err))
			}
			return err
		},
	}
}
