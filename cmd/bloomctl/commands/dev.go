package commands

import (
	"github.com/bloom/bloomctl/internal/launcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func devCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dev",
		Short: "Run pre-start, then the auto-reloading development server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := opts.prestart(cmd)
			if err != nil {
				return err
			}
			defer seq.Close()

			l := launcher.NewDevLauncher(opts.cfg.Server, opts.cfg.App.WorkDir, seq, opts.log)
			if err := l.Run(cmd.Context()); err != nil {
				opts.log.Error("Development server failed to start", zap.Error(err))
				return err
			}
			return nil
		},
	}
}
