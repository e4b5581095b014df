package commands

import (
	"github.com/bloom/bloomctl/internal/launcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func startCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run pre-start, then replace this process with the production server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := opts.prestart(cmd)
			if err != nil {
				return err
			}
			defer seq.Close()

			l := launcher.NewProdLauncher(opts.cfg.Server, opts.cfg.App.WorkDir, seq, opts.log)
			if err := l.Run(cmd.Context()); err != nil {
				opts.log.Error("Production server failed to start", zap.Error(err))
				return err
			}
			return nil
		},
	}
}
