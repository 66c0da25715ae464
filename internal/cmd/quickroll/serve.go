package quickroll

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	entrypoint "github.com/louisbranch/quickroll/internal/platform/cmd"
	"github.com/louisbranch/quickroll/internal/platform/logging"
	server "github.com/louisbranch/quickroll/internal/services/roll/app"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var (
		cfg     server.Config
		logCfg  logging.Config
		loadErr error
	)
	if loadErr = entrypoint.ParseConfig(&cfg); loadErr == nil {
		loadErr = entrypoint.ParseConfig(&logCfg)
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the roll gRPC service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				return loadErr
			}
			cfg.Addr = opts.client.Addr
			return entrypoint.RunWithTelemetry(cmd.Context(), entrypoint.ServiceRoll, entrypoint.RunOptions{
				LogOutput: opts.stderr,
				Logging:   logCfg,
			}, func(ctx context.Context, logger *slog.Logger) error {
				return server.Run(ctx, cfg, logger)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (default data/quickroll.db)")
	flags.Int64Var(&cfg.DiceSeed, "seed", cfg.DiceSeed, "dice seed, 0 for a random seed")
	flags.BoolVar(&cfg.AlwaysMultiRoll, "always-multiroll", cfg.AlwaysMultiRoll, "add a companion d20 to every normal d20 roll")
	flags.BoolVar(&cfg.ConfirmRetroAdv, "confirm-retro-adv", cfg.ConfirmRetroAdv, "require confirmation for retroactive advantage")
	flags.BoolVar(&cfg.ConfirmRetroCrit, "confirm-retro-crit", cfg.ConfirmRetroCrit, "require confirmation for retroactive criticals")
	flags.BoolVar(&cfg.Vanilla, "vanilla", cfg.Vanilla, "adopt messages produced outside the pipeline")
	flags.DurationVar(&cfg.AnimationTimeout, "animation-timeout", cfg.AnimationTimeout, "longest wait for a dice animation")
	flags.StringVar(&logCfg.Level, "log-level", logCfg.Level, "log level")
	flags.StringVar(&logCfg.Format, "log-format", logCfg.Format, "log format: text or json")
	return cmd
}
