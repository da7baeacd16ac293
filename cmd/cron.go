package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/util/command"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const onceFlag = "once"

func newCron() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Polls bundlers for receipts of pending user operations",
		Long: `Runs the reconciliation job: every tick the first pending user operation
hash is looked up on its chain's bundler and moved to confirmed once a
receipt exists. Chains without a bundler are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			once, _ := cmd.Flags().GetBool(onceFlag)
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
				if once {
					out := s.Reconciler.Tick(ctx)
					raw, err := json.Marshal(out)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(raw))
					return nil
				}

				log.Info().Dur("interval", s.Config.Cron.Interval).Msg("Starting reconciler")
				return s.Reconciler.Run(ctx, s.Config.Cron.Interval, logOutcome)
			})
		},
	}
	cmd.Flags().Bool(onceFlag, false, "run a single tick and print its outcome")
	return cmd
}
