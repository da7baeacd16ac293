package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/SafeMPC/aa-keyring/internal/util/command"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	forceFlag        = "force"
	redactedKeyValue = "<redacted>"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("state",
		newDump(),
		newClear(),
	)
}

func newDump() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Prints the persisted keyring state document with private keys redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			return command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
				return Dump(ctx, s.State, cmd.OutOrStdout())
			})
		},
	}
}

func newClear() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drops the persisted keyring state document",
		Long: `Drops the persisted keyring state document.

All derived accounts, pending requests, bundler URLs and user operation
activity are lost. The next start re-initializes the default document.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool(forceFlag)
			if !force {
				return errors.New("refusing to clear state without --force")
			}
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			return command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
				if err := s.State.Clear(ctx); err != nil {
					return err
				}
				log.Info().Str("driver", cfg.State.Driver).Msg("Cleared keyring state")
				return nil
			})
		},
	}
	cmd.Flags().Bool(forceFlag, false, "confirm dropping the state document")
	return cmd
}

// Dump 输出状态文档，私钥字段替换为占位符
func Dump(ctx context.Context, manager *state.Manager, w io.Writer) error {
	doc, err := manager.Get(ctx)
	if err != nil {
		return err
	}

	for id, wallet := range doc.KeyringState.Wallets {
		if wallet.PrivateKey != "" {
			wallet.PrivateKey = redactedKeyValue
		}
		doc.KeyringState.Wallets[id] = wallet
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode state document")
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
