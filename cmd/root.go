package cmd

import (
	"fmt"
	"os"

	"github.com/SafeMPC/aa-keyring/cmd/client"
	"github.com/SafeMPC/aa-keyring/cmd/probe"
	"github.com/SafeMPC/aa-keyring/cmd/state"
	"github.com/SafeMPC/aa-keyring/internal/util/command"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aa-keyring",
	Short: "ERC-4337 smart account keyring service",
	Long: `aa-keyring derives EVM accounts from a mnemonic, queues signing requests
for host approval and relays smart account user operations to bundlers.

Requires configuration through ENV (AAK_*) or a config file.`,
	SilenceUsage: true,
}

// Execute 执行根命令，失败时以非零状态退出
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(command.ConfigFlag, "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(
		newServer(),
		newCron(),
		probe.New(),
		state.New(),
		client.New(),
	)
}
