package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	urlFlag     = "url"
	originFlag  = "origin"
	timeoutFlag = "timeout"
)

func New() *cobra.Command {
	cmd := command.NewSubcommandGroup("client",
		command.NewSubcommandGroup("accounts",
			newAccountsList(),
			newAccountsCreate(),
			newAccountsDelete(),
		),
		command.NewSubcommandGroup("requests",
			newRequestsList(),
			newRequestsApprove(),
			newRequestsReject(),
		),
		command.NewSubcommandGroup("bundler",
			newBundlerURLs(),
			newBundlerSet(),
		),
	)
	cmd.PersistentFlags().String(urlFlag, "http://127.0.0.1:8080/rpc", "keyring JSON-RPC endpoint")
	cmd.PersistentFlags().String(originFlag, "", "Origin header sent with every request")
	cmd.PersistentFlags().Duration(timeoutFlag, 30*time.Second, "per request timeout")
	return cmd
}

type idParams struct {
	ID string `json:"id"`
}

type createParams struct {
	Name string `json:"name"`
}

// call 建立连接、发送请求并以缩进 JSON 打印结果
func call(cmd *cobra.Command, method string, params ...interface{}) error {
	url, _ := cmd.Flags().GetString(urlFlag)
	origin, _ := cmd.Flags().GetString(originFlag)
	timeout, _ := cmd.Flags().GetDuration(timeoutFlag)

	c, err := Dial(cmd.Context(), url, origin, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	var result json.RawMessage
	if err := c.Call(cmd.Context(), &result, method, params...); err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.Wrap(err, "failed to decode result")
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newAccountsList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists keyring accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, "keyring_listAccounts")
		},
	}
}

func newAccountsCreate() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Derives the next keyring account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, "keyring_createAccount", createParams{Name: args[0]})
		},
	}
}

func newAccountsDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Deletes a keyring account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, "keyring_deleteAccount", idParams{ID: args[0]})
		},
	}
}

func newRequestsList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists pending signing requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, "keyring_listRequests")
		},
	}
}

func newRequestsApprove() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approves and signs a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, "keyring_approveRequest", idParams{ID: args[0]})
		},
	}
}

func newRequestsReject() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Rejects a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, "keyring_rejectRequest", idParams{ID: args[0]})
		},
	}
}

func newBundlerURLs() *cobra.Command {
	return &cobra.Command{
		Use:   "urls",
		Short: "Prints the bundler URL per chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, "get_bundler_urls")
		},
	}
}

func newBundlerSet() *cobra.Command {
	return &cobra.Command{
		Use:   "set <chainId> <url>",
		Short: "Sets the bundler URL of a chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, "add_bundler_url", chain.NormalizeChainID(args[0]), args[1])
		},
	}
}
