package bundlers_test

import (
	"net/http"
	"testing"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/httperrors"
	"github.com/SafeMPC/aa-keyring/internal/bundler/bundlertest"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/SafeMPC/aa-keyring/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundlerURLs(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		var urls map[string]string
		test.RequireResult(t, test.PerformRPC(t, s, "get_bundler_urls", nil, nil), &urls)
		assert.Equal(t, state.DefaultBundlerURLs(), urls)

		test.RequireResult(t, test.PerformRPC(t, s, "add_bundler_url", []string{"eip155:1", "https://bundler.example/rpc"}, nil), nil)

		test.RequireResult(t, test.PerformRPC(t, s, "get_bundler_urls", nil, nil), &urls)
		assert.Equal(t, "https://bundler.example/rpc", urls["0x1"])
		assert.Equal(t, "", urls["0x5"])
		assert.Equal(t, state.DefaultLocalBundlerURL, urls[state.LocalChainID])

		test.RequireRPCError(t, test.PerformRPC(t, s, "add_bundler_url", []string{"", "https://x"}, nil), httperrors.CodeInvalidParams)
		test.RequireRPCError(t, test.PerformRPC(t, s, "add_bundler_url", []string{"not-a-chain", "https://x"}, nil), httperrors.CodeInvalidParams)
	})
}

func TestSeededBundlerURLs(t *testing.T) {
	cfg := test.DefaultTestConfig()
	cfg.Bundler.URLs = map[string]string{"0xAA36A7": "https://sepolia.bundler.example"}

	test.WithTestServerConfigurable(t, cfg, func(s *api.Server) {
		var urls map[string]string
		test.RequireResult(t, test.PerformRPC(t, s, "get_bundler_urls", nil, nil), &urls)
		assert.Equal(t, "https://sepolia.bundler.example", urls["0xaa36a7"])
	})
}

func TestPassthrough(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_supportedEntryPoints", []string{"0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"})
	srv.Reply("debug_bundler_clearState", "ok")
	srv.Fail("eth_estimateUserOperationGas", -32602, "invalid user operation")

	test.WithTestServer(t, func(s *api.Server) {
		test.RequireResult(t, test.PerformRPC(t, s, "add_bundler_url", []string{"0x539", srv.URL}, nil), nil)

		var entryPoints []string
		test.RequireResult(t, test.PerformRPC(t, s, "eth_supportedEntryPoints", nil, nil), &entryPoints)
		assert.Equal(t, []string{"0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"}, entryPoints)

		var cleared string
		headers := http.Header{api.HeaderChainID: []string{"1337"}}
		test.RequireResult(t, test.PerformRPC(t, s, "debug_bundler_clearState", []interface{}{}, headers), &cleared)
		assert.Equal(t, "ok", cleared)

		res := test.PerformRPC(t, s, "eth_estimateUserOperationGas", []interface{}{map[string]string{"sender": "0x01"}, "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"}, nil)
		test.RequireRPCError(t, res, httperrors.CodeInternalError)
		assert.Equal(t, "invalid user operation", res.Error.Message)
		assert.JSONEq(t, `{"code":-32602}`, string(res.Error.Data))

		calls := srv.Calls("eth_estimateUserOperationGas")
		require.Len(t, calls, 1)
		require.Len(t, calls[0].Params, 2)
		assert.JSONEq(t, `{"sender":"0x01"}`, string(calls[0].Params[0]))

		// 未配置 bundler 的链
		res = test.PerformRPC(t, s, "eth_chainId", nil, http.Header{api.HeaderChainID: []string{"0x5"}})
		test.RequireRPCError(t, res, httperrors.CodeBundlerNotConfigured)
	})
}

func TestPassthroughNullResult(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_getUserOperationReceipt", nil)

	test.WithTestServer(t, func(s *api.Server) {
		test.RequireResult(t, test.PerformRPC(t, s, "add_bundler_url", []string{"0x539", srv.URL}, nil), nil)

		res := test.PerformRPC(t, s, "eth_getUserOperationReceipt", []string{"0xabc"}, nil)
		test.RequireResult(t, res, nil)
		assert.JSONEq(t, "null", string(res.Result))
	})
}
