package rpc_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/httperrors"
	"github.com/SafeMPC/aa-keyring/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRPCUnknownMethod(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRPC(t, s, "keyring_doesNotExist", nil, nil)
		test.RequireRPCError(t, res, httperrors.CodeMethodNotFound)
		assert.JSONEq(t, "1", string(res.ID))
	})
}

func TestPostRPCParseError(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodPost, "/rpc", "not a request object", nil)
		require.Equal(t, http.StatusOK, res.Code)

		var out test.RPCResponse
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
		test.RequireRPCError(t, out, httperrors.CodeParseError)
		assert.JSONEq(t, "null", string(out.ID))
	})
}

func TestPostRPCInvalidVersion(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		body := map[string]interface{}{"jsonrpc": "1.0", "id": 7, "method": "keyring_listAccounts"}
		res := test.PerformRequest(t, s, http.MethodPost, "/rpc", body, nil)

		var out test.RPCResponse
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
		test.RequireRPCError(t, out, httperrors.CodeInvalidRequest)
	})
}

func TestPostRPCBatch(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		body := []map[string]interface{}{
			{"jsonrpc": "2.0", "id": 1, "method": "keyring_listAccounts"},
			{"jsonrpc": "2.0", "id": 2, "method": "keyring_getAccount", "params": map[string]string{"id": "missing"}},
		}
		res := test.PerformRequest(t, s, http.MethodPost, "/rpc", body, nil)
		require.Equal(t, http.StatusOK, res.Code)

		var out []test.RPCResponse
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
		require.Len(t, out, 2)

		test.RequireResult(t, out[0], nil)
		assert.JSONEq(t, "[]", string(out[0].Result))
		test.RequireRPCError(t, out[1], httperrors.CodeAccountNotFound)
		assert.JSONEq(t, "2", string(out[1].ID))
	})
}

func TestPostRPCNullResultIsSerialized(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodPost, "/rpc", map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      "abc",
			"method":  "keyring_rejectRequest",
			"params":  map[string]string{"id": "missing"},
		}, nil)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &raw))
		assert.Contains(t, raw, "error")
		assert.NotContains(t, raw, "result")
	})
}

func TestPostRPCOriginGating(t *testing.T) {
	cfg := test.DefaultTestConfig()
	cfg.Echo.AllowedOrigins = []string{"https://wallet.example"}

	test.WithTestServerConfigurable(t, cfg, func(s *api.Server) {
		allowed := http.Header{"Origin": []string{"https://wallet.example"}}
		denied := http.Header{"Origin": []string{"https://evil.example"}}

		test.RequireResult(t, test.PerformRPC(t, s, "keyring_listAccounts", nil, allowed), nil)
		test.RequireRPCError(t, test.PerformRPC(t, s, "keyring_listAccounts", nil, denied), httperrors.CodeUnauthorized)

		// 内部方法在未配置 InternalOrigins 时只接受无 Origin 的本地调用
		test.RequireRPCError(t, test.PerformRPC(t, s, "get_bundler_urls", nil, allowed), httperrors.CodeUnauthorized)
		test.RequireResult(t, test.PerformRPC(t, s, "get_bundler_urls", nil, nil), nil)
	})
}

func TestOriginAllowed(t *testing.T) {
	cfg := test.DefaultTestConfig()
	cfg.Echo.InternalOrigins = []string{"https://snap.example/"}
	s := api.NewServer(cfg)

	assert.True(t, s.OriginAllowed(api.ScopeKeyring, "https://anything.example"))
	assert.True(t, s.OriginAllowed(api.ScopeInternal, "https://snap.example"))
	assert.True(t, s.OriginAllowed(api.ScopeInternal, "HTTPS://SNAP.EXAMPLE"))
	assert.False(t, s.OriginAllowed(api.ScopeInternal, ""))
	assert.False(t, s.OriginAllowed(api.ScopeInternal, "https://other.example"))

	cfg.Echo.AllowedOrigins = []string{"*"}
	s = api.NewServer(cfg)
	assert.True(t, s.OriginAllowed(api.ScopeKeyring, "https://anything.example"))
}
