package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/router"
	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// TestMnemonic 测试用助记词（Hardhat 默认）
const TestMnemonic = "test test test test test test test test test test test junk"

// DefaultTestConfig 内存存储、固定助记词、无链节点
func DefaultTestConfig() config.Server {
	cfg := config.DefaultServiceConfigFromEnv()
	cfg.State.Driver = "memory"
	cfg.Keyring.Mnemonic = TestMnemonic
	cfg.Keyring.Passphrase = ""
	cfg.Keyring.AutoApprove = false
	cfg.Chain.NodeURLs = map[string]string{}
	cfg.Bundler.URLs = map[string]string{}
	cfg.Bundler.Timeout = 5 * time.Second
	cfg.Echo.AllowedOrigins = []string{}
	cfg.Echo.InternalOrigins = []string{}
	cfg.Logger.LogRequests = false
	return cfg
}

// WithTestServer 以默认测试配置启动 server（不监听端口），closure 返回后关闭
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()
	WithTestServerConfigurable(t, DefaultTestConfig(), closure)
}

// WithTestServerConfigurable 同 WithTestServer，使用给定配置
func WithTestServerConfigurable(t *testing.T, cfg config.Server, closure func(s *api.Server)) {
	t.Helper()

	s, err := api.InitNewServerWithStore(cfg, state.NewMemoryStore())
	require.NoError(t, err, "failed to init test server")
	router.Init(s)

	closure(s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Empty(t, s.Shutdown(ctx), "failed to shutdown test server")
}

// PerformRequest 直接经由 echo 处理请求
func PerformRequest(t *testing.T, s *api.Server, method string, path string, body interface{}, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get(echo.HeaderContentType) == "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	res := httptest.NewRecorder()
	s.Echo.ServeHTTP(res, req)
	return res
}

// RPCError JSON-RPC 错误对象
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RPCResponse JSON-RPC 响应
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// PerformRPC 调用 POST /rpc 并解析响应
func PerformRPC(t *testing.T, s *api.Server, method string, params interface{}, headers http.Header) RPCResponse {
	t.Helper()

	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = params
	}

	res := PerformRequest(t, s, http.MethodPost, "/rpc", body, headers)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var out RPCResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

// RequireResult 断言调用成功并把 result 解码到 out（可为 nil）
func RequireResult(t *testing.T, res RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, res.Error, "unexpected rpc error: %+v", res.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(res.Result, out))
	}
}

// RequireRPCError 断言调用失败且错误码一致
func RequireRPCError(t *testing.T, res RPCResponse, code int) {
	t.Helper()
	require.NotNil(t, res.Error, "expected rpc error, got result %s", string(res.Result))
	require.Equal(t, code, res.Error.Code, res.Error.Message)
}
