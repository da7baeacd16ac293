package bundler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultEntryPoint EntryPoint v0.6 在各链上的规范地址
var DefaultEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// ParseEntryPoint 解析配置中的 EntryPoint 地址，空值回退到 DefaultEntryPoint
func ParseEntryPoint(addr string) (common.Address, error) {
	if addr == "" {
		return DefaultEntryPoint, nil
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, errors.Errorf("invalid entry point address %q", addr)
	}
	return common.HexToAddress(addr), nil
}

// Result bundler 调用结果；传输或 RPC 错误不会抛出，Success=false 时 Data 为错误信息。
// Code 为 bundler 返回的 JSON-RPC 错误码，传输错误时为 0
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Code    int         `json:"code,omitempty"`
}

// Error Success=false 时返回错误信息
func (r Result) Error() string {
	if r.Success {
		return ""
	}
	if msg, ok := r.Data.(string); ok {
		return msg
	}
	raw, _ := json.Marshal(r.Data)
	return string(raw)
}

// Decode 将成功结果解码到 out
func (r Result) Decode(out interface{}) error {
	if !r.Success {
		return errors.Wrap(types.ErrBundlerSubmissionFailed, r.Error())
	}
	switch data := r.Data.(type) {
	case json.RawMessage:
		return json.Unmarshal(data, out)
	default:
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}
}

// Client 绑定到单条链的 bundler JSON-RPC 客户端
type Client struct {
	chainID    string
	url        string
	entryPoint common.Address
	rpc        *rpc.Client
}

// NewClient 按链 ID 从地址表中取 bundler 地址；没有非空地址时返回 ErrBundlerNotConfigured。
// entryPoint 为零地址时使用 DefaultEntryPoint
func NewClient(ctx context.Context, chainID string, urls map[string]string, entryPoint common.Address, timeout time.Duration) (*Client, error) {
	id := chain.NormalizeChainID(chainID)

	url := ""
	for k, v := range urls {
		if chain.NormalizeChainID(k) == id {
			url = v
			break
		}
	}
	if url == "" {
		return nil, errors.Wrapf(types.ErrBundlerNotConfigured, "chain %s", id)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if entryPoint == (common.Address{}) {
		entryPoint = DefaultEntryPoint
	}

	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial bundler %s", url)
	}

	return &Client{
		chainID:    id,
		url:        url,
		entryPoint: entryPoint,
		rpc:        c,
	}, nil
}

// ChainID 绑定的链
func (c *Client) ChainID() string {
	return c.chainID
}

// URL bundler 地址
func (c *Client) URL() string {
	return c.url
}

// EntryPoint 当前链使用的 EntryPoint 地址
func (c *Client) EntryPoint() common.Address {
	return c.entryPoint
}

// Send 原样转发 JSON-RPC 调用
func (c *Client) Send(ctx context.Context, method string, params ...interface{}) Result {
	if params == nil {
		params = []interface{}{}
	}

	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, method, params...); err != nil {
		log.Debug().Err(err).Str("method", method).Str("chainId", c.chainID).Msg("Bundler call failed")
		res := Result{Success: false, Data: err.Error()}
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			res.Code = rpcErr.ErrorCode()
		}
		return res
	}

	// null 结果也是成功（例如尚未打包的 receipt）
	if len(raw) == 0 || string(raw) == "null" {
		return Result{Success: true, Data: nil}
	}
	return Result{Success: true, Data: raw}
}

// SendUserOperation eth_sendUserOperation(op, entryPoint)
func (c *Client) SendUserOperation(ctx context.Context, op *types.UserOperation) Result {
	return c.Send(ctx, "eth_sendUserOperation", op, c.entryPoint)
}

// GetUserOperationReceipt eth_getUserOperationReceipt(hash)；未打包时 Data 为 nil
func (c *Client) GetUserOperationReceipt(ctx context.Context, userOpHash string) Result {
	return c.Send(ctx, "eth_getUserOperationReceipt", userOpHash)
}

// SupportedEntryPoints eth_supportedEntryPoints
func (c *Client) SupportedEntryPoints(ctx context.Context) Result {
	return c.Send(ctx, "eth_supportedEntryPoints")
}

// Close 关闭连接
func (c *Client) Close() {
	c.rpc.Close()
}
