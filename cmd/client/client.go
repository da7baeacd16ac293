package client

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// Client keyring JSON-RPC 客户端
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

// Dial 连接 keyring 的 /rpc 端点；origin 非空时随每个请求发送 Origin 头
func Dial(ctx context.Context, url string, origin string, timeout time.Duration) (*Client, error) {
	opts := []rpc.ClientOption{}
	if origin != "" {
		opts = append(opts, rpc.WithHeader("Origin", origin))
	}
	c, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}
	return &Client{rpc: c, timeout: timeout}, nil
}

// Call 发送单个请求；keyring_* 方法的命名参数以单个对象传入
func (c *Client) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.rpc.CallContext(ctx, out, method, params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return errors.Errorf("%s failed: %s (code: %d)", method, rpcErr.Error(), rpcErr.ErrorCode())
		}
		return errors.Wrapf(err, "%s failed", method)
	}
	return nil
}

// Close 关闭底层连接
func (c *Client) Close() {
	c.rpc.Close()
}
