package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrNodeNotConfigured 该链没有配置节点 RPC
var ErrNodeNotConfigured = errors.New("node RPC not configured for chain")

// EthereumAdapter 单条 EVM 链的节点连接
type EthereumAdapter struct {
	chainID  *big.Int
	endpoint string
	client   *ethclient.Client
}

// NewEthereumAdapter 连接 EVM 节点
func NewEthereumAdapter(ctx context.Context, chainID *big.Int, rpcEndpoint string) (*EthereumAdapter, error) {
	if rpcEndpoint == "" {
		return nil, errors.Wrapf(ErrNodeNotConfigured, "chain %s", hexutil.EncodeBig(chainID))
	}

	client, err := ethclient.DialContext(ctx, rpcEndpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial node %s", rpcEndpoint)
	}

	return &EthereumAdapter{
		chainID:  chainID,
		endpoint: rpcEndpoint,
		client:   client,
	}, nil
}

// ChainID 配置的链 ID
func (a *EthereumAdapter) ChainID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

// Client 底层 ethclient，满足 smartaccount.ChainReader
func (a *EthereumAdapter) Client() *ethclient.Client {
	return a.client
}

// Ping 检查节点可用，且节点返回的链 ID 与配置一致
func (a *EthereumAdapter) Ping(ctx context.Context) error {
	id, err := a.client.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to query node chain id")
	}
	if id.Cmp(a.chainID) != 0 {
		return errors.Errorf("node %s reports chain %s, expected %s", a.endpoint, id, a.chainID)
	}
	return nil
}

// Close 关闭连接
func (a *EthereumAdapter) Close() {
	a.client.Close()
}

// Registry 按链 ID（小写 0x hex）管理节点连接，首次使用时建立连接
type Registry struct {
	nodeURLs map[string]string

	mu       sync.Mutex
	adapters map[string]*EthereumAdapter
}

// NewRegistry 从配置创建节点注册表
func NewRegistry(cfg config.Chain) *Registry {
	urls := make(map[string]string, len(cfg.NodeURLs))
	for id, url := range cfg.NodeURLs {
		urls[NormalizeChainID(id)] = url
	}
	return &Registry{
		nodeURLs: urls,
		adapters: make(map[string]*EthereumAdapter),
	}
}

// Adapter 返回链对应的连接
func (r *Registry) Adapter(ctx context.Context, chainID string) (*EthereumAdapter, error) {
	id := NormalizeChainID(chainID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[id]; ok {
		return a, nil
	}

	n, err := ParseChainID(id)
	if err != nil {
		return nil, err
	}
	a, err := NewEthereumAdapter(ctx, n, r.nodeURLs[id])
	if err != nil {
		return nil, err
	}
	r.adapters[id] = a

	log.Debug().Str("chainId", id).Str("endpoint", a.endpoint).Msg("Connected to EVM node")
	return a, nil
}

// ChainIDs 已配置节点的链
func (r *Registry) ChainIDs() []string {
	ids := make([]string, 0, len(r.nodeURLs))
	for id, url := range r.nodeURLs {
		if url != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close 关闭所有连接
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.adapters {
		a.Close()
		delete(r.adapters, id)
	}
}

// NormalizeChainID 统一为小写 0x hex；十进制输入（含 "eip155:<n>"）会被转换
func NormalizeChainID(chainID string) string {
	s := strings.TrimSpace(chainID)
	s = strings.TrimPrefix(s, "eip155:")
	n, err := ParseChainID(s)
	if err != nil {
		return strings.ToLower(s)
	}
	return hexutil.EncodeBig(n)
}

// ParseChainID 解析 0x hex 或十进制链 ID
func ParseChainID(chainID string) (*big.Int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(chainID), "eip155:")
	if s == "" {
		return nil, errors.New("empty chain id")
	}
	n := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, ok = n.SetString(s[2:], 16)
	} else {
		_, ok = n.SetString(s, 10)
	}
	if !ok || n.Sign() <= 0 {
		return nil, errors.Errorf("invalid chain id %q", chainID)
	}
	return n, nil
}
