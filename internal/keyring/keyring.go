package keyring

import (
	"context"
	"sync"

	"github.com/SafeMPC/aa-keyring/internal/activity"
	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/SafeMPC/aa-keyring/internal/metrics"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// BundlerProvider 按链提供 bundler 客户端
type BundlerProvider interface {
	ClientFor(ctx context.Context, chainID string) (*bundler.Client, error)
}

// Keyring 账户、请求队列与签名分发。
// 宿主调用由 mu 串行化；状态文档的读-改-写另由 state.Manager 保证原子。
type Keyring struct {
	mu sync.Mutex

	state    *state.Manager
	deriver  *KeyDeriver
	sealer   *Sealer
	notifier HostNotifier
	bundlers BundlerProvider
	activity *activity.Store
	metrics  *metrics.Metrics

	autoApprove    bool
	defaultChainID string
	entryPoint     common.Address
}

// Options 构造 Keyring 的依赖
type Options struct {
	State    *state.Manager
	Deriver  *KeyDeriver
	Sealer   *Sealer
	Notifier HostNotifier
	Bundlers BundlerProvider
	Activity *activity.Store
	Metrics  *metrics.Metrics
}

// New 创建 Keyring
func New(cfg config.Server, opts Options) (*Keyring, error) {
	if opts.State == nil {
		return nil, errors.New("state manager is required")
	}
	if opts.Deriver == nil {
		return nil, errors.New("key deriver is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier()
	}
	if opts.Activity == nil {
		opts.Activity = activity.NewStore(opts.State)
	}

	entryPoint, err := bundler.ParseEntryPoint(cfg.Chain.EntryPointAddress)
	if err != nil {
		return nil, err
	}

	defaultChainID := chain.NormalizeChainID(cfg.Chain.DefaultChainID)
	if defaultChainID == "" {
		defaultChainID = state.LocalChainID
	}

	return &Keyring{
		state:          opts.State,
		deriver:        opts.Deriver,
		sealer:         opts.Sealer,
		notifier:       opts.Notifier,
		bundlers:       opts.Bundlers,
		activity:       opts.Activity,
		metrics:        opts.Metrics,
		autoApprove:    cfg.Keyring.AutoApprove,
		defaultChainID: defaultChainID,
		entryPoint:     entryPoint,
	}, nil
}

// EntryPoint user operation 哈希使用的 EntryPoint
func (k *Keyring) EntryPoint() common.Address {
	return k.entryPoint
}

// DefaultChainID 请求未携带链时使用的链
func (k *Keyring) DefaultChainID() string {
	return k.defaultChainID
}

// Activity user operation 活动存储
func (k *Keyring) Activity() *activity.Store {
	return k.activity
}

// Ping 检查状态存储可用
func (k *Keyring) Ping(ctx context.Context) error {
	return k.state.Ping(ctx)
}
