package smartaccount

import (
	"context"
	"sync"

	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// ReaderSource 按链 ID 提供 ChainReader
type ReaderSource interface {
	ChainReader(ctx context.Context, chainID string) (ChainReader, error)
}

type registrySource struct {
	registry *chain.Registry
}

// NewRegistrySource 以节点注册表作为 ChainReader 来源
func NewRegistrySource(registry *chain.Registry) ReaderSource {
	return &registrySource{registry: registry}
}

func (s *registrySource) ChainReader(ctx context.Context, chainID string) (ChainReader, error) {
	a, err := s.registry.Adapter(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return a.Client(), nil
}

// Provider 每条链一个 API 实例，地址缓存随实例保留
type Provider struct {
	source     ReaderSource
	entryPoint common.Address
	factory    common.Address
	cacheSize  int

	mu   sync.Mutex
	apis map[string]*API
}

// NewProvider 创建智能账户 API 提供者
func NewProvider(source ReaderSource, cfg config.Chain) (*Provider, error) {
	entryPoint, err := bundler.ParseEntryPoint(cfg.EntryPointAddress)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(cfg.FactoryAddress) {
		return nil, errors.Errorf("invalid factory address %q", cfg.FactoryAddress)
	}
	return &Provider{
		source:     source,
		entryPoint: entryPoint,
		factory:    common.HexToAddress(cfg.FactoryAddress),
		cacheSize:  cfg.AddressCacheSize,
		apis:       make(map[string]*API),
	}, nil
}

// EntryPoint 配置的 EntryPoint 地址
func (p *Provider) EntryPoint() common.Address {
	return p.entryPoint
}

// For 返回链对应的 API
func (p *Provider) For(ctx context.Context, chainID string) (*API, error) {
	id := chain.NormalizeChainID(chainID)
	n, err := chain.ParseChainID(id)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if api, ok := p.apis[id]; ok {
		return api, nil
	}

	reader, err := p.source.ChainReader(ctx, id)
	if err != nil {
		return nil, err
	}

	var cache *lru.Cache[common.Address, common.Address]
	if p.cacheSize > 0 {
		cache, err = lru.New[common.Address, common.Address](p.cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create address cache")
		}
	}

	api := NewAPI(reader, n, p.entryPoint, p.factory, cache)
	p.apis[id] = api
	return api, nil
}
