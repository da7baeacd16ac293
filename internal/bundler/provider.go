package bundler

import (
	"context"
	"sort"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Provider 从状态文档中的 bundler 地址表创建客户端
type Provider struct {
	state      *state.Manager
	entryPoint common.Address
	timeout    time.Duration
}

// NewProvider 创建 bundler 客户端提供者；所有客户端都向 entryPoint 提交
func NewProvider(manager *state.Manager, entryPoint common.Address, timeout time.Duration) *Provider {
	if entryPoint == (common.Address{}) {
		entryPoint = DefaultEntryPoint
	}
	return &Provider{state: manager, entryPoint: entryPoint, timeout: timeout}
}

// EntryPoint 提交 user operation 使用的 EntryPoint
func (p *Provider) EntryPoint() common.Address {
	return p.entryPoint
}

// ClientFor 返回链对应的 bundler 客户端，未配置时返回 ErrBundlerNotConfigured
func (p *Provider) ClientFor(ctx context.Context, chainID string) (*Client, error) {
	urls, err := p.GetURLs(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, chainID, urls, p.entryPoint, p.timeout)
}

// GetURLs 当前地址表（副本）
func (p *Provider) GetURLs(ctx context.Context) (map[string]string, error) {
	doc, err := p.state.Get(ctx)
	if err != nil {
		return nil, err
	}
	urls := make(map[string]string, len(doc.BundlerURLs))
	for k, v := range doc.BundlerURLs {
		urls[k] = v
	}
	return urls, nil
}

// StoreURL 设置单条链的 bundler 地址，不影响其他链
func (p *Provider) StoreURL(ctx context.Context, chainID, url string) error {
	id := chain.NormalizeChainID(chainID)
	if _, err := chain.ParseChainID(id); err != nil {
		return errors.Wrap(types.ErrInvalidParams, err.Error())
	}

	err := p.state.Update(ctx, func(doc *state.Document) error {
		doc.BundlerURLs[id] = url
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("chainId", id).Str("url", url).Msg("Bundler URL updated")
	return nil
}

// SeedURLs 启动时写入配置中的地址，只覆盖尚未配置的链
func (p *Provider) SeedURLs(ctx context.Context, urls map[string]string) error {
	if len(urls) == 0 {
		return nil
	}
	ids := make([]string, 0, len(urls))
	for id := range urls {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return p.state.Update(ctx, func(doc *state.Document) error {
		for _, raw := range ids {
			id := chain.NormalizeChainID(raw)
			if doc.BundlerURLs[id] == "" {
				doc.BundlerURLs[id] = urls[raw]
			}
		}
		return nil
	})
}
