package state

import (
	"github.com/SafeMPC/aa-keyring/internal/types"
)

// LocalChainID 本地开发链（Hardhat/Anvil 1337）
const LocalChainID = "0x539"

// DefaultLocalBundlerURL 本地 bundler 默认地址
const DefaultLocalBundlerURL = "http://localhost:4337/rpc"

// KnownChainIDs 预置 bundler 地址表的链
var KnownChainIDs = []string{
	"0x1",      // mainnet
	"0x5",      // goerli
	"0xaa36a7", // sepolia
	"0x89",     // polygon
	"0x13881",  // mumbai
	"0xa",      // optimism
	"0xa4b1",   // arbitrum one
	"0x2105",   // base
	LocalChainID,
}

// Document 持久化的整体状态文档，每次修改都整体读-改-写
type Document struct {
	KeyringState         KeyringState               `json:"keyringState"`
	BundlerURLs          map[string]string          `json:"bundlerUrls"`
	UserOpHashesPending  map[string]string          `json:"userOpHashesPending"`
	UserOpPendingOrder   []string                   `json:"userOpPendingOrder,omitempty"`
	SmartAccountActivity map[string]AccountActivity `json:"smartAccountActivity"`
}

// KeyringState 钱包、待处理请求与已签名交易
type KeyringState struct {
	Wallets         map[string]types.Wallet         `json:"wallets"`
	PendingRequests map[string]types.KeyringRequest `json:"pendingRequests"`
	SignedTx        map[string]string               `json:"signedTx"`
}

// AccountActivity 单个账户在各链上的智能账户活动
type AccountActivity struct {
	SCAccount map[string]ChainActivity `json:"scAccount"`
}

// ChainActivity 已确认的 user operation 哈希
type ChainActivity struct {
	UserOpHashesConfirmed []string `json:"userOpHashesConfirmed"`
}

// DefaultBundlerURLs 预置的 bundler 地址表：除本地链外均为空字符串（未配置）
func DefaultBundlerURLs() map[string]string {
	urls := make(map[string]string, len(KnownChainIDs))
	for _, chainID := range KnownChainIDs {
		urls[chainID] = ""
	}
	urls[LocalChainID] = DefaultLocalBundlerURL
	return urls
}

// NewDocument 返回默认形状的状态文档
func NewDocument() *Document {
	return &Document{
		KeyringState: KeyringState{
			Wallets:         make(map[string]types.Wallet),
			PendingRequests: make(map[string]types.KeyringRequest),
			SignedTx:        make(map[string]string),
		},
		BundlerURLs:          DefaultBundlerURLs(),
		UserOpHashesPending:  make(map[string]string),
		SmartAccountActivity: make(map[string]AccountActivity),
	}
}

// normalize 补齐反序列化后缺失的 map
func (d *Document) normalize() {
	if d.KeyringState.Wallets == nil {
		d.KeyringState.Wallets = make(map[string]types.Wallet)
	}
	if d.KeyringState.PendingRequests == nil {
		d.KeyringState.PendingRequests = make(map[string]types.KeyringRequest)
	}
	if d.KeyringState.SignedTx == nil {
		d.KeyringState.SignedTx = make(map[string]string)
	}
	if d.BundlerURLs == nil {
		d.BundlerURLs = DefaultBundlerURLs()
	}
	if d.UserOpHashesPending == nil {
		d.UserOpHashesPending = make(map[string]string)
	}
	if d.SmartAccountActivity == nil {
		d.SmartAccountActivity = make(map[string]AccountActivity)
	}
}
