package activity

import (
	"context"
	"sort"
	"strings"

	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/pkg/errors"
)

// Record 一条 user operation 活动
type Record struct {
	AccountID  string `json:"accountId"`
	ChainID    string `json:"chainId"`
	UserOpHash string `json:"userOpHash"`
}

// Key "<accountId>-<chainId>-<hash>"
func (r Record) Key() string {
	return r.AccountID + "-" + r.ChainID + "-" + r.UserOpHash
}

// ParseKey 从右侧解析 pending key（账户 ID 是 UUID，本身含 '-'）
func ParseKey(key string) (Record, error) {
	i := strings.LastIndex(key, "-")
	if i <= 0 {
		return Record{}, errors.Errorf("malformed activity key %q", key)
	}
	hash := key[i+1:]
	rest := key[:i]
	j := strings.LastIndex(rest, "-")
	if j <= 0 || hash == "" || j == len(rest)-1 {
		return Record{}, errors.Errorf("malformed activity key %q", key)
	}
	return Record{AccountID: rest[:j], ChainID: rest[j+1:], UserOpHash: hash}, nil
}

// Store 按账户、按链记录 pending / confirmed 的 user operation 哈希
type Store struct {
	state *state.Manager
}

// NewStore 创建活动存储
func NewStore(manager *state.Manager) *Store {
	return &Store{state: manager}
}

func normalize(r Record) Record {
	r.ChainID = chain.NormalizeChainID(r.ChainID)
	r.UserOpHash = strings.ToLower(r.UserOpHash)
	return r
}

// RecordPending 记录已提交的哈希
func (s *Store) RecordPending(ctx context.Context, r Record) error {
	r = normalize(r)
	return s.state.Update(ctx, func(doc *state.Document) error {
		if confirmed(doc, r) {
			return nil
		}
		if _, ok := doc.UserOpHashesPending[r.Key()]; !ok {
			doc.UserOpPendingOrder = append(doc.UserOpPendingOrder, r.Key())
		}
		doc.UserOpHashesPending[r.Key()] = r.UserOpHash
		return nil
	})
}

// RecordConfirmed 从 pending 移除并追加到 confirmed，一次写入完成
func (s *Store) RecordConfirmed(ctx context.Context, r Record) error {
	r = normalize(r)
	return s.state.Update(ctx, func(doc *state.Document) error {
		removePending(doc, r.Key())
		if confirmed(doc, r) {
			return nil
		}

		acc := doc.SmartAccountActivity[r.AccountID]
		if acc.SCAccount == nil {
			acc.SCAccount = make(map[string]state.ChainActivity)
		}
		ch := acc.SCAccount[r.ChainID]
		ch.UserOpHashesConfirmed = append(ch.UserOpHashesConfirmed, r.UserOpHash)
		acc.SCAccount[r.ChainID] = ch
		doc.SmartAccountActivity[r.AccountID] = acc
		return nil
	})
}

func removePending(doc *state.Document, key string) {
	delete(doc.UserOpHashesPending, key)
	order := doc.UserOpPendingOrder[:0]
	for _, k := range doc.UserOpPendingOrder {
		if k != key {
			order = append(order, k)
		}
	}
	doc.UserOpPendingOrder = order
}

func confirmed(doc *state.Document, r Record) bool {
	for _, h := range doc.SmartAccountActivity[r.AccountID].SCAccount[r.ChainID].UserOpHashesConfirmed {
		if h == r.UserOpHash {
			return true
		}
	}
	return false
}

// ListPending 所有 pending 记录，按提交先后排序；
// 没有顺序信息的旧记录排在最后，按 key 排序
func (s *Store) ListPending(ctx context.Context) ([]Record, error) {
	doc, err := s.state.Get(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc.UserOpHashesPending))
	seen := make(map[string]bool, len(doc.UserOpHashesPending))
	for _, k := range doc.UserOpPendingOrder {
		if _, ok := doc.UserOpHashesPending[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range doc.UserOpHashesPending {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		r, err := ParseKey(k)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// ListConfirmed 账户在某条链上已确认的哈希（按确认顺序）
func (s *Store) ListConfirmed(ctx context.Context, accountID, chainID string) ([]string, error) {
	doc, err := s.state.Get(ctx)
	if err != nil {
		return nil, err
	}
	hashes := doc.SmartAccountActivity[accountID].SCAccount[chain.NormalizeChainID(chainID)].UserOpHashesConfirmed
	return append([]string{}, hashes...), nil
}

// Clear 清空账户的 pending 与 confirmed 记录
func (s *Store) Clear(ctx context.Context, accountID string) error {
	return s.state.Update(ctx, func(doc *state.Document) error {
		for k := range doc.UserOpHashesPending {
			r, err := ParseKey(k)
			if err == nil && r.AccountID == accountID {
				removePending(doc, k)
			}
		}
		delete(doc.SmartAccountActivity, accountID)
		return nil
	})
}
