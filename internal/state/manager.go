package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Manager 在 Store 之上提供整体文档的读-改-写
type Manager struct {
	store Store
	mu    sync.Mutex
}

// NewManager 创建状态管理器
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Get 读取文档；未初始化时写入默认形状后返回
func (m *Manager) Get(ctx context.Context) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Update 在同一把锁内完成 get → mutate → put，fn 返回错误时不写回
func (m *Manager) Update(ctx context.Context, fn func(doc *Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return m.save(ctx, doc)
}

// Clear 清空整个文档，下一次 Get 会重新写入默认值
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "failed to clear state")
	}
	return nil
}

// Ping 检查底层存储是否可读
func (m *Manager) Ping(ctx context.Context) error {
	_, err := m.store.Load(ctx)
	return err
}

func (m *Manager) load(ctx context.Context) (*Document, error) {
	raw, err := m.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load state")
	}

	if len(raw) == 0 {
		doc := NewDocument()
		if err := m.save(ctx, doc); err != nil {
			return nil, err
		}
		log.Debug().Msg("Initialized default keyring state document")
		return doc, nil
	}

	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode state document")
	}
	doc.normalize()
	return doc, nil
}

func (m *Manager) save(ctx context.Context, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode state document")
	}
	if err := m.store.Save(ctx, raw); err != nil {
		return errors.Wrap(err, "failed to save state")
	}
	return nil
}
