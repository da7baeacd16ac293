package state

import (
	"context"
)

// Store 底层键值存储契约：只关心 get/set/clear 整个文档
type Store interface {
	// Load 返回已保存的文档，未初始化时返回 (nil, nil)
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
	Clear(ctx context.Context) error
	Close() error
}
