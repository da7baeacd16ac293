package state

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// BadgerStore 基于 Badger 的本地持久化存储
type BadgerStore struct {
	db  *badger.DB
	key []byte
}

// NewBadgerStore 在 path 打开 Badger；path 为空时使用内存模式
func NewBadgerStore(path string, key string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Cannot acquire directory lock") {
			return nil, errors.Wrapf(err, "state database at %s is locked by another process", path)
		}
		return nil, errors.Wrapf(err, "failed to open state database at %s", path)
	}
	return &BadgerStore{db: db, key: []byte(key)}, nil
}

func (s *BadgerStore) Load(_ context.Context) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "badger get")
	}
	return val, nil
}

func (s *BadgerStore) Save(_ context.Context, doc []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, doc)
	})
	return errors.Wrap(err, "badger put")
}

func (s *BadgerStore) Clear(_ context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key)
	})
	return errors.Wrap(err, "badger delete")
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
