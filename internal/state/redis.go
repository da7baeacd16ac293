package state

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore 将整个文档保存在一个 Redis key 下
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return val, nil
}

func (s *RedisStore) Save(ctx context.Context, doc []byte) error {
	return errors.Wrap(s.client.Set(ctx, s.key, doc, 0).Err(), "redis set")
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.client.Del(ctx, s.key).Err(), "redis del")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
