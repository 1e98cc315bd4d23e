package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StorageKey holds the lowercase session address.
const StorageKey = "vibescrow_wallet_address"

// Store persists the session address between runs.
type Store interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, address string) error
	Clear(ctx context.Context) error
}

type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore scopes the key with namespace, e.g. a profile name.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	key := StorageKey
	if namespace != "" {
		key = namespace + ":" + StorageKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Get(ctx context.Context) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func (s *RedisStore) Set(ctx context.Context, address string) error {
	return s.client.Set(ctx, s.key, address, 0).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

type MemoryStore struct {
	mu      sync.Mutex
	address string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address, s.address != "", nil
}

func (s *MemoryStore) Set(_ context.Context, address string) error {
	s.mu.Lock()
	s.address = address
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.address = ""
	s.mu.Unlock()
	return nil
}
