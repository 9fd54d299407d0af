package webhook

import (
	"container/list"
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DedupeStore records provider_msg_id values already processed so a
// provider retry never enqueues the same UserMessage twice, grounded on
// manifold's orchestrator.DedupeStore.
type DedupeStore interface {
	// SeenBefore reports whether key was already recorded, and records it
	// if not — an atomic check-and-set.
	SeenBefore(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDedupeStore is the production seen-set, backed by SETNX semantics.
type RedisDedupeStore struct {
	client *redis.Client
}

func NewRedisDedupeStore(addr string) (*RedisDedupeStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisDedupeStore{client: client}, nil
}

func (s *RedisDedupeStore) SeenBefore(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, "webhook:seen:"+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	// SetNX returns true when the key was newly set, i.e. NOT seen before.
	return !ok, nil
}

func (s *RedisDedupeStore) Close() error {
	return s.client.Close()
}

// lruDedupeStore is the in-process fallback used when no Redis address is
// configured — a fixed-capacity LRU of recently seen keys.
type lruDedupeStore struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

// NewLRUDedupeStore builds a bounded in-memory DedupeStore.
func NewLRUDedupeStore(capacity int) DedupeStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &lruDedupeStore{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (s *lruDedupeStore) SeenBefore(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.index[key]; ok {
		s.ll.MoveToFront(elem)
		return true, nil
	}

	elem := s.ll.PushFront(key)
	s.index[key] = elem
	for s.ll.Len() > s.capacity {
		oldest := s.ll.Back()
		if oldest == nil {
			break
		}
		s.ll.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}
	return false, nil
}
