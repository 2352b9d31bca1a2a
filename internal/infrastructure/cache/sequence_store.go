package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/redis/go-redis/v9"
)

const defaultSequencePrefix = "invoicing:seq:"

// RedisSequenceStore hands out document counters with INCR, which Redis
// executes atomically across every client.
type RedisSequenceStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisSequenceStoreWithClient creates a sequence store on an existing client
func NewRedisSequenceStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisSequenceStore {
	if keyPrefix == "" {
		keyPrefix = defaultSequencePrefix
	}
	return &RedisSequenceStore{client: client, keyPrefix: keyPrefix}
}

// Key returns the Redis key of a (type, year) counter
func (s *RedisSequenceStore) Key(docType invoicing.DocumentType, year int) string {
	return fmt.Sprintf("%s%s:%d", s.keyPrefix, docType, year)
}

// Increment implements invoicing.SequenceStore
func (s *RedisSequenceStore) Increment(ctx context.Context, docType invoicing.DocumentType, year int) (int64, error) {
	value, err := s.client.Incr(ctx, s.Key(docType, year)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s sequence: %w", docType, err)
	}
	return value, nil
}

// Close closes the Redis client
func (s *RedisSequenceStore) Close() error {
	return s.client.Close()
}

type sequenceKey struct {
	docType invoicing.DocumentType
	year    int
}

// InMemorySequenceStore keeps counters in a mutex-guarded map.
// Numbers restart with the process; use it for tests and local runs only.
type InMemorySequenceStore struct {
	mu       sync.Mutex
	counters map[sequenceKey]int64
}

// NewInMemorySequenceStore creates an empty in-memory sequence store
func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{counters: make(map[sequenceKey]int64)}
}

// Increment implements invoicing.SequenceStore
func (s *InMemorySequenceStore) Increment(ctx context.Context, docType invoicing.DocumentType, year int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sequenceKey{docType: docType, year: year}
	s.counters[k]++
	return s.counters[k], nil
}

// Seed sets a counter, for importing numbering from another system
func (s *InMemorySequenceStore) Seed(docType invoicing.DocumentType, year int, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[sequenceKey{docType: docType, year: year}] = value
}

// Ensure the stores implement SequenceStore
var (
	_ invoicing.SequenceStore = (*RedisSequenceStore)(nil)
	_ invoicing.SequenceStore = (*InMemorySequenceStore)(nil)
)
