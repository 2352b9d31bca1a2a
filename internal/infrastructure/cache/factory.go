package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreFactory creates sequence and idempotency stores based on configuration.
// Redis-backed stores share one client.
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	mu     sync.Mutex
	client redis.UniversalClient
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory
// idempotency store when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient injects an existing Redis client
func WithClient(client redis.UniversalClient) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.client = client
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// redisClient connects lazily and pings once
func (f *StoreFactory) redisClient() (redis.UniversalClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	f.client = client
	return client, nil
}

// CreateSequenceStore returns the store for backend. The database store is
// built by the caller, since it lives on the SQL connection.
func (f *StoreFactory) CreateSequenceStore(backend string, database invoicing.SequenceStore) (invoicing.SequenceStore, error) {
	switch backend {
	case config.SequenceBackendRedis:
		client, err := f.redisClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis sequence store: %w", err)
		}
		f.logger.Info("using Redis sequence store", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisSequenceStoreWithClient(client, ""), nil
	case config.SequenceBackendMemory:
		f.logger.Warn("using in-memory sequence store, numbers restart with the process")
		return NewInMemorySequenceStore(), nil
	case config.SequenceBackendDatabase, "":
		if database == nil {
			return nil, fmt.Errorf("database sequence store is not configured")
		}
		return database, nil
	default:
		return nil, fmt.Errorf("unknown sequence backend %q", backend)
	}
}

// CreateIdempotencyStore tries Redis first and falls back to memory when
// allowed
func (f *StoreFactory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStoreWithClient(client, ""), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Payment keys are not shared between processes.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// Close closes the shared Redis client if one was opened
func (f *StoreFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
