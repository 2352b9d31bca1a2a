package cache

import (
	"context"
	"testing"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// unreachableRedis points at a port nothing listens on
func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{Host: "127.0.0.1", Port: 1}
}

func TestStoreFactory_CreateSequenceStore(t *testing.T) {
	f := NewStoreFactory(unreachableRedis())
	defer f.Close()

	t.Run("memory backend", func(t *testing.T) {
		store, err := f.CreateSequenceStore(config.SequenceBackendMemory, nil)
		require.NoError(t, err)
		assert.IsType(t, &InMemorySequenceStore{}, store)
	})

	t.Run("database backend returns the given store", func(t *testing.T) {
		db := NewInMemorySequenceStore()
		store, err := f.CreateSequenceStore(config.SequenceBackendDatabase, db)
		require.NoError(t, err)
		assert.Same(t, db, store)
	})

	t.Run("database backend without store", func(t *testing.T) {
		_, err := f.CreateSequenceStore(config.SequenceBackendDatabase, nil)
		assert.Error(t, err)
	})

	t.Run("redis backend fails when redis is down", func(t *testing.T) {
		_, err := f.CreateSequenceStore(config.SequenceBackendRedis, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis")
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := f.CreateSequenceStore("etcd", nil)
		assert.Error(t, err)
	})
}

func TestStoreFactory_CreateIdempotencyStore(t *testing.T) {
	t.Run("falls back to memory and warns", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		f := NewStoreFactory(unreachableRedis(), WithLogger(zap.New(core)))
		defer f.Close()

		store, err := f.CreateIdempotencyStore()
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewStoreFactory(unreachableRedis(), WithInMemoryFallback(false))
		defer f.Close()

		_, err := f.CreateIdempotencyStore()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})
}

func TestInMemorySequenceStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySequenceStore()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, invoicing.DocumentTypeInvoice, 2025)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	t.Run("series are independent per type and year", func(t *testing.T) {
		got, err := store.Increment(ctx, invoicing.DocumentTypeCreditNote, 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		got, err = store.Increment(ctx, invoicing.DocumentTypeInvoice, 2026)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("seed continues numbering", func(t *testing.T) {
		store.Seed(invoicing.DocumentTypeQuote, 2025, 41)
		got, err := store.Increment(ctx, invoicing.DocumentTypeQuote, 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Increment(cctx, invoicing.DocumentTypeInvoice, 2025)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestInMemorySequenceStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySequenceStore()
	const n = 200

	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			v, _ := store.Increment(ctx, invoicing.DocumentTypeInvoice, 2025)
			results <- v
		}()
	}

	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		v := <-results
		assert.False(t, seen[v], "value %d handed out twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

func TestRedisSequenceStore_Key(t *testing.T) {
	s := NewRedisSequenceStoreWithClient(nil, "")
	assert.Equal(t, "invoicing:seq:INVOICE:2025", s.Key(invoicing.DocumentTypeInvoice, 2025))

	custom := NewRedisSequenceStoreWithClient(nil, "acme:")
	assert.Equal(t, "acme:CREDIT_NOTE:2024", custom.Key(invoicing.DocumentTypeCreditNote, 2024))
}
