package invoicing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterKey struct {
	docType DocumentType
	year    int
}

type fakeSequenceStore struct {
	mu       sync.Mutex
	counters map[counterKey]int64
	err      error
}

func newFakeSequenceStore() *fakeSequenceStore {
	return &fakeSequenceStore{counters: make(map[counterKey]int64)}
}

func (s *fakeSequenceStore) Increment(_ context.Context, docType DocumentType, year int) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := counterKey{docType, year}
	s.counters[k]++
	return s.counters[k], nil
}

func TestSequence_Next(t *testing.T) {
	ctx := context.Background()

	t.Run("formats prefix, year and padded counter", func(t *testing.T) {
		seq := NewSequence(newFakeSequenceStore(), DefaultNumberFormat())

		first, err := seq.Next(ctx, DocumentTypeInvoice, 2024)
		require.NoError(t, err)
		second, err := seq.Next(ctx, DocumentTypeInvoice, 2024)
		require.NoError(t, err)

		assert.Equal(t, "FAC-2024-001", first)
		assert.Equal(t, "FAC-2024-002", second)
	})

	t.Run("series are independent per type and year", func(t *testing.T) {
		seq := NewSequence(newFakeSequenceStore(), DefaultNumberFormat())

		inv, _ := seq.Next(ctx, DocumentTypeInvoice, 2024)
		quote, _ := seq.Next(ctx, DocumentTypeQuote, 2024)
		note, _ := seq.Next(ctx, DocumentTypeCreditNote, 2024)
		reg, _ := seq.Next(ctx, DocumentTypeSettlement, 2024)
		nextYear, _ := seq.Next(ctx, DocumentTypeInvoice, 2025)

		assert.Equal(t, "FAC-2024-001", inv)
		assert.Equal(t, "DEV-2024-001", quote)
		assert.Equal(t, "AVO-2024-001", note)
		assert.Equal(t, "REG-2024-001", reg)
		assert.Equal(t, "FAC-2025-001", nextYear)
	})

	t.Run("counter wider than the padding is kept whole", func(t *testing.T) {
		store := newFakeSequenceStore()
		store.counters[counterKey{DocumentTypeInvoice, 2024}] = 999
		seq := NewSequence(store, DefaultNumberFormat())

		n, err := seq.Next(ctx, DocumentTypeInvoice, 2024)
		require.NoError(t, err)
		assert.Equal(t, "FAC-2024-1000", n)
	})

	t.Run("custom prefixes and padding", func(t *testing.T) {
		seq := NewSequence(newFakeSequenceStore(), NumberFormat{
			Prefixes: map[DocumentType]string{DocumentTypeInvoice: "INV"},
			Padding:  5,
		})

		inv, _ := seq.Next(ctx, DocumentTypeInvoice, 2024)
		quote, _ := seq.Next(ctx, DocumentTypeQuote, 2024)
		assert.Equal(t, "INV-2024-00001", inv)
		assert.Equal(t, "DEV-2024-00001", quote)
	})

	t.Run("concurrent callers never share a number", func(t *testing.T) {
		seq := NewSequence(newFakeSequenceStore(), DefaultNumberFormat())

		const workers = 50
		results := make(chan string, workers)
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := seq.Next(ctx, DocumentTypeInvoice, 2024)
				if err == nil {
					results <- n
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[string]bool)
		for n := range results {
			assert.False(t, seen[n], "duplicate number %s", n)
			seen[n] = true
		}
		assert.Len(t, seen, workers)
	})

	t.Run("rejects unknown type and bad year", func(t *testing.T) {
		seq := NewSequence(newFakeSequenceStore(), DefaultNumberFormat())
		_, err := seq.Next(ctx, DocumentType("RECEIPT"), 2024)
		assert.Error(t, err)
		_, err = seq.Next(ctx, DocumentTypeInvoice, 0)
		assert.Error(t, err)
	})

	t.Run("store failures are wrapped", func(t *testing.T) {
		store := newFakeSequenceStore()
		store.err = errors.New("connection refused")
		seq := NewSequence(store, DefaultNumberFormat())

		_, err := seq.Next(ctx, DocumentTypeInvoice, 2024)
		require.Error(t, err)
		assert.ErrorIs(t, err, store.err)
	})
}

func TestNumberFormat_Parse(t *testing.T) {
	f := DefaultNumberFormat()

	for _, docType := range []DocumentType{DocumentTypeInvoice, DocumentTypeQuote, DocumentTypeCreditNote, DocumentTypeSettlement} {
		t.Run(string(docType), func(t *testing.T) {
			number, err := f.Format(docType, 2024, 42)
			require.NoError(t, err)

			gotType, year, seq, err := f.Parse(number)
			require.NoError(t, err)
			assert.Equal(t, docType, gotType)
			assert.Equal(t, 2024, year)
			assert.Equal(t, int64(42), seq)
		})
	}

	for _, bad := range []string{"FAC-2024", "XYZ-2024-001", "FAC-20x4-001", "FAC-2024-abc"} {
		t.Run(fmt.Sprintf("rejects %s", bad), func(t *testing.T) {
			_, _, _, err := f.Parse(bad)
			assert.Error(t, err)
		})
	}
}
