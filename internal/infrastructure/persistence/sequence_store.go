package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"gorm.io/gorm"
)

const incrementSequenceSQL = `INSERT INTO document_sequences (doc_type, year, value, updated_at) VALUES (?, ?, 1, ?)
ON CONFLICT (doc_type, year) DO UPDATE SET value = document_sequences.value + 1, updated_at = excluded.updated_at
RETURNING value`

// GormSequenceStore keeps document counters in the document_sequences table.
// The upsert is a single statement, so concurrent callers are serialized by
// the row lock and never read the same value.
type GormSequenceStore struct {
	db *gorm.DB
}

// NewGormSequenceStore creates a sequence store on db. Pass the root handle,
// not a transaction: a reserved number must survive a rolled back document.
func NewGormSequenceStore(db *gorm.DB) *GormSequenceStore {
	return &GormSequenceStore{db: db}
}

// Increment implements invoicing.SequenceStore
func (s *GormSequenceStore) Increment(ctx context.Context, docType invoicing.DocumentType, year int) (int64, error) {
	var value int64
	if err := s.db.WithContext(ctx).
		Raw(incrementSequenceSQL, string(docType), year, time.Now()).
		Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("increment %s sequence for %d: %w", docType, year, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("increment %s sequence for %d: no value returned", docType, year)
	}
	return value, nil
}

// Current returns the last value handed out, 0 if none
func (s *GormSequenceStore) Current(ctx context.Context, docType invoicing.DocumentType, year int) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).
		Table("document_sequences").
		Select("value").
		Where("doc_type = ? AND year = ?", string(docType), year).
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Ensure GormSequenceStore implements SequenceStore
var _ invoicing.SequenceStore = (*GormSequenceStore)(nil)
