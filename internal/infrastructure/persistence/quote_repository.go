package persistence

import (
	"context"
	"errors"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormQuoteRepository implements QuoteRepository using GORM
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

// FindByID finds a quote by its ID
func (r *GormQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Quote, error) {
	var model models.QuoteModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderByPosition).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new quote with its lines
func (r *GormQuoteRepository) Create(ctx context.Context, quote *invoicing.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if isUniqueViolation(err) {
		return invoicing.NewDuplicateNumberError(quote.Number)
	}
	if err != nil {
		return err
	}
	quote.MarkPersisted()
	return nil
}

// SaveWithLock saves with optimistic locking (version check).
// Quote lines are immutable once issued.
func (r *GormQuoteRepository) SaveWithLock(ctx context.Context, quote *invoicing.Quote) error {
	expected := quote.LoadedVersion()
	result := r.db.WithContext(ctx).Model(&models.QuoteModel{}).
		Where("id = ? AND version = ?", quote.ID, expected).
		Updates(map[string]any{
			"status":     string(quote.Status),
			"invoice_id": quote.InvoiceID,
			"notes":      quote.Notes,
			"version":    quote.Version,
			"updated_at": quote.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	quote.MarkPersisted()
	return nil
}

// Ensure GormQuoteRepository implements QuoteRepository
var _ invoicing.QuoteRepository = (*GormQuoteRepository)(nil)
