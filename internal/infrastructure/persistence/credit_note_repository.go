package persistence

import (
	"context"
	"errors"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormCreditNoteRepository implements CreditNoteRepository using GORM
type GormCreditNoteRepository struct {
	db *gorm.DB
}

// NewGormCreditNoteRepository creates a new GormCreditNoteRepository
func NewGormCreditNoteRepository(db *gorm.DB) *GormCreditNoteRepository {
	return &GormCreditNoteRepository{db: db}
}

// FindByID finds a credit note by its ID
func (r *GormCreditNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.CreditNote, error) {
	var model models.CreditNoteModel
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

// FindByNumber finds a credit note by its document number
func (r *GormCreditNoteRepository) FindByNumber(ctx context.Context, number string) (*invoicing.CreditNote, error) {
	var model models.CreditNoteModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderByPosition).
		Where("number = ?", number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists credit notes matching the filter
func (r *GormCreditNoteRepository) FindAll(ctx context.Context, filter invoicing.CreditNoteFilter) ([]invoicing.CreditNote, error) {
	query := r.db.WithContext(ctx).Model(&models.CreditNoteModel{}).Preload("Lines", orderByPosition)
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	query = applyPageAndOrder(query, filter.Filter, CreditNoteSortFields)

	var rows []models.CreditNoteModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.Map(rows, func(m models.CreditNoteModel, _ int) invoicing.CreditNote {
		return *m.ToDomain()
	}), nil
}

// Create inserts a new credit note with its lines
func (r *GormCreditNoteRepository) Create(ctx context.Context, note *invoicing.CreditNote) error {
	model := models.CreditNoteModelFromDomain(note)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if isUniqueViolation(err) {
		return invoicing.NewDuplicateNumberError(note.Number)
	}
	if err != nil {
		return err
	}
	note.MarkPersisted()
	return nil
}

// SaveWithLock saves with optimistic locking (version check).
// The refund lines are replaced as a whole.
func (r *GormCreditNoteRepository) SaveWithLock(ctx context.Context, note *invoicing.CreditNote) error {
	expected := note.LoadedVersion()
	model := models.CreditNoteModelFromDomain(note)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CreditNoteModel{}).
			Where("id = ? AND version = ?", note.ID, expected).
			Updates(map[string]any{
				"status":        model.Status,
				"amount_ht":     model.AmountHT,
				"amount_ttc":    model.AmountTTC,
				"reason":        model.Reason,
				"validated_at":  model.ValidatedAt,
				"refused_at":    model.RefusedAt,
				"refuse_reason": model.RefuseReason,
				"version":       model.Version,
				"updated_at":    model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		if err := tx.Where("credit_note_id = ?", note.ID).
			Delete(&models.CreditNoteLineModel{}).Error; err != nil {
			return err
		}
		if len(model.Lines) > 0 {
			if err := tx.Create(&model.Lines).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	note.MarkPersisted()
	return nil
}

// Delete removes a credit note and its lines
func (r *GormCreditNoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("credit_note_id = ?", id).
			Delete(&models.CreditNoteLineModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.CreditNoteModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Ensure GormCreditNoteRepository implements CreditNoteRepository
var _ invoicing.CreditNoteRepository = (*GormCreditNoteRepository)(nil)
