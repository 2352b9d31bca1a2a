package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func orderBySettledAt(db *gorm.DB) *gorm.DB {
	return db.Order("settled_at ASC, created_at ASC")
}

func (r *GormInvoiceRepository) withAssociations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", orderByPosition).
		Preload("Settlements", orderBySettledAt)
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.withAssociations(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its document number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.withAssociations(ctx).Where("number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists invoices matching the filter
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	query := r.withAssociations(ctx).Model(&models.InvoiceModel{})
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Year != nil {
		start := time.Date(*filter.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("issue_date >= ? AND issue_date < ?", start, start.AddDate(1, 0, 0))
	}
	query = applyPageAndOrder(query, filter.Filter, InvoiceSortFields)

	var rows []models.InvoiceModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.Map(rows, func(m models.InvoiceModel, _ int) invoicing.Invoice {
		return *m.ToDomain()
	}), nil
}

// Create inserts a new invoice with its lines and settlements
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if isUniqueViolation(err) {
		return invoicing.NewDuplicateNumberError(inv.Number)
	}
	if err != nil {
		return err
	}
	inv.MarkPersisted()
	return nil
}

// SaveWithLock saves with optimistic locking (version check).
// Lines only ever change their credited columns and settlements are
// append-only, so both are written incrementally.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	expected := inv.LoadedVersion()
	model := models.InvoiceModelFromDomain(inv)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ?", inv.ID, expected).
			Updates(map[string]any{
				"amount_paid":   model.AmountPaid,
				"amount_due":    model.AmountDue,
				"status":        model.Status,
				"notes":         model.Notes,
				"cancelled_at":  model.CancelledAt,
				"cancel_reason": model.CancelReason,
				"version":       model.Version,
				"updated_at":    model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		for _, line := range model.Lines {
			if line.ReturnedQuantity == 0 {
				continue
			}
			if err := tx.Model(&models.InvoiceLineModel{}).
				Where("id = ? AND invoice_id = ?", line.ID, inv.ID).
				Updates(map[string]any{
					"returned_quantity": line.ReturnedQuantity,
					"credited_ht":       line.CreditedHT,
					"credited_ttc":      line.CreditedTTC,
					"updated_at":        model.UpdatedAt,
				}).Error; err != nil {
				return err
			}
		}

		if len(model.Settlements) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.Settlements).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	inv.MarkPersisted()
	return nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
