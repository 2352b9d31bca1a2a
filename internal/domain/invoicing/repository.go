package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	ClientID *uuid.UUID
	Status   *PaymentStatus
	Year     *int
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice with its lines and settlements
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its document number
	FindByNumber(ctx context.Context, number string) (*Invoice, error)

	// FindAll lists invoices matching the filter
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// Create inserts a new invoice; a taken number yields ErrDuplicateNumber
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock persists changes if the stored version still equals the
	// version the invoice was loaded with, else returns shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// CreditNoteFilter defines filtering options for credit note queries
type CreditNoteFilter struct {
	shared.Filter
	InvoiceID *uuid.UUID
	Status    *CreditNoteStatus
}

// CreditNoteRepository defines the interface for credit note persistence
type CreditNoteRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CreditNote, error)
	FindByNumber(ctx context.Context, number string) (*CreditNote, error)
	FindAll(ctx context.Context, filter CreditNoteFilter) ([]CreditNote, error)
	Create(ctx context.Context, note *CreditNote) error
	SaveWithLock(ctx context.Context, note *CreditNote) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// QuoteRepository defines the interface for quote persistence
type QuoteRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Quote, error)
	Create(ctx context.Context, quote *Quote) error
	SaveWithLock(ctx context.Context, quote *Quote) error
}
