package invoicing

import (
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// QuoteStatus represents the status of a quote
type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "PENDING"
	QuoteStatusAccepted  QuoteStatus = "ACCEPTED"
	QuoteStatusCancelled QuoteStatus = "CANCELLED"
)

// IsValid checks if the status is a valid QuoteStatus
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusAccepted, QuoteStatusCancelled:
		return true
	}
	return false
}

// Quote is a priced proposal that can be turned into exactly one invoice
type Quote struct {
	shared.BaseAggregateRoot
	Number             string               `json:"number"`
	ClientID           uuid.UUID            `json:"client_id"`
	IssueDate          time.Time            `json:"issue_date"`
	ValidUntil         *time.Time           `json:"valid_until,omitempty"`
	Currency           valueobject.Currency `json:"currency"`
	WithholdingEnabled bool                 `json:"withholding_enabled"`
	Lines              []PricedLine         `json:"lines"`
	Totals
	Status    QuoteStatus `json:"status"`
	InvoiceID *uuid.UUID  `json:"invoice_id,omitempty"`
	Notes     string      `json:"notes,omitempty"`
}

// NewQuoteParams holds the caller-supplied fields of a new quote
type NewQuoteParams struct {
	Number             string
	ClientID           uuid.UUID
	IssueDate          time.Time
	ValidUntil         *time.Time
	WithholdingEnabled bool
	Lines              []LineItem
	Notes              string
}

// NewQuote prices the lines and creates a pending quote
func NewQuote(params NewQuoteParams, aggregator Aggregator) (*Quote, error) {
	if params.Number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Quote number cannot be empty")
	}
	if params.ClientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if len(params.Lines) == 0 {
		return nil, invalidLine("quote %s must have at least one line", params.Number)
	}

	priced, err := aggregator.Price(params.Lines, params.WithholdingEnabled)
	if err != nil {
		return nil, err
	}

	issueDate := params.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}

	q := &Quote{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		Number:             params.Number,
		ClientID:           params.ClientID,
		IssueDate:          issueDate,
		ValidUntil:         params.ValidUntil,
		Currency:           priced.AmountHT.Currency(),
		WithholdingEnabled: params.WithholdingEnabled,
		Lines:              priced.Lines,
		Totals:             priced.Totals,
		Status:             QuoteStatusPending,
		Notes:              params.Notes,
	}

	q.AddDomainEvent(NewQuoteCreatedEvent(q))

	return q, nil
}

// ConvertToInvoice accepts the quote and creates the invoice carrying its
// lines and withholding flag. Totals are recomputed with the rates in force
// at conversion time.
func (q *Quote) ConvertToInvoice(invoiceNumber string, issueDate time.Time, aggregator Aggregator) (*Invoice, error) {
	if q.Status != QuoteStatusPending {
		return nil, shared.NewDomainError(CodeQuoteNotPending,
			fmt.Sprintf("quote %s is %s and cannot be converted", q.Number, q.Status))
	}

	items := make([]LineItem, len(q.Lines))
	for i, l := range q.Lines {
		items[i] = l.LineItem
	}

	quoteID := q.ID
	notes := q.Notes
	if notes == "" {
		notes = fmt.Sprintf("Invoice issued from quote %s", q.Number)
	}
	inv, err := NewInvoice(NewInvoiceParams{
		Number:             invoiceNumber,
		ClientID:           q.ClientID,
		QuoteID:            &quoteID,
		IssueDate:          issueDate,
		WithholdingEnabled: q.WithholdingEnabled,
		Lines:              copyLines(items),
		Notes:              notes,
	}, aggregator)
	if err != nil {
		return nil, err
	}

	invoiceID := inv.ID
	q.Status = QuoteStatusAccepted
	q.InvoiceID = &invoiceID
	q.Touch()
	q.IncrementVersion()

	q.AddDomainEvent(NewQuoteConvertedEvent(q, inv))

	return inv, nil
}

// Cancel marks a pending quote as cancelled
func (q *Quote) Cancel() error {
	if q.Status != QuoteStatusPending {
		return shared.NewDomainError(CodeQuoteNotPending,
			fmt.Sprintf("quote %s is %s and cannot be cancelled", q.Number, q.Status))
	}
	q.Status = QuoteStatusCancelled
	q.Touch()
	q.IncrementVersion()
	return nil
}
