package invoicing

import (
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeInvoice    = "Invoice"
	AggregateTypeCreditNote = "CreditNote"
	AggregateTypeQuote      = "Quote"
)

// Event type constants
const (
	EventTypeInvoiceCreated      = "InvoiceCreated"
	EventTypePaymentApplied      = "PaymentApplied"
	EventTypeInvoicePaid         = "InvoicePaid"
	EventTypeInvoiceCancelled    = "InvoiceCancelled"
	EventTypeInvoiceCredited     = "InvoiceCredited"
	EventTypeCreditNoteCreated   = "CreditNoteCreated"
	EventTypeCreditNoteUpdated   = "CreditNoteUpdated"
	EventTypeCreditNoteValidated = "CreditNoteValidated"
	EventTypeCreditNoteRefused   = "CreditNoteRefused"
	EventTypeQuoteCreated        = "QuoteCreated"
	EventTypeQuoteConverted      = "QuoteConverted"
)

// StockReturn is a quantity of goods that goes back into stock
type StockReturn struct {
	ArticleID uuid.UUID `json:"article_id"`
	Quantity  int64     `json:"quantity"`
}

// InvoiceCreatedEvent is raised when an invoice is issued
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	Number    string            `json:"number"`
	ClientID  uuid.UUID         `json:"client_id"`
	AmountHT  valueobject.Money `json:"amount_ht"`
	AmountTTC valueobject.Money `json:"amount_ttc"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		Number:          inv.Number,
		ClientID:        inv.ClientID,
		AmountHT:        inv.AmountHT,
		AmountTTC:       inv.AmountTTC,
	}
}

// PaymentAppliedEvent is raised for every payment recorded on an invoice
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber    string            `json:"invoice_number"`
	SettlementID     uuid.UUID         `json:"settlement_id"`
	SettlementNumber string            `json:"settlement_number"`
	Amount           valueobject.Money `json:"amount"`
	Method           PaymentMethod     `json:"method"`
	AmountPaid       valueobject.Money `json:"amount_paid"`
	AmountDue        valueobject.Money `json:"amount_due"`
	Status           PaymentStatus     `json:"status"`
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(inv *Invoice, s *Settlement) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentApplied, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:    inv.Number,
		SettlementID:     s.ID,
		SettlementNumber: s.Number,
		Amount:           s.Amount,
		Method:           s.Method,
		AmountPaid:       inv.AmountPaid,
		AmountDue:        inv.AmountDue,
		Status:           inv.Status,
	}
}

// InvoicePaidEvent is raised when an invoice becomes fully paid
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	Number    string            `json:"number"`
	AmountTTC valueobject.Money `json:"amount_ttc"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, AggregateTypeInvoice, inv.ID),
		Number:          inv.Number,
		AmountTTC:       inv.AmountTTC,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled.
// Restock lists the goods still out with the client.
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	Number  string        `json:"number"`
	Reason  string        `json:"reason"`
	Restock []StockReturn `json:"restock"`
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice, restock []StockReturn) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID),
		Number:          inv.Number,
		Reason:          inv.CancelReason,
		Restock:         restock,
	}
}

// InvoiceCreditedEvent is raised when a validated credit note reduces the balance
type InvoiceCreditedEvent struct {
	shared.BaseDomainEvent
	Number           string            `json:"number"`
	CreditNoteID     uuid.UUID         `json:"credit_note_id"`
	CreditNoteNumber string            `json:"credit_note_number"`
	Amount           valueobject.Money `json:"amount"`
	AmountDue        valueobject.Money `json:"amount_due"`
	Status           PaymentStatus     `json:"status"`
}

// NewInvoiceCreditedEvent creates a new InvoiceCreditedEvent
func NewInvoiceCreditedEvent(inv *Invoice, cn *CreditNote) *InvoiceCreditedEvent {
	return &InvoiceCreditedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceCredited, AggregateTypeInvoice, inv.ID),
		Number:           inv.Number,
		CreditNoteID:     cn.ID,
		CreditNoteNumber: cn.Number,
		Amount:           cn.AmountTTC,
		AmountDue:        inv.AmountDue,
		Status:           inv.Status,
	}
}

// CreditNoteCreatedEvent is raised when a credit note is drafted
type CreditNoteCreatedEvent struct {
	shared.BaseDomainEvent
	Number    string            `json:"number"`
	InvoiceID uuid.UUID         `json:"invoice_id"`
	AmountHT  valueobject.Money `json:"amount_ht"`
	AmountTTC valueobject.Money `json:"amount_ttc"`
}

// NewCreditNoteCreatedEvent creates a new CreditNoteCreatedEvent
func NewCreditNoteCreatedEvent(cn *CreditNote) *CreditNoteCreatedEvent {
	return &CreditNoteCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteCreated, AggregateTypeCreditNote, cn.ID),
		Number:          cn.Number,
		InvoiceID:       cn.InvoiceID,
		AmountHT:        cn.AmountHT,
		AmountTTC:       cn.AmountTTC,
	}
}

// CreditNoteUpdatedEvent is raised when a pending note's selection changes
type CreditNoteUpdatedEvent struct {
	shared.BaseDomainEvent
	Number    string            `json:"number"`
	AmountTTC valueobject.Money `json:"amount_ttc"`
}

// NewCreditNoteUpdatedEvent creates a new CreditNoteUpdatedEvent
func NewCreditNoteUpdatedEvent(cn *CreditNote) *CreditNoteUpdatedEvent {
	return &CreditNoteUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteUpdated, AggregateTypeCreditNote, cn.ID),
		Number:          cn.Number,
		AmountTTC:       cn.AmountTTC,
	}
}

// CreditNoteValidatedEvent is raised once a note is applied to its invoice
type CreditNoteValidatedEvent struct {
	shared.BaseDomainEvent
	Number    string            `json:"number"`
	InvoiceID uuid.UUID         `json:"invoice_id"`
	AmountTTC valueobject.Money `json:"amount_ttc"`
	Restock   []StockReturn     `json:"restock"`
}

// NewCreditNoteValidatedEvent creates a new CreditNoteValidatedEvent
func NewCreditNoteValidatedEvent(cn *CreditNote) *CreditNoteValidatedEvent {
	return &CreditNoteValidatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteValidated, AggregateTypeCreditNote, cn.ID),
		Number:          cn.Number,
		InvoiceID:       cn.InvoiceID,
		AmountTTC:       cn.AmountTTC,
		Restock:         cn.ReturnedGoods(),
	}
}

// CreditNoteRefusedEvent is raised when a note is refused
type CreditNoteRefusedEvent struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// NewCreditNoteRefusedEvent creates a new CreditNoteRefusedEvent
func NewCreditNoteRefusedEvent(cn *CreditNote) *CreditNoteRefusedEvent {
	return &CreditNoteRefusedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteRefused, AggregateTypeCreditNote, cn.ID),
		Number:          cn.Number,
		Reason:          cn.RefuseReason,
	}
}

// QuoteCreatedEvent is raised when a quote is issued
type QuoteCreatedEvent struct {
	shared.BaseDomainEvent
	Number    string            `json:"number"`
	ClientID  uuid.UUID         `json:"client_id"`
	AmountTTC valueobject.Money `json:"amount_ttc"`
}

// NewQuoteCreatedEvent creates a new QuoteCreatedEvent
func NewQuoteCreatedEvent(q *Quote) *QuoteCreatedEvent {
	return &QuoteCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteCreated, AggregateTypeQuote, q.ID),
		Number:          q.Number,
		ClientID:        q.ClientID,
		AmountTTC:       q.AmountTTC,
	}
}

// QuoteConvertedEvent is raised when a quote becomes an invoice
type QuoteConvertedEvent struct {
	shared.BaseDomainEvent
	Number        string    `json:"number"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
}

// NewQuoteConvertedEvent creates a new QuoteConvertedEvent
func NewQuoteConvertedEvent(q *Quote, inv *Invoice) *QuoteConvertedEvent {
	return &QuoteConvertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteConverted, AggregateTypeQuote, q.ID),
		Number:          q.Number,
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.Number,
	}
}
