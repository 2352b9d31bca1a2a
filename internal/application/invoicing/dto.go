package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineRequest is one line of a new invoice or quote
type LineRequest struct {
	ArticleID   uuid.UUID       `json:"article_id" validate:"required"`
	Designation string          `json:"designation" validate:"required,max=255"`
	Kind        string          `json:"kind" validate:"required,oneof=GOOD SERVICE"`
	Quantity    int64           `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateInvoiceRequest represents a request to issue an invoice
type CreateInvoiceRequest struct {
	ClientID           uuid.UUID     `json:"client_id" validate:"required"`
	IssueDate          time.Time     `json:"issue_date"`
	DueDate            *time.Time    `json:"due_date"`
	WithholdingEnabled bool          `json:"withholding_enabled"`
	Lines              []LineRequest `json:"lines" validate:"required,min=1,dive"`
	Notes              string        `json:"notes" validate:"max=2000"`
}

// ApplyPaymentRequest represents a payment against an invoice
type ApplyPaymentRequest struct {
	InvoiceID      uuid.UUID       `json:"invoice_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method" validate:"required,oneof=CASH BANK_TRANSFER CHECK MOBILE_MONEY"`
	Reference      string          `json:"reference" validate:"max=255"`
	PaidAt         time.Time       `json:"paid_at"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=100"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}

// ReturnLineRequest selects a quantity of an invoice line to give back
type ReturnLineRequest struct {
	LineID   uuid.UUID `json:"line_id" validate:"required"`
	Quantity int64     `json:"quantity" validate:"gt=0"`
}

// CreateCreditNoteRequest represents a request to open a credit note
type CreateCreditNoteRequest struct {
	InvoiceID uuid.UUID           `json:"invoice_id" validate:"required"`
	IssueDate time.Time           `json:"issue_date"`
	Lines     []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
	Reason    string              `json:"reason" validate:"max=500"`
}

// UpdateCreditNoteRequest replaces the selection of a pending credit note
type UpdateCreditNoteRequest struct {
	CreditNoteID uuid.UUID           `json:"credit_note_id" validate:"required"`
	Lines        []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// RefuseCreditNoteRequest represents a request to refuse a credit note
type RefuseCreditNoteRequest struct {
	CreditNoteID uuid.UUID `json:"credit_note_id" validate:"required"`
	Reason       string    `json:"reason" validate:"max=500"`
}

// CreateQuoteRequest represents a request to issue a quote
type CreateQuoteRequest struct {
	ClientID           uuid.UUID     `json:"client_id" validate:"required"`
	IssueDate          time.Time     `json:"issue_date"`
	ValidUntil         *time.Time    `json:"valid_until"`
	WithholdingEnabled bool          `json:"withholding_enabled"`
	Lines              []LineRequest `json:"lines" validate:"required,min=1,dive"`
	Notes              string        `json:"notes" validate:"max=2000"`
}

// InvoiceListFilter represents filter options for invoice lists
type InvoiceListFilter struct {
	ClientID *uuid.UUID `json:"client_id"`
	Status   string     `json:"status" validate:"omitempty,oneof=PENDING PARTIAL PAID CANCELLED"`
	Year     *int       `json:"year" validate:"omitempty,gte=2000,lte=9999"`
	Page     int        `json:"page" validate:"omitempty,min=1"`
	PageSize int        `json:"page_size" validate:"omitempty,min=1,max=100"`
	OrderBy  string     `json:"order_by"`
	OrderDir string     `json:"order_dir" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// LineResponse is an invoice or quote line in responses
type LineResponse struct {
	ID                uuid.UUID       `json:"id"`
	ArticleID         uuid.UUID       `json:"article_id"`
	Designation       string          `json:"designation"`
	Kind              string          `json:"kind"`
	Quantity          int64           `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AmountHT          decimal.Decimal `json:"amount_ht"`
	AmountVAT         decimal.Decimal `json:"amount_vat"`
	AmountWithholding decimal.Decimal `json:"amount_withholding"`
	AmountTTC         decimal.Decimal `json:"amount_ttc"`
	ReturnedQuantity  int64           `json:"returned_quantity,omitempty"`
}

// SettlementResponse is a payment or credit applied to an invoice
type SettlementResponse struct {
	ID           uuid.UUID       `json:"id"`
	Number       string          `json:"number"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method"`
	Reference    string          `json:"reference,omitempty"`
	CreditNoteID *uuid.UUID      `json:"credit_note_id,omitempty"`
	SettledAt    time.Time       `json:"settled_at"`
}

// InvoiceResponse represents an invoice in responses
type InvoiceResponse struct {
	ID                 uuid.UUID            `json:"id"`
	Number             string               `json:"number"`
	ClientID           uuid.UUID            `json:"client_id"`
	QuoteID            *uuid.UUID           `json:"quote_id,omitempty"`
	IssueDate          time.Time            `json:"issue_date"`
	DueDate            time.Time            `json:"due_date"`
	Currency           string               `json:"currency"`
	WithholdingEnabled bool                 `json:"withholding_enabled"`
	AmountHT           decimal.Decimal      `json:"amount_ht"`
	AmountVAT          decimal.Decimal      `json:"amount_vat"`
	AmountWithholding  decimal.Decimal      `json:"amount_withholding"`
	AmountTTC          decimal.Decimal      `json:"amount_ttc"`
	AmountPaid         decimal.Decimal      `json:"amount_paid"`
	AmountDue          decimal.Decimal      `json:"amount_due"`
	Status             string               `json:"status"`
	Lines              []LineResponse       `json:"lines"`
	Settlements        []SettlementResponse `json:"settlements"`
	Notes              string               `json:"notes,omitempty"`
	CancelReason       string               `json:"cancel_reason,omitempty"`
	Version            int                  `json:"version"`
}

// PaymentResponse is the outcome of ApplyPayment
type PaymentResponse struct {
	Settlement SettlementResponse `json:"settlement"`
	Invoice    InvoiceResponse    `json:"invoice"`
	// Replayed is set when the idempotency key had already been used
	Replayed bool `json:"replayed"`
}

// RefundLineResponse is one line of a credit note
type RefundLineResponse struct {
	LineID           uuid.UUID       `json:"line_id"`
	Designation      string          `json:"designation"`
	Kind             string          `json:"kind"`
	OriginalQuantity int64           `json:"original_quantity"`
	ReturnedQuantity int64           `json:"returned_quantity"`
	RefundHT         decimal.Decimal `json:"refund_ht"`
	RefundTTC        decimal.Decimal `json:"refund_ttc"`
}

// CreditNoteResponse represents a credit note in responses
type CreditNoteResponse struct {
	ID            uuid.UUID            `json:"id"`
	Number        string               `json:"number"`
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	ClientID      uuid.UUID            `json:"client_id"`
	IssueDate     time.Time            `json:"issue_date"`
	Currency      string               `json:"currency"`
	Status        string               `json:"status"`
	AmountHT      decimal.Decimal      `json:"amount_ht"`
	AmountTTC     decimal.Decimal      `json:"amount_ttc"`
	Lines         []RefundLineResponse `json:"lines"`
	Reason        string               `json:"reason,omitempty"`
	RefuseReason  string               `json:"refuse_reason,omitempty"`
	Version       int                  `json:"version"`
}

// QuoteResponse represents a quote in responses
type QuoteResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Number             string          `json:"number"`
	ClientID           uuid.UUID       `json:"client_id"`
	IssueDate          time.Time       `json:"issue_date"`
	ValidUntil         *time.Time      `json:"valid_until,omitempty"`
	Currency           string          `json:"currency"`
	WithholdingEnabled bool            `json:"withholding_enabled"`
	AmountHT           decimal.Decimal `json:"amount_ht"`
	AmountWithholding  decimal.Decimal `json:"amount_withholding"`
	AmountTTC          decimal.Decimal `json:"amount_ttc"`
	Status             string          `json:"status"`
	InvoiceID          *uuid.UUID      `json:"invoice_id,omitempty"`
	Lines              []LineResponse  `json:"lines"`
	Version            int             `json:"version"`
}

// ConvertQuoteResponse is the outcome of ConvertQuote
type ConvertQuoteResponse struct {
	Quote   QuoteResponse   `json:"quote"`
	Invoice InvoiceResponse `json:"invoice"`
}

func toLineResponse(l invoicing.PricedLine) LineResponse {
	return LineResponse{
		ID:                l.ID,
		ArticleID:         l.ArticleID,
		Designation:       l.Designation,
		Kind:              l.Kind.String(),
		Quantity:          l.Quantity,
		UnitPrice:         l.UnitPrice.Amount(),
		AmountHT:          l.AmountHT.Amount(),
		AmountVAT:         l.AmountVAT.Amount(),
		AmountWithholding: l.AmountWithholding.Amount(),
		AmountTTC:         l.AmountTTC.Amount(),
	}
}

// ToSettlementResponse converts a domain Settlement
func ToSettlementResponse(s invoicing.Settlement) SettlementResponse {
	return SettlementResponse{
		ID:           s.ID,
		Number:       s.Number,
		Kind:         string(s.Kind),
		Amount:       s.Amount.Amount(),
		Method:       string(s.Method),
		Reference:    s.Reference,
		CreditNoteID: s.CreditNoteID,
		SettledAt:    s.SettledAt,
	}
}

// ToInvoiceResponse converts a domain Invoice
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                 inv.ID,
		Number:             inv.Number,
		ClientID:           inv.ClientID,
		QuoteID:            inv.QuoteID,
		IssueDate:          inv.IssueDate,
		DueDate:            inv.DueDate,
		Currency:           string(inv.Currency),
		WithholdingEnabled: inv.WithholdingEnabled,
		AmountHT:           inv.AmountHT.Amount(),
		AmountVAT:          inv.AmountVAT.Amount(),
		AmountWithholding:  inv.AmountWithholding.Amount(),
		AmountTTC:          inv.AmountTTC.Amount(),
		AmountPaid:         inv.AmountPaid.Amount(),
		AmountDue:          inv.AmountDue.Amount(),
		Status:             inv.Status.String(),
		Lines: lo.Map(inv.Lines, func(l invoicing.InvoiceLine, _ int) LineResponse {
			r := toLineResponse(l.PricedLine)
			r.ReturnedQuantity = l.ReturnedQuantity
			return r
		}),
		Settlements: lo.Map(inv.Settlements, func(s invoicing.Settlement, _ int) SettlementResponse {
			return ToSettlementResponse(s)
		}),
		Notes:        inv.Notes,
		CancelReason: inv.CancelReason,
		Version:      inv.Version,
	}
}

// ToCreditNoteResponse converts a domain CreditNote
func ToCreditNoteResponse(cn *invoicing.CreditNote) CreditNoteResponse {
	return CreditNoteResponse{
		ID:            cn.ID,
		Number:        cn.Number,
		InvoiceID:     cn.InvoiceID,
		InvoiceNumber: cn.InvoiceNumber,
		ClientID:      cn.ClientID,
		IssueDate:     cn.IssueDate,
		Currency:      string(cn.Currency),
		Status:        cn.Status.String(),
		AmountHT:      cn.AmountHT.Amount(),
		AmountTTC:     cn.AmountTTC.Amount(),
		Lines: lo.Map(cn.Lines, func(l invoicing.RefundLine, _ int) RefundLineResponse {
			return RefundLineResponse{
				LineID:           l.LineID,
				Designation:      l.Designation,
				Kind:             l.Kind.String(),
				OriginalQuantity: l.OriginalQuantity,
				ReturnedQuantity: l.ReturnedQuantity,
				RefundHT:         l.RefundHT.Amount(),
				RefundTTC:        l.RefundTTC.Amount(),
			}
		}),
		Reason:       cn.Reason,
		RefuseReason: cn.RefuseReason,
		Version:      cn.Version,
	}
}

// ToQuoteResponse converts a domain Quote
func ToQuoteResponse(q *invoicing.Quote) QuoteResponse {
	return QuoteResponse{
		ID:                 q.ID,
		Number:             q.Number,
		ClientID:           q.ClientID,
		IssueDate:          q.IssueDate,
		ValidUntil:         q.ValidUntil,
		Currency:           string(q.Currency),
		WithholdingEnabled: q.WithholdingEnabled,
		AmountHT:           q.AmountHT.Amount(),
		AmountWithholding:  q.AmountWithholding.Amount(),
		AmountTTC:          q.AmountTTC.Amount(),
		Status:             string(q.Status),
		InvoiceID:          q.InvoiceID,
		Lines:              lo.Map(q.Lines, func(l invoicing.PricedLine, _ int) LineResponse { return toLineResponse(l) }),
		Version:            q.Version,
	}
}
