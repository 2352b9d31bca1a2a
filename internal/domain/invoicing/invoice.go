package invoicing

import (
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultPaymentTermDays is used when an invoice is created without a due date
const DefaultPaymentTermDays = 30

// InvoiceLine is a priced line plus what credit notes have already reversed
type InvoiceLine struct {
	PricedLine
	ReturnedQuantity int64             `json:"returned_quantity"`
	CreditedHT       valueobject.Money `json:"credited_ht"`
	CreditedTTC      valueobject.Money `json:"credited_ttc"`
}

// ReturnableQuantity is the quantity not yet covered by a validated credit note
func (l InvoiceLine) ReturnableQuantity() int64 {
	return l.Quantity - l.ReturnedQuantity
}

// Invoice is the aggregate root tracking an issued invoice and its settlements
type Invoice struct {
	shared.BaseAggregateRoot
	Number             string               `json:"number"`
	ClientID           uuid.UUID            `json:"client_id"`
	QuoteID            *uuid.UUID           `json:"quote_id,omitempty"`
	IssueDate          time.Time            `json:"issue_date"`
	DueDate            time.Time            `json:"due_date"`
	Currency           valueobject.Currency `json:"currency"`
	WithholdingEnabled bool                 `json:"withholding_enabled"`
	WithholdingRate    valueobject.Rate     `json:"-"`
	VATRate            valueobject.Rate     `json:"-"`
	Lines              []InvoiceLine        `json:"lines"`
	Totals
	AmountPaid   valueobject.Money `json:"amount_paid"`
	AmountDue    valueobject.Money `json:"amount_due"`
	Status       PaymentStatus     `json:"status"`
	Settlements  []Settlement      `json:"settlements"`
	Notes        string            `json:"notes,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
}

// NewInvoiceParams holds the caller-supplied fields of a new invoice
type NewInvoiceParams struct {
	Number             string
	ClientID           uuid.UUID
	QuoteID            *uuid.UUID
	IssueDate          time.Time
	DueDate            time.Time
	WithholdingEnabled bool
	Lines              []LineItem
	Notes              string
}

// NewInvoice prices the lines with the given aggregator and creates the invoice
func NewInvoice(params NewInvoiceParams, aggregator Aggregator) (*Invoice, error) {
	if params.Number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Invoice number cannot be empty")
	}
	if params.ClientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if len(params.Lines) == 0 {
		return nil, invalidLine("invoice %s must have at least one line", params.Number)
	}

	priced, err := aggregator.Price(params.Lines, params.WithholdingEnabled)
	if err != nil {
		return nil, err
	}
	currency := priced.AmountHT.Currency()

	issueDate := params.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	dueDate := params.DueDate
	if dueDate.IsZero() {
		dueDate = issueDate.AddDate(0, 0, DefaultPaymentTermDays)
	}
	if dueDate.Before(issueDate) {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}

	zero := valueobject.Zero(currency)
	inv := &Invoice{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		Number:             params.Number,
		ClientID:           params.ClientID,
		QuoteID:            params.QuoteID,
		IssueDate:          issueDate,
		DueDate:            dueDate,
		Currency:           currency,
		WithholdingEnabled: params.WithholdingEnabled,
		WithholdingRate:    aggregator.WithholdingRate,
		VATRate:            aggregator.VATRate,
		Lines: lo.Map(priced.Lines, func(l PricedLine, _ int) InvoiceLine {
			return InvoiceLine{PricedLine: l, CreditedHT: zero, CreditedTTC: zero}
		}),
		Totals:      priced.Totals,
		AmountPaid:  zero,
		Settlements: make([]Settlement, 0),
		Notes:       params.Notes,
	}
	inv.refresh()

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// State returns the derived settlement state
func (inv *Invoice) State() SettlementState {
	return DeriveState(inv.AmountTTC, inv.AmountPaid, inv.IsCancelled())
}

// IsCancelled reports whether the invoice was administratively cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.CancelledAt != nil
}

// Line returns the invoice line with the given id
func (inv *Invoice) Line(id uuid.UUID) (*InvoiceLine, bool) {
	for i := range inv.Lines {
		if inv.Lines[i].ID == id {
			return &inv.Lines[i], true
		}
	}
	return nil, false
}

// SettlementByIdempotencyKey finds a payment previously recorded under key
func (inv *Invoice) SettlementByIdempotencyKey(key string) (*Settlement, bool) {
	if key == "" {
		return nil, false
	}
	s, ok := lo.Find(inv.Settlements, func(s Settlement) bool {
		return s.IdempotencyKey == key
	})
	if !ok {
		return nil, false
	}
	return &s, true
}

// CanAcceptPayment checks amount against the balance without recording anything
func (inv *Invoice) CanAcceptPayment(amount valueobject.Money) error {
	if inv.IsCancelled() {
		return invoiceCancelled(inv.Number)
	}
	if amount.Currency() != inv.Currency {
		return currencyMismatch(inv.Currency, amount.Currency())
	}
	if !amount.IsPositive() {
		return shared.NewDomainError(CodeInvalidAmount,
			fmt.Sprintf("payment amount must be positive, got %s", amount))
	}
	if exceeds, _ := amount.GreaterThan(inv.AmountDue); exceeds {
		return NewOverpaymentError(inv.AmountDue, amount)
	}
	return nil
}

// ApplyPayment records a payment against the remaining balance.
// A payment whose idempotency key was already recorded returns the original
// settlement without changing the invoice.
func (inv *Invoice) ApplyPayment(p Payment) (*Settlement, error) {
	if existing, ok := inv.SettlementByIdempotencyKey(p.IdempotencyKey); ok {
		return existing, nil
	}
	if err := inv.CanAcceptPayment(p.Amount); err != nil {
		return nil, err
	}
	if p.Method == "" {
		p.Method = PaymentMethodCash
	}
	if !p.Method.IsValid() || p.Method == PaymentMethodCreditNote {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD",
			fmt.Sprintf("payment method %q is not accepted", p.Method))
	}

	now := time.Now()
	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	settlement := Settlement{
		ID:             uuid.New(),
		Number:         p.Number,
		InvoiceID:      inv.ID,
		Kind:           SettlementKindPayment,
		Amount:         p.Amount,
		Method:         p.Method,
		Reference:      p.Reference,
		IdempotencyKey: p.IdempotencyKey,
		SettledAt:      paidAt,
		CreatedAt:      now,
	}

	previous := inv.Status
	inv.Settlements = append(inv.Settlements, settlement)
	inv.refresh()
	inv.markChanged()

	inv.AddDomainEvent(NewPaymentAppliedEvent(inv, &settlement))
	if previous != PaymentStatusPaid && inv.Status == PaymentStatusPaid {
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	}

	return &settlement, nil
}

// Cancel freezes the invoice. Payments and credit notes are rejected afterwards.
func (inv *Invoice) Cancel(reason string) error {
	if inv.IsCancelled() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("invoice %s is already cancelled", inv.Number))
	}

	now := time.Now()
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.refresh()
	inv.markChanged()

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv, inv.unreturnedGoods()))

	return nil
}

// CanAcceptCreditNote prices a return selection without changing anything.
// A cancelled invoice accepts no credit note.
func (inv *Invoice) CanAcceptCreditNote(selection []ReturnSelection) (Refund, error) {
	if inv.IsCancelled() {
		return Refund{}, invoiceCancelled(inv.Number)
	}
	return computeRefundFor(inv, selection)
}

// applyCreditNote offsets the balance by a validated credit note's TTC and
// records the returned quantities on the lines.
func (inv *Invoice) applyCreditNote(cn *CreditNote) error {
	if inv.IsCancelled() {
		return invoiceCancelled(inv.Number)
	}
	if cn.InvoiceID != inv.ID {
		return shared.NewDomainError("INVALID_INVOICE",
			fmt.Sprintf("credit note %s does not reference invoice %s", cn.Number, inv.Number))
	}
	for _, rl := range cn.Lines {
		if _, ok := inv.Line(rl.LineID); !ok {
			return invalidLine("credit note line %s is not on invoice %s", rl.LineID, inv.Number)
		}
	}

	// Other notes on the same lines may have been validated since this one
	// was priced. Reprice against what is still uncredited.
	refund, err := computeRefundFor(inv, cn.selection())
	if err != nil {
		return err
	}
	if exceeds, _ := refund.TotalTTC.GreaterThan(inv.AmountDue); exceeds {
		return NewExceedsBalanceError(inv.AmountDue, refund.TotalTTC)
	}
	cn.Lines = refund.Lines
	cn.AmountHT = refund.TotalHT
	cn.AmountTTC = refund.TotalTTC

	for _, rl := range cn.Lines {
		line, _ := inv.Line(rl.LineID)
		line.ReturnedQuantity += rl.ReturnedQuantity
		line.CreditedHT = line.CreditedHT.MustAdd(rl.RefundHT)
		line.CreditedTTC = line.CreditedTTC.MustAdd(rl.RefundTTC)
	}

	if cn.AmountTTC.IsPositive() {
		creditNoteID := cn.ID
		now := time.Now()
		inv.Settlements = append(inv.Settlements, Settlement{
			ID:           uuid.New(),
			Number:       cn.Number,
			InvoiceID:    inv.ID,
			Kind:         SettlementKindCreditNote,
			Amount:       cn.AmountTTC,
			Method:       PaymentMethodCreditNote,
			Reference:    fmt.Sprintf("Credit note %s", cn.Number),
			CreditNoteID: &creditNoteID,
			SettledAt:    now,
			CreatedAt:    now,
		})
	}

	inv.refresh()
	inv.markChanged()

	inv.AddDomainEvent(NewInvoiceCreditedEvent(inv, cn))

	return nil
}

// refresh recomputes the derived amounts and the persisted status
func (inv *Invoice) refresh() {
	paid := valueobject.Zero(inv.Currency)
	for _, s := range inv.Settlements {
		paid = paid.MustAdd(s.Amount)
	}
	inv.AmountPaid = paid
	inv.AmountDue = inv.AmountTTC.MustSubtract(paid)
	inv.Status = inv.State().Status()
}

func (inv *Invoice) markChanged() {
	inv.Touch()
	inv.IncrementVersion()
}

// unreturnedGoods lists GOOD quantities still out with the client
func (inv *Invoice) unreturnedGoods() []StockReturn {
	out := make([]StockReturn, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		if l.Kind != ArticleKindGood || l.ReturnableQuantity() == 0 {
			continue
		}
		out = append(out, StockReturn{ArticleID: l.ArticleID, Quantity: l.ReturnableQuantity()})
	}
	return out
}
