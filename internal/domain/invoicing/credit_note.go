package invoicing

import (
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CreditNoteStatus represents the status of a credit note
type CreditNoteStatus string

const (
	CreditNoteStatusPending   CreditNoteStatus = "PENDING"
	CreditNoteStatusValidated CreditNoteStatus = "VALIDATED"
	CreditNoteStatusRefused   CreditNoteStatus = "REFUSED"
)

// IsValid checks if the status is a valid CreditNoteStatus
func (s CreditNoteStatus) IsValid() bool {
	switch s {
	case CreditNoteStatusPending, CreditNoteStatusValidated, CreditNoteStatusRefused:
		return true
	}
	return false
}

// String returns the string representation of CreditNoteStatus
func (s CreditNoteStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the note was validated or refused
func (s CreditNoteStatus) IsTerminal() bool {
	return s == CreditNoteStatusValidated || s == CreditNoteStatusRefused
}

// CreditNote reverses part of an issued invoice
type CreditNote struct {
	shared.BaseAggregateRoot
	Number        string               `json:"number"`
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	ClientID      uuid.UUID            `json:"client_id"`
	IssueDate     time.Time            `json:"issue_date"`
	Currency      valueobject.Currency `json:"currency"`
	Status        CreditNoteStatus     `json:"status"`
	Lines         []RefundLine         `json:"lines"`
	AmountHT      valueobject.Money    `json:"amount_ht"`
	AmountTTC     valueobject.Money    `json:"amount_ttc"`
	Reason        string               `json:"reason,omitempty"`
	ValidatedAt   *time.Time           `json:"validated_at,omitempty"`
	RefusedAt     *time.Time           `json:"refused_at,omitempty"`
	RefuseReason  string               `json:"refuse_reason,omitempty"`
}

// NewCreditNote computes the refund for the selection and creates a pending note
func NewCreditNote(number string, invoice *Invoice, issueDate time.Time, selection []ReturnSelection, reason string) (*CreditNote, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Credit note number cannot be empty")
	}
	if invoice == nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Credit note must reference an invoice")
	}
	refund, err := invoice.CanAcceptCreditNote(selection)
	if err != nil {
		return nil, err
	}

	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	cn := &CreditNote{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		InvoiceID:         invoice.ID,
		InvoiceNumber:     invoice.Number,
		ClientID:          invoice.ClientID,
		IssueDate:         issueDate,
		Currency:          invoice.Currency,
		Status:            CreditNoteStatusPending,
		Lines:             refund.Lines,
		AmountHT:          refund.TotalHT,
		AmountTTC:         refund.TotalTTC,
		Reason:            reason,
	}

	cn.AddDomainEvent(NewCreditNoteCreatedEvent(cn))

	return cn, nil
}

// UpdateSelection recomputes the refund for a new selection while pending
func (cn *CreditNote) UpdateSelection(invoice *Invoice, selection []ReturnSelection) error {
	if cn.Status != CreditNoteStatusPending {
		return cn.notPending("edited")
	}
	if invoice == nil || invoice.ID != cn.InvoiceID {
		return shared.NewDomainError("INVALID_INVOICE", "Credit note must be recomputed against its own invoice")
	}

	refund, err := computeRefundFor(invoice, selection)
	if err != nil {
		return err
	}

	cn.Lines = refund.Lines
	cn.AmountHT = refund.TotalHT
	cn.AmountTTC = refund.TotalTTC
	cn.Touch()
	cn.IncrementVersion()

	cn.AddDomainEvent(NewCreditNoteUpdatedEvent(cn))

	return nil
}

// Validate applies the note to its invoice: the invoice's paid amount grows by
// AmountTTC and its due amount shrinks accordingly. Any status other than
// PENDING is rejected, so a note can never be applied twice.
func (cn *CreditNote) Validate(invoice *Invoice) error {
	if cn.Status != CreditNoteStatusPending {
		return NewAlreadyValidatedError(cn.Number, cn.Status)
	}
	if invoice == nil {
		return shared.NewDomainError("INVALID_INVOICE", "Credit note must reference an invoice")
	}
	if err := invoice.applyCreditNote(cn); err != nil {
		return err
	}

	now := time.Now()
	cn.Status = CreditNoteStatusValidated
	cn.ValidatedAt = &now
	cn.Touch()
	cn.IncrementVersion()

	cn.AddDomainEvent(NewCreditNoteValidatedEvent(cn))

	return nil
}

// Refuse closes a pending note without financial effect
func (cn *CreditNote) Refuse(reason string) error {
	if cn.Status != CreditNoteStatusPending {
		return cn.notPending("refused")
	}

	now := time.Now()
	cn.Status = CreditNoteStatusRefused
	cn.RefusedAt = &now
	cn.RefuseReason = reason
	cn.Touch()
	cn.IncrementVersion()

	cn.AddDomainEvent(NewCreditNoteRefusedEvent(cn))

	return nil
}

// CanDelete reports whether the note may be physically removed
func (cn *CreditNote) CanDelete() error {
	if cn.Status != CreditNoteStatusPending {
		return cn.notPending("deleted")
	}
	return nil
}

// ReturnedGoods lists GOOD quantities coming back into stock with this note
func (cn *CreditNote) ReturnedGoods() []StockReturn {
	out := make([]StockReturn, 0, len(cn.Lines))
	for _, l := range cn.Lines {
		if l.Kind == ArticleKindGood {
			out = append(out, StockReturn{ArticleID: l.ArticleID, Quantity: l.ReturnedQuantity})
		}
	}
	return out
}

func (cn *CreditNote) selection() []ReturnSelection {
	out := make([]ReturnSelection, 0, len(cn.Lines))
	for _, l := range cn.Lines {
		out = append(out, ReturnSelection{LineID: l.LineID, ReturnedQuantity: l.ReturnedQuantity})
	}
	return out
}

func (cn *CreditNote) notPending(action string) error {
	return shared.NewDomainError(CodeCreditNoteNotPending,
		fmt.Sprintf("credit note %s is %s and cannot be %s", cn.Number, cn.Status, action)).
		WithDetail("status", cn.Status)
}

func computeRefundFor(invoice *Invoice, selection []ReturnSelection) (Refund, error) {
	refund, err := ComputeRefund(invoice.Lines, selection)
	if err != nil {
		return Refund{}, err
	}
	if exceeds, _ := refund.TotalTTC.GreaterThan(invoice.AmountTTC); exceeds {
		return Refund{}, NewExceedsBalanceError(invoice.AmountTTC, refund.TotalTTC)
	}
	return refund, nil
}
