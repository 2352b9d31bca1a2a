package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// SettlementKind tells a cash payment from a credit-note offset
type SettlementKind string

const (
	SettlementKindPayment    SettlementKind = "PAYMENT"
	SettlementKindCreditNote SettlementKind = "CREDIT_NOTE"
)

// PaymentMethod is how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodCreditNote   PaymentMethod = "CREDIT_NOTE"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck,
		PaymentMethodMobileMoney, PaymentMethodCreditNote:
		return true
	}
	return false
}

// Settlement is an immutable amount applied against an invoice
type Settlement struct {
	ID             uuid.UUID         `json:"id"`
	Number         string            `json:"number"`
	InvoiceID      uuid.UUID         `json:"invoice_id"`
	Kind           SettlementKind    `json:"kind"`
	Amount         valueobject.Money `json:"amount"`
	Method         PaymentMethod     `json:"method"`
	Reference      string            `json:"reference"`
	CreditNoteID   *uuid.UUID        `json:"credit_note_id,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	SettledAt      time.Time         `json:"settled_at"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Payment is a request to settle part of an invoice
type Payment struct {
	Number         string
	Amount         valueobject.Money
	Method         PaymentMethod
	Reference      string
	PaidAt         time.Time
	IdempotencyKey string
}
