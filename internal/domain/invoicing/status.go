package invoicing

import (
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
)

// PaymentStatus is the persisted settlement status of an invoice
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPartial   PaymentStatus = "PARTIAL"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further payment can change the status
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusCancelled
}

// SettlementState is the derived state of an invoice: either Cancelled, or
// Active with its paid and due amounts. Only the Cancelled arm is an
// independent fact; everything in Active is computed from amounts.
type SettlementState interface {
	Status() PaymentStatus
	settlementState()
}

// Cancelled is the administrative terminal state
type Cancelled struct{}

// Status implements SettlementState
func (Cancelled) Status() PaymentStatus { return PaymentStatusCancelled }

func (Cancelled) settlementState() {}

// Active carries the arithmetic state of a live invoice
type Active struct {
	Paid valueobject.Money
	Due  valueobject.Money
}

// Status implements SettlementState: Paid when nothing is due and something
// was paid, Pending when nothing was paid, Partial otherwise.
func (a Active) Status() PaymentStatus {
	switch {
	case a.Paid.IsZero():
		return PaymentStatusPending
	case a.Due.IsZero():
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}

func (Active) settlementState() {}

// DeriveState computes the settlement state from the invoice amounts
func DeriveState(ttc, paid valueobject.Money, cancelled bool) SettlementState {
	if cancelled {
		return Cancelled{}
	}
	return Active{Paid: paid, Due: ttc.MustSubtract(paid)}
}
