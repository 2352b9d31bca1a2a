package invoicing

import (
	"fmt"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
)

// Error codes raised by the invoicing engine
const (
	CodeInvalidLine          = "INVALID_LINE"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeOverpayment          = "OVERPAYMENT"
	CodeEmptySelection       = "EMPTY_SELECTION"
	CodeExceedsBalance       = "EXCEEDS_BALANCE"
	CodeAlreadyValidated     = "ALREADY_VALIDATED"
	CodeDuplicateNumber      = "DUPLICATE_NUMBER"
	CodeInvoiceCancelled     = "INVOICE_CANCELLED"
	CodeCreditNoteNotPending = "CREDIT_NOTE_NOT_PENDING"
	CodeQuoteNotPending      = "QUOTE_NOT_PENDING"
	CodeCurrencyMismatch     = "CURRENCY_MISMATCH"
)

// Sentinels for errors.Is matching; constructors below attach specifics.
var (
	ErrInvalidLine          = shared.NewDomainError(CodeInvalidLine, "Invalid line item")
	ErrInvalidAmount        = shared.NewDomainError(CodeInvalidAmount, "Amount must be positive")
	ErrOverpayment          = shared.NewDomainError(CodeOverpayment, "Payment exceeds the amount due")
	ErrEmptySelection       = shared.NewDomainError(CodeEmptySelection, "No line selected for the credit note")
	ErrExceedsBalance       = shared.NewDomainError(CodeExceedsBalance, "Refund exceeds the invoice balance")
	ErrAlreadyValidated     = shared.NewDomainError(CodeAlreadyValidated, "Credit note was already processed")
	ErrDuplicateNumber      = shared.NewDomainError(CodeDuplicateNumber, "Document number already used")
	ErrInvoiceCancelled     = shared.NewDomainError(CodeInvoiceCancelled, "Invoice is cancelled")
	ErrCreditNoteNotPending = shared.NewDomainError(CodeCreditNoteNotPending, "Credit note is no longer pending")
	ErrQuoteNotPending      = shared.NewDomainError(CodeQuoteNotPending, "Quote is no longer pending")
	ErrCurrencyMismatch     = shared.NewDomainError(CodeCurrencyMismatch, "Amount currency does not match the document")
)

func invalidLine(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidLine, fmt.Sprintf(format, args...))
}

// NewOverpaymentError reports a payment larger than the remaining balance
func NewOverpaymentError(due, attempted valueobject.Money) *shared.DomainError {
	return shared.NewDomainError(CodeOverpayment,
		fmt.Sprintf("due balance is %s, payment of %s rejected", due, attempted)).
		WithDetail("amount_due", due.Amount()).
		WithDetail("attempted", attempted.Amount())
}

// NewExceedsBalanceError reports a refund that does not fit in the invoice balance
func NewExceedsBalanceError(due, refund valueobject.Money) *shared.DomainError {
	return shared.NewDomainError(CodeExceedsBalance,
		fmt.Sprintf("due balance is %s, refund of %s rejected", due, refund)).
		WithDetail("amount_due", due.Amount()).
		WithDetail("refund", refund.Amount())
}

// NewExceedsReturnableError reports a returned quantity above what is left on the line
func NewExceedsReturnableError(designation string, returnable, requested int64) *shared.DomainError {
	return shared.NewDomainError(CodeExceedsBalance,
		fmt.Sprintf("line %q has %d unit(s) left to return, %d requested", designation, returnable, requested)).
		WithDetail("returnable", returnable).
		WithDetail("requested", requested)
}

// NewAlreadyValidatedError reports a second validation attempt
func NewAlreadyValidatedError(number string, status CreditNoteStatus) *shared.DomainError {
	return shared.NewDomainError(CodeAlreadyValidated,
		fmt.Sprintf("credit note %s is %s and cannot be validated again", number, status)).
		WithDetail("status", status)
}

// NewDuplicateNumberError reports a document number collision at commit time
func NewDuplicateNumberError(number string) *shared.DomainError {
	return shared.NewDomainError(CodeDuplicateNumber,
		fmt.Sprintf("document number %s is already used", number)).
		WithDetail("number", number)
}

func invoiceCancelled(number string) *shared.DomainError {
	return shared.NewDomainError(CodeInvoiceCancelled,
		fmt.Sprintf("invoice %s is cancelled", number)).
		WithDetail("number", number)
}

func currencyMismatch(want, got valueobject.Currency) *shared.DomainError {
	return shared.NewDomainError(CodeCurrencyMismatch,
		fmt.Sprintf("expected amount in %s, got %s", want, got))
}
