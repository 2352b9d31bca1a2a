package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoicing"
)

// TransactionScope runs a unit of work atomically. Repositories handed to fn
// share one database transaction, committed when fn returns nil and rolled
// back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the invoicing aggregates inside
// a transaction.
//
// Validating a credit note changes two aggregates (the note and its invoice);
// both saves go through the same TransactionalRepositories so neither is
// visible without the other.
type TransactionalRepositories interface {
	Invoices() invoicing.InvoiceRepository
	CreditNotes() invoicing.CreditNoteRepository
	Quotes() invoicing.QuoteRepository
}

// NoOpTransactionScope calls fn with plain repositories and no transaction.
// Used in tests and with stores that have no transactions.
type NoOpTransactionScope struct {
	repos noOpRepositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	invoices invoicing.InvoiceRepository,
	creditNotes invoicing.CreditNoteRepository,
	quotes invoicing.QuoteRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: noOpRepositories{
		invoices:    invoices,
		creditNotes: creditNotes,
		quotes:      quotes,
	}}
}

// Execute implements TransactionScope
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.repos)
}

type noOpRepositories struct {
	invoices    invoicing.InvoiceRepository
	creditNotes invoicing.CreditNoteRepository
	quotes      invoicing.QuoteRepository
}

func (r noOpRepositories) Invoices() invoicing.InvoiceRepository       { return r.invoices }
func (r noOpRepositories) CreditNotes() invoicing.CreditNoteRepository { return r.creditNotes }
func (r noOpRepositories) Quotes() invoicing.QuoteRepository           { return r.quotes }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
