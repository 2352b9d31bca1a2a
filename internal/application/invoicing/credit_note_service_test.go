package invoicing_test

import (
	"context"
	"testing"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returnOnePrinter(inv *appinvoicing.InvoiceResponse) []appinvoicing.ReturnLineRequest {
	return []appinvoicing.ReturnLineRequest{{LineID: inv.Lines[0].ID, Quantity: 1}}
}

func TestService_CreditNoteLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	cn, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{
		InvoiceID: inv.ID,
		Lines:     returnOnePrinter(inv),
		Reason:    "damaged on delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, "AVO-2024-001", cn.Number)
	assert.Equal(t, inv.Number, cn.InvoiceNumber)
	assert.Equal(t, "PENDING", cn.Status)
	requireAmount(t, 10000, cn.AmountTTC)
	require.Len(t, cn.Lines, 1)
	assert.Equal(t, int64(2), cn.Lines[0].OriginalQuantity)

	// a pending note leaves the invoice untouched
	pending, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	requireAmount(t, 38100, pending.AmountDue)

	validated, err := f.svc.ValidateCreditNote(ctx, cn.ID)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATED", validated.Status)

	credited, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	requireAmount(t, 10000, credited.AmountPaid)
	requireAmount(t, 28100, credited.AmountDue)
	assert.Equal(t, "PARTIAL", credited.Status)
	assert.Equal(t, int64(1), credited.Lines[0].ReturnedQuantity)
	require.Len(t, credited.Settlements, 1)
	assert.Equal(t, "CREDIT_NOTE", credited.Settlements[0].Kind)
	assert.Equal(t, int64(1), f.restock.Pending()[printerID])

	t.Run("validating twice is rejected", func(t *testing.T) {
		_, err := f.svc.ValidateCreditNote(ctx, cn.ID)
		require.ErrorIs(t, err, invoicing.ErrAlreadyValidated)

		again, err := f.svc.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		requireAmount(t, 28100, again.AmountDue)
	})

	t.Run("a validated note cannot be deleted", func(t *testing.T) {
		err := f.svc.DeleteCreditNote(ctx, cn.ID)
		require.ErrorIs(t, err, invoicing.ErrCreditNoteNotPending)
	})

	t.Run("the returned unit is no longer returnable", func(t *testing.T) {
		_, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{
			InvoiceID: inv.ID,
			Lines:     []appinvoicing.ReturnLineRequest{{LineID: inv.Lines[0].ID, Quantity: 2}},
		})
		require.ErrorIs(t, err, invoicing.ErrExceedsBalance)
	})
}

func TestService_CreateCreditNote_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{
			InvoiceID: uuid.New(),
			Lines:     returnOnePrinter(inv),
		})
		require.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID})
		de, ok := shared.IsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, appinvoicing.CodeValidationFailed, de.Code)
	})

	t.Run("more than invoiced", func(t *testing.T) {
		_, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{
			InvoiceID: inv.ID,
			Lines:     []appinvoicing.ReturnLineRequest{{LineID: inv.Lines[0].ID, Quantity: 3}},
		})
		require.ErrorIs(t, err, invoicing.ErrExceedsBalance)
	})

	// rejected selections consume no number
	next, err := f.svc.NextNumber(ctx, invoicing.DocumentTypeCreditNote, 2024)
	require.NoError(t, err)
	assert.Equal(t, "AVO-2024-001", next)
}

func TestService_CreateCreditNote_CancelledInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	_, err := f.svc.CancelInvoice(ctx, appinvoicing.CancelInvoiceRequest{InvoiceID: inv.ID, Reason: "order withdrawn"})
	require.NoError(t, err)

	_, err = f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.ErrorIs(t, err, invoicing.ErrInvoiceCancelled)

	next, err := f.svc.NextNumber(ctx, invoicing.DocumentTypeCreditNote, 2024)
	require.NoError(t, err)
	assert.Equal(t, "AVO-2024-001", next)
}

func TestService_ValidateCreditNote_AfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	_, err := f.svc.ApplyPayment(ctx, appinvoicing.ApplyPaymentRequest{InvoiceID: inv.ID, Amount: amount(20000), Method: "CASH"})
	require.NoError(t, err)

	cn, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.NoError(t, err)
	_, err = f.svc.ValidateCreditNote(ctx, cn.ID)
	require.NoError(t, err)

	stored, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	requireAmount(t, 30000, stored.AmountPaid)
	requireAmount(t, 8100, stored.AmountDue)
	assert.Equal(t, "PARTIAL", stored.Status)
}

func TestService_ValidateCreditNote_FullyPaidInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	cn, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.NoError(t, err)
	_, err = f.svc.ApplyPayment(ctx, appinvoicing.ApplyPaymentRequest{InvoiceID: inv.ID, Amount: amount(38100), Method: "CASH"})
	require.NoError(t, err)

	_, err = f.svc.ValidateCreditNote(ctx, cn.ID)
	require.ErrorIs(t, err, invoicing.ErrExceedsBalance)

	// the transaction rolled back: the note is still pending
	stored, err := f.svc.GetCreditNote(ctx, cn.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", stored.Status)
}

func TestService_UpdateCreditNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	cn, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.NoError(t, err)

	updated, err := f.svc.UpdateCreditNote(ctx, appinvoicing.UpdateCreditNoteRequest{
		CreditNoteID: cn.ID,
		Lines: []appinvoicing.ReturnLineRequest{
			{LineID: inv.Lines[0].ID, Quantity: 2},
			{LineID: inv.Lines[1].ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	requireAmount(t, 38100, updated.AmountTTC)
	assert.Len(t, updated.Lines, 2)
	assert.Equal(t, cn.Number, updated.Number)

	_, err = f.svc.RefuseCreditNote(ctx, appinvoicing.RefuseCreditNoteRequest{CreditNoteID: cn.ID, Reason: "not returned"})
	require.NoError(t, err)

	_, err = f.svc.UpdateCreditNote(ctx, appinvoicing.UpdateCreditNoteRequest{CreditNoteID: cn.ID, Lines: returnOnePrinter(inv)})
	require.ErrorIs(t, err, invoicing.ErrCreditNoteNotPending)
}

func TestService_RefuseCreditNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	cn, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.NoError(t, err)

	refused, err := f.svc.RefuseCreditNote(ctx, appinvoicing.RefuseCreditNoteRequest{CreditNoteID: cn.ID, Reason: "goods not received"})
	require.NoError(t, err)
	assert.Equal(t, "REFUSED", refused.Status)
	assert.Equal(t, "goods not received", refused.RefuseReason)

	_, err = f.svc.ValidateCreditNote(ctx, cn.ID)
	require.ErrorIs(t, err, invoicing.ErrAlreadyValidated)

	stored, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	requireAmount(t, 38100, stored.AmountDue)
	assert.Empty(t, f.restock.Pending())
}

func TestService_DeleteCreditNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := createReferenceInvoice(t, f)

	first, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.NoError(t, err)
	second, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCreditNote(ctx, first.ID))

	_, err = f.svc.GetCreditNote(ctx, first.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	notes, err := f.svc.ListCreditNotes(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, second.ID, notes[0].ID)

	third, err := f.svc.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{InvoiceID: inv.ID, Lines: returnOnePrinter(inv)})
	require.NoError(t, err)
	assert.Equal(t, "AVO-2024-003", third.Number, "deleted numbers are not reused")
}
