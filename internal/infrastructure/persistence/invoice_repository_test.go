package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payment(number, amount string) invoicing.Payment {
	return invoicing.Payment{
		Number: number,
		Amount: xaf(amount),
		Method: invoicing.PaymentMethodBankTransfer,
		PaidAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestGormInvoiceRepository_CreateAndFind(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	inv := newTestInvoice(t, "FAC-2024-00001")
	require.NoError(t, repo.Create(ctx, inv))
	assert.False(t, inv.IsDirty())

	found, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2024-00001", found.Number)
	assert.Equal(t, inv.ClientID, found.ClientID)
	assert.True(t, found.AmountHT.Equals(xaf("40000")))
	assert.True(t, found.AmountWithholding.Equals(xaf("1900")))
	assert.True(t, found.AmountTTC.Equals(xaf("38100")))
	assert.True(t, found.AmountDue.Equals(xaf("38100")))
	assert.Equal(t, invoicing.PaymentStatusPending, found.Status)
	require.Len(t, found.Lines, 2)
	assert.Equal(t, "Printer", found.Lines[0].Designation)
	assert.Equal(t, invoicing.ArticleKindService, found.Lines[1].Kind)
	assert.Equal(t, inv.Version, found.LoadedVersion())

	byNumber, err := repo.FindByNumber(ctx, "FAC-2024-00001")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNumber.ID)
}

func TestGormInvoiceRepository_NotFound(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindByNumber(context.Background(), "FAC-1999-00001")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_NotFound_Postgres(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewGormInvoiceRepository(db.DB).FindByID(context.Background(), id)

	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_DuplicateNumber(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestInvoice(t, "FAC-2024-00001")))
	err := repo.Create(ctx, newTestInvoice(t, "FAC-2024-00001"))

	assert.ErrorIs(t, err, invoicing.ErrDuplicateNumber)
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	inv := newTestInvoice(t, "FAC-2024-00001")
	require.NoError(t, repo.Create(ctx, inv))

	loaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	_, err = loaded.ApplyPayment(payment("REG-2024-00001", "20000"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, loaded))

	reloaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.AmountPaid.Equals(xaf("20000")))
	assert.True(t, reloaded.AmountDue.Equals(xaf("18100")))
	assert.Equal(t, invoicing.PaymentStatusPartial, reloaded.Status)
	require.Len(t, reloaded.Settlements, 1)
	assert.Equal(t, "REG-2024-00001", reloaded.Settlements[0].Number)
	assert.Equal(t, invoicing.SettlementKindPayment, reloaded.Settlements[0].Kind)

	// a second payment keeps the first settlement untouched
	_, err = reloaded.ApplyPayment(payment("REG-2024-00002", "18100"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, reloaded))

	paid, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.PaymentStatusPaid, paid.Status)
	assert.True(t, paid.AmountDue.IsZero())
	assert.Len(t, paid.Settlements, 2)
}

func TestGormInvoiceRepository_SaveWithLock_Conflict(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	inv := newTestInvoice(t, "FAC-2024-00001")
	require.NoError(t, repo.Create(ctx, inv))

	first, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)

	_, err = first.ApplyPayment(payment("REG-2024-00001", "20000"))
	require.NoError(t, err)
	_, err = second.ApplyPayment(payment("REG-2024-00002", "20000"))
	require.NoError(t, err)

	require.NoError(t, repo.SaveWithLock(ctx, first))
	err = repo.SaveWithLock(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	stored, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.Equals(xaf("20000")), "the stale write must not land")
	assert.Len(t, stored.Settlements, 1)
}

func TestGormInvoiceRepository_Cancel(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	inv := newTestInvoice(t, "FAC-2024-00001")
	require.NoError(t, repo.Create(ctx, inv))
	require.NoError(t, inv.Cancel("client went bankrupt"))
	require.NoError(t, repo.SaveWithLock(ctx, inv))

	stored, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.PaymentStatusCancelled, stored.Status)
	assert.True(t, stored.IsCancelled())
	assert.Equal(t, "client went bankrupt", stored.CancelReason)
	assert.NotNil(t, stored.CancelledAt)
}

func TestGormInvoiceRepository_FindAll(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	a := newTestInvoice(t, "FAC-2024-00001")
	b := newTestInvoice(t, "FAC-2024-00002")
	c := newTestInvoice(t, "FAC-2024-00003")
	c.ClientID = a.ClientID
	for _, inv := range []*invoicing.Invoice{a, b, c} {
		require.NoError(t, repo.Create(ctx, inv))
	}
	_, err := b.ApplyPayment(payment("REG-2024-00001", "1000"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, b))

	t.Run("by client", func(t *testing.T) {
		got, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
			Filter:   shared.Filter{OrderBy: "number", OrderDir: "asc"},
			ClientID: &a.ClientID,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "FAC-2024-00001", got[0].Number)
		assert.Equal(t, "FAC-2024-00003", got[1].Number)
	})

	t.Run("by status", func(t *testing.T) {
		status := invoicing.PaymentStatusPartial
		got, err := repo.FindAll(ctx, invoicing.InvoiceFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)
		assert.Len(t, got[0].Settlements, 1)
	})

	t.Run("by year", func(t *testing.T) {
		year := 2023
		got, err := repo.FindAll(ctx, invoicing.InvoiceFilter{Year: &year})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("paged", func(t *testing.T) {
		got, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "number", OrderDir: "ASC"},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "FAC-2024-00003", got[0].Number)
	})
}
