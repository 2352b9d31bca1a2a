package invoicing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodLine(inv *Invoice) InvoiceLine    { return inv.Lines[0] }
func serviceLine(inv *Invoice) InvoiceLine { return inv.Lines[1] }

func TestComputeRefund(t *testing.T) {
	t.Run("returning one of two goods units", func(t *testing.T) {
		inv := newScenarioInvoice(t)

		refund, err := ComputeRefund(inv.Lines, []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
			{LineID: serviceLine(inv).ID, ReturnedQuantity: 0},
		})
		require.NoError(t, err)

		require.Len(t, refund.Lines, 1)
		assertMoney(t, "10000", refund.Lines[0].RefundHT)
		assertMoney(t, "10000", refund.Lines[0].RefundTTC)
		assert.Equal(t, int64(2), refund.Lines[0].OriginalQuantity)
		assertMoney(t, "10000", refund.TotalHT)
		assertMoney(t, "10000", refund.TotalTTC)
	})

	t.Run("service refunds mirror the withholding of the line", func(t *testing.T) {
		inv := newScenarioInvoice(t)

		refund, err := ComputeRefund(inv.Lines, []ReturnSelection{{LineID: serviceLine(inv).ID, ReturnedQuantity: 1}})
		require.NoError(t, err)

		assertMoney(t, "20000", refund.TotalHT)
		assertMoney(t, "18100", refund.TotalTTC)
	})

	t.Run("full reversal equals the invoice totals", func(t *testing.T) {
		inv := newScenarioInvoice(t)

		refund, err := ComputeRefund(inv.Lines, []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 2},
			{LineID: serviceLine(inv).ID, ReturnedQuantity: 1},
		})
		require.NoError(t, err)

		assert.True(t, refund.TotalTTC.Equals(inv.AmountTTC))
		assert.True(t, refund.TotalHT.Equals(inv.AmountHT))
	})

	t.Run("nothing selected", func(t *testing.T) {
		inv := newScenarioInvoice(t)

		_, err := ComputeRefund(inv.Lines, []ReturnSelection{{LineID: goodLine(inv).ID, ReturnedQuantity: 0}})
		assert.True(t, errors.Is(err, ErrEmptySelection))

		_, err = ComputeRefund(inv.Lines, nil)
		assert.True(t, errors.Is(err, ErrEmptySelection))
	})

	t.Run("more than the original quantity", func(t *testing.T) {
		inv := newScenarioInvoice(t)

		_, err := ComputeRefund(inv.Lines, []ReturnSelection{{LineID: goodLine(inv).ID, ReturnedQuantity: 3}})
		assert.True(t, errors.Is(err, ErrExceedsBalance))
	})

	t.Run("negative quantity", func(t *testing.T) {
		inv := newScenarioInvoice(t)

		_, err := ComputeRefund(inv.Lines, []ReturnSelection{{LineID: goodLine(inv).ID, ReturnedQuantity: -1}})
		assert.True(t, errors.Is(err, ErrInvalidLine))
	})

	t.Run("unknown line", func(t *testing.T) {
		inv := newScenarioInvoice(t)

		_, err := ComputeRefund(inv.Lines, []ReturnSelection{{LineID: uuid.New(), ReturnedQuantity: 1}})
		assert.True(t, errors.Is(err, ErrInvalidLine))
	})

	t.Run("line selected twice", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		id := goodLine(inv).ID

		_, err := ComputeRefund(inv.Lines, []ReturnSelection{{LineID: id, ReturnedQuantity: 1}, {LineID: id, ReturnedQuantity: 1}})
		assert.True(t, errors.Is(err, ErrInvalidLine))
	})
}

func TestCreditNote_Validate(t *testing.T) {
	t.Run("validating reduces the invoice balance", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "damaged unit")
		require.NoError(t, err)
		assert.Equal(t, CreditNoteStatusPending, cn.Status)

		require.NoError(t, cn.Validate(inv))

		assert.Equal(t, CreditNoteStatusValidated, cn.Status)
		assert.NotNil(t, cn.ValidatedAt)
		assertMoney(t, "10000", inv.AmountPaid)
		assertMoney(t, "28100", inv.AmountDue)
		assert.Equal(t, PaymentStatusPartial, inv.Status)
		assert.Equal(t, int64(1), goodLine(inv).ReturnedQuantity)

		require.Len(t, inv.Settlements, 1)
		s := inv.Settlements[0]
		assert.Equal(t, SettlementKindCreditNote, s.Kind)
		assert.Equal(t, PaymentMethodCreditNote, s.Method)
		require.NotNil(t, s.CreditNoteID)
		assert.Equal(t, cn.ID, *s.CreditNoteID)
	})

	t.Run("second validation is rejected and leaves the balance alone", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)
		require.NoError(t, cn.Validate(inv))

		err = cn.Validate(inv)
		assert.True(t, errors.Is(err, ErrAlreadyValidated))
		assertMoney(t, "28100", inv.AmountDue)
		assert.Len(t, inv.Settlements, 1)
	})

	t.Run("refused notes cannot be validated", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)
		require.NoError(t, cn.Refuse("not returned"))

		assert.True(t, errors.Is(cn.Validate(inv), ErrAlreadyValidated))
		assertMoney(t, "38100", inv.AmountDue)
	})

	t.Run("refund larger than the due balance", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		_, err := inv.ApplyPayment(pay("36000"))
		require.NoError(t, err)

		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)

		err = cn.Validate(inv)
		assert.True(t, errors.Is(err, ErrExceedsBalance))
		assert.Equal(t, CreditNoteStatusPending, cn.Status)
		assertMoney(t, "2100", inv.AmountDue)
		assert.Equal(t, int64(0), goodLine(inv).ReturnedQuantity)
	})

	t.Run("competing notes cannot return the same units twice", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		selection := []ReturnSelection{{LineID: goodLine(inv).ID, ReturnedQuantity: 2}}

		first, err := NewCreditNote("AVO-2024-001", inv, time.Now(), selection, "")
		require.NoError(t, err)
		second, err := NewCreditNote("AVO-2024-002", inv, time.Now(), selection, "")
		require.NoError(t, err)

		require.NoError(t, first.Validate(inv))
		assert.True(t, errors.Is(second.Validate(inv), ErrExceedsBalance))
		assertMoney(t, "18100", inv.AmountDue)
	})

	t.Run("cancelled invoice rejects validation", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)
		require.NoError(t, inv.Cancel(""))

		assert.True(t, errors.Is(cn.Validate(inv), ErrInvoiceCancelled))
	})

	t.Run("validated event lists returned goods only", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 2},
			{LineID: serviceLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)
		cn.ClearDomainEvents()

		require.NoError(t, cn.Validate(inv))
		assert.Equal(t, PaymentStatusPaid, inv.Status)

		events := cn.GetDomainEvents()
		require.Len(t, events, 1)
		validated := events[0].(*CreditNoteValidatedEvent)
		require.Len(t, validated.Restock, 1)
		assert.Equal(t, int64(2), validated.Restock[0].Quantity)
	})
}

func TestCreditNote_RepeatedPartialReturns(t *testing.T) {
	inv, err := NewInvoice(NewInvoiceParams{
		Number:             "FAC-2024-002",
		ClientID:           uuid.New(),
		WithholdingEnabled: true,
		Lines:              []LineItem{mustLine(t, "Audit day", ArticleKindService, 3, "100")},
	}, withholdingAggregator())
	require.NoError(t, err)
	assertMoney(t, "271", inv.AmountTTC)

	lineID := inv.Lines[0].ID
	expected := []string{"90", "90", "91"}
	for i, want := range expected {
		cn, err := NewCreditNote("AVO-2024-00"+string(rune('1'+i)), inv, time.Now(),
			[]ReturnSelection{{LineID: lineID, ReturnedQuantity: 1}}, "")
		require.NoError(t, err)
		assertMoney(t, want, cn.AmountTTC)
		require.NoError(t, cn.Validate(inv))
	}

	assertMoney(t, "0", inv.AmountDue)
	assert.True(t, inv.Lines[0].CreditedTTC.Equals(inv.Lines[0].AmountTTC))
	assert.True(t, inv.Lines[0].CreditedHT.Equals(inv.Lines[0].AmountHT))
	assert.Equal(t, int64(0), inv.Lines[0].ReturnableQuantity())
}

func TestCreditNote_OverlappingPendingNotes(t *testing.T) {
	inv, err := NewInvoice(NewInvoiceParams{
		Number:             "FAC-2024-003",
		ClientID:           uuid.New(),
		WithholdingEnabled: true,
		Lines:              []LineItem{mustLine(t, "Support hour", ArticleKindService, 2, "15")},
	}, withholdingAggregator())
	require.NoError(t, err)
	assertMoney(t, "27", inv.AmountTTC)

	selection := []ReturnSelection{{LineID: inv.Lines[0].ID, ReturnedQuantity: 1}}
	first, err := NewCreditNote("AVO-2024-001", inv, time.Now(), selection, "")
	require.NoError(t, err)
	second, err := NewCreditNote("AVO-2024-002", inv, time.Now(), selection, "")
	require.NoError(t, err)
	assertMoney(t, "14", first.AmountTTC)
	assertMoney(t, "14", second.AmountTTC)

	require.NoError(t, first.Validate(inv))
	require.NoError(t, second.Validate(inv))

	assertMoney(t, "14", first.AmountTTC)
	assertMoney(t, "13", second.AmountTTC)
	assertMoney(t, "15", second.AmountHT)
	assert.True(t, inv.Lines[0].CreditedTTC.Equals(inv.Lines[0].AmountTTC))
	assert.True(t, inv.Lines[0].CreditedHT.Equals(inv.Lines[0].AmountHT))
	assertMoney(t, "0", inv.AmountDue)
}

func TestCreditNote_Lifecycle(t *testing.T) {
	t.Run("selection can be edited while pending", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)

		require.NoError(t, cn.UpdateSelection(inv, []ReturnSelection{{LineID: serviceLine(inv).ID, ReturnedQuantity: 1}}))
		assertMoney(t, "18100", cn.AmountTTC)
		assertMoney(t, "20000", cn.AmountHT)
	})

	t.Run("refused notes are frozen", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)
		require.NoError(t, cn.Refuse("no goods received"))

		assert.Equal(t, CreditNoteStatusRefused, cn.Status)
		assert.True(t, errors.Is(cn.Refuse(""), ErrCreditNoteNotPending))
		assert.True(t, errors.Is(cn.CanDelete(), ErrCreditNoteNotPending))
		assert.True(t, errors.Is(cn.UpdateSelection(inv, nil), ErrCreditNoteNotPending))
		assertMoney(t, "38100", inv.AmountDue)
	})

	t.Run("pending notes can be deleted", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		cn, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		require.NoError(t, err)
		assert.NoError(t, cn.CanDelete())
	})

	t.Run("cannot be drafted against a cancelled invoice", func(t *testing.T) {
		inv := newScenarioInvoice(t)
		require.NoError(t, inv.Cancel(""))
		_, err := NewCreditNote("AVO-2024-001", inv, time.Now(), []ReturnSelection{
			{LineID: goodLine(inv).ID, ReturnedQuantity: 1},
		}, "")
		assert.True(t, errors.Is(err, ErrInvoiceCancelled))
	})
}
