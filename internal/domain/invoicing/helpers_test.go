package invoicing

import (
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xaf(amount string) valueobject.Money {
	return valueobject.MustMoney(amount, valueobject.XAF)
}

func assertMoney(t *testing.T, expected string, actual valueobject.Money, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, actual.Equals(xaf(expected)), append([]any{"expected %s XAF, got %s", expected, actual}, msgAndArgs...)...)
}

func withholdingAggregator() Aggregator {
	return NewAggregator(valueobject.XAF, valueobject.ZeroRate(), valueobject.MustRateFromPercent("9.5"))
}

func mustLine(t *testing.T, designation string, kind ArticleKind, quantity int64, price string) LineItem {
	t.Helper()
	line, err := NewLineItem(uuid.New(), designation, kind, quantity, xaf(price))
	require.NoError(t, err)
	return line
}

// scenarioLines is one GOOD line (2 x 10,000) and one SERVICE line (1 x 20,000)
func scenarioLines(t *testing.T) []LineItem {
	return []LineItem{
		mustLine(t, "Printer", ArticleKindGood, 2, "10000"),
		mustLine(t, "Installation", ArticleKindService, 1, "20000"),
	}
}

func newScenarioInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice(NewInvoiceParams{
		Number:             "FAC-2024-001",
		ClientID:           uuid.New(),
		IssueDate:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		WithholdingEnabled: true,
		Lines:              scenarioLines(t),
	}, withholdingAggregator())
	require.NoError(t, err)
	inv.MarkPersisted()
	inv.ClearDomainEvents()
	return inv
}

func pay(amount string) Payment {
	return Payment{Number: "REG-2024-001", Amount: xaf(amount), Method: PaymentMethodCash}
}
