package invoicing_test

import (
	"path/filepath"
	"testing"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/event"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var issueDate = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *appinvoicing.Service
	db      *persistence.Database
	bus     *event.InMemoryEventBus
	restock *event.RestockHandler
	keys    *cache.InMemoryIdempotencyStore
}

// newFixture wires the service on a migrated sqlite database, the same way
// the command line does it
func newFixture(t *testing.T, opts ...appinvoicing.Option) *fixture {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "invoicing.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = db.Close() })

	log := zaptest.NewLogger(t)
	bus := event.NewInMemoryEventBus(log)
	restock := event.NewRestockHandler(log)
	bus.Subscribe(restock)

	keys := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = keys.Close() })

	aggregator := invoicing.NewAggregator(valueobject.XAF, valueobject.ZeroRate(), valueobject.MustRateFromPercent("9.5"))
	sequence := invoicing.NewSequence(persistence.NewGormSequenceStore(db.DB), invoicing.DefaultNumberFormat())

	base := []appinvoicing.Option{
		appinvoicing.WithLogger(log),
		appinvoicing.WithEventPublisher(bus),
		appinvoicing.WithIdempotencyStore(keys, time.Hour),
		appinvoicing.WithRetryInterval(time.Millisecond),
		appinvoicing.WithClock(func() time.Time { return issueDate }),
	}
	svc := appinvoicing.NewService(
		appinvoicing.Repositories{
			Invoices:    persistence.NewGormInvoiceRepository(db.DB),
			CreditNotes: persistence.NewGormCreditNoteRepository(db.DB),
			Quotes:      persistence.NewGormQuoteRepository(db.DB),
		},
		persistence.NewGormTransactionScope(db.DB),
		sequence,
		aggregator,
		append(base, opts...)...,
	)
	return &fixture{svc: svc, db: db, bus: bus, restock: restock, keys: keys}
}

var (
	printerID      = uuid.MustParse("6f1d2c1e-7a9b-4a1f-9c55-0d2b7e1c0a01")
	installationID = uuid.MustParse("6f1d2c1e-7a9b-4a1f-9c55-0d2b7e1c0a02")
)

// referenceLines are 2 printers at 10,000 (GOOD) and an installation at
// 20,000 (SERVICE)
func referenceLines() []appinvoicing.LineRequest {
	return []appinvoicing.LineRequest{
		{ArticleID: printerID, Designation: "Printer", Kind: "GOOD", Quantity: 2, UnitPrice: decimal.NewFromInt(10000)},
		{ArticleID: installationID, Designation: "Installation", Kind: "SERVICE", Quantity: 1, UnitPrice: decimal.NewFromInt(20000)},
	}
}

func amount(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireAmount(t *testing.T, expected int64, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, actual.Equal(decimal.NewFromInt(expected)), "expected %d, got %s %v", expected, actual, msgAndArgs)
}
