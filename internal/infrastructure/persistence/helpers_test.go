package persistence

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newSQLiteDatabase opens a migrated sqlite database in a temp dir
func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "invoicing.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newMockDatabase creates a Database on a sqlmock postgres connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func xaf(amount string) valueobject.Money {
	return valueobject.MustMoney(amount, valueobject.XAF)
}

func testAggregator() invoicing.Aggregator {
	return invoicing.NewAggregator(valueobject.XAF, valueobject.ZeroRate(), valueobject.MustRateFromPercent("9.5"))
}

// newTestInvoice builds the reference invoice: 2 printers at 10,000 (GOOD)
// and one installation at 20,000 (SERVICE) with withholding, TTC 38,100
func newTestInvoice(t *testing.T, number string) *invoicing.Invoice {
	t.Helper()
	good, err := invoicing.NewLineItem(uuid.New(), "Printer", invoicing.ArticleKindGood, 2, xaf("10000"))
	require.NoError(t, err)
	service, err := invoicing.NewLineItem(uuid.New(), "Installation", invoicing.ArticleKindService, 1, xaf("20000"))
	require.NoError(t, err)

	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		Number:             number,
		ClientID:           uuid.New(),
		IssueDate:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		WithholdingEnabled: true,
		Lines:              []invoicing.LineItem{good, service},
	}, testAggregator())
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}
