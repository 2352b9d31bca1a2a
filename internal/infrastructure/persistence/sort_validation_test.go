package persistence

import (
	"testing"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestValidateSortOrder(t *testing.T) {
	cases := map[string]string{
		"":                     "DESC",
		"asc":                  "ASC",
		"  ASC ":               "ASC",
		"desc":                 "DESC",
		"sideways":             "DESC",
		"ASC; DELETE FROM x--": "DESC",
	}
	for input, want := range cases {
		assert.Equal(t, want, ValidateSortOrder(input), "input %q", input)
	}
}

func TestValidateSortField_Documents(t *testing.T) {
	tests := []struct {
		name    string
		allowed map[string]bool
		input   string
		want    string
	}{
		{"invoice by due amount", InvoiceSortFields, "amount_due", "amount_due"},
		{"invoice by due date", InvoiceSortFields, " due_date ", "due_date"},
		{"credit note has no due date", CreditNoteSortFields, "due_date", "issue_date"},
		{"credit note by status", CreditNoteSortFields, "status", "status"},
		{"column case matters", InvoiceSortFields, "NUMBER", "issue_date"},
		{"empty falls back", InvoiceSortFields, "", "issue_date"},
		{"expression rejected", InvoiceSortFields, "amount_ttc * 2", "issue_date"},
		{"subquery rejected", CreditNoteSortFields, "(SELECT 1)", "issue_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateSortField(tt.input, tt.allowed, "issue_date"))
		})
	}
}

func TestSortFieldWhitelists_ShareIdentityColumns(t *testing.T) {
	for _, field := range []string{"id", "created_at", "updated_at", "number", "issue_date", "amount_ttc", "status"} {
		assert.True(t, InvoiceSortFields[field], "invoice %s", field)
		assert.True(t, CreditNoteSortFields[field], "credit note %s", field)
	}
}

func dryRunSQL(t *testing.T, filter shared.Filter) string {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{DryRun: true})
	require.NoError(t, err)

	var rows []models.InvoiceModel
	stmt := applyPageAndOrder(db.Model(&models.InvoiceModel{}), filter, InvoiceSortFields).
		Find(&rows).Statement
	return stmt.SQL.String()
}

func TestApplyPageAndOrder(t *testing.T) {
	sql := dryRunSQL(t, shared.Filter{Page: 3, PageSize: 10, OrderBy: "amount_due", OrderDir: "asc"})
	assert.Contains(t, sql, "ORDER BY amount_due ASC")
	assert.Contains(t, sql, "LIMIT 10 OFFSET 20")

	sql = dryRunSQL(t, shared.Filter{OrderBy: "amount_due; DROP TABLE invoices"})
	assert.Contains(t, sql, "ORDER BY created_at DESC")
	assert.NotContains(t, sql, "LIMIT")
	assert.NotContains(t, sql, "DROP")
}
