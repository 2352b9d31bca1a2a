package migration

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "migrate.db")})
	require.NoError(t, err)
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestMigrator_UpAndDown(t *testing.T) {
	db := openSQLite(t)
	m, err := New(db, "sqlite", "", zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
	for _, table := range []string{"invoices", "invoice_lines", "settlements", "credit_notes", "credit_note_lines", "quotes", "quote_lines", "document_sequences"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	version, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// a second run is a no-op
	require.NoError(t, m.Up())

	require.NoError(t, m.Down())
	assert.False(t, tableExists(t, db, "invoices"))
}

func TestMigrator_UniqueNumbers(t *testing.T) {
	db := openSQLite(t)
	m, err := New(db, "sqlite", "", nil)
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Up())

	insert := `INSERT INTO quotes (id, number, client_id, issue_date, currency, version, created_at, updated_at)
VALUES (?, 'DEV-2024-00001', 'c', '2024-01-01', 'XAF', 1, '2024-01-01', '2024-01-01')`
	_, err = db.Exec(insert, "a")
	require.NoError(t, err)
	_, err = db.Exec(insert, "b")
	assert.Error(t, err)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(nil, "oracle", "", nil)
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
