package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add settlement index", "add_settlement_index"},
		{"Add-Quote-Expiry", "add_quote_expiry"},
		{"ADD__CREDIT__NOTES", "add_credit_notes"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add quote expiry", "Quotes get a validity date")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_quote_expiry.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_quote_expiry.down.sql"), first.DownPath)

	content, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- up: add_quote_expiry")
	assert.Contains(t, string(content), "Quotes get a validity date")

	second, err := CreateMigration(dir, "settlement index", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)

	entries, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "000001_add_quote_expiry", entries[0].String())
	assert.Equal(t, "000002_settlement_index", entries[1].String())
	assert.True(t, entries[1].HasDown)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		entries, err := ListMigrations(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("ignores unrelated files", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"000003_c.up.sql", "000001_a.up.sql", "000001_a.down.sql", "README.md", "draft.sql"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "000002_dir.up.sql"), 0o755))

		entries, err := ListMigrations(dir)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, Entry{Version: 1, Name: "a", HasDown: true}, entries[0])
		assert.Equal(t, Entry{Version: 3, Name: "c"}, entries[1])
	})
}

func TestListEmbedded(t *testing.T) {
	entries, err := ListEmbedded()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "000001_init", entries[0].String())
	for _, e := range entries {
		assert.True(t, e.HasDown, "migration %s needs a down file", e)
	}
}
