package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRun_UnknownCommand(t *testing.T) {
	err := run([]string{"sideways"}, "", zaptest.NewLogger(t), &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_CreateThenList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sql")
	log := zaptest.NewLogger(t)

	var out bytes.Buffer
	require.NoError(t, run([]string{"create", "Add payment terms", "Per-client terms"}, dir, log, &out))
	assert.Contains(t, out.String(), "000001_add_payment_terms.up.sql")
	assert.Contains(t, out.String(), "000001_add_payment_terms.down.sql")

	out.Reset()
	require.NoError(t, run([]string{"create", "index_due"}, dir, log, &out))

	out.Reset()
	require.NoError(t, run([]string{"list"}, dir, log, &out))
	assert.Equal(t, []string{"000001_add_payment_terms", "000002_index_due"},
		strings.Fields(out.String()))
}

func TestRun_ListEmbedded(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"list"}, "", zaptest.NewLogger(t), &out))
	assert.Contains(t, out.String(), "000001_init")
}

func TestArgumentChecks(t *testing.T) {
	assert.ErrorIs(t, opCreate(t.TempDir(), nil, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, opStep(nil, nil, []string{"0"}), errUsage)
	assert.ErrorIs(t, opStep(nil, nil, []string{"up"}), errUsage)
	assert.ErrorIs(t, opGoto(nil, nil, nil), errUsage)
	assert.ErrorIs(t, opForce(nil, nil, []string{"-1"}), errUsage)
	assert.ErrorIs(t, opDrop(nil, nil, nil), errUsage)

	v, err := parseVersion([]string{"3"}, "goto")
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
}

func TestPrintUsage_ListsEveryCommand(t *testing.T) {
	var out bytes.Buffer
	printUsage(&out)
	for name := range ops {
		assert.Contains(t, out.String(), "  "+name)
	}
	assert.Equal(t, "(embedded)", displayPath(""))
}
