package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinesFlag(t *testing.T) {
	var lines linesFlag
	id := uuid.New()

	require.NoError(t, lines.Set(id.String()+"=2"))
	require.Len(t, lines, 1)
	assert.Equal(t, id, lines[0].LineID)
	assert.Equal(t, int64(2), lines[0].Quantity)
	assert.Equal(t, id.String()+"=2", lines.String())

	assert.Error(t, lines.Set(id.String()))
	assert.Error(t, lines.Set("not-a-uuid=1"))
	assert.Error(t, lines.Set(id.String()+"=two"))
}

func TestUUIDFlag(t *testing.T) {
	var f uuidFlag
	assert.Error(t, requireID("invoice", &f))
	assert.Error(t, f.Set("FAC-2024-001"))

	id := uuid.New()
	require.NoError(t, f.Set(id.String()))
	assert.NoError(t, requireID("invoice", &f))
	assert.Equal(t, id.String(), f.String())
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.json")
	body := `{"client_id":"0b3f1c9e-5d8a-4c2b-9f61-2a7e4d1c8b90","withholding_enabled":true,
		"lines":[{"article_id":"6f1d2c1e-7a9b-4a1f-9c55-0d2b7e1c0a02","designation":"Installation","kind":"SERVICE","quantity":1,"unit_price":"20000"}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	var req appinvoicing.CreateInvoiceRequest
	require.NoError(t, decodeFile(path, &req))
	assert.True(t, req.WithholdingEnabled)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, "20000", req.Lines[0].UnitPrice.String())

	require.NoError(t, os.WriteFile(path, []byte(`{"client":"x"}`), 0o600))
	assert.Error(t, decodeFile(path, &req), "unknown fields are rejected")
	assert.Error(t, decodeFile("", &req))
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	code := reportError(&buf, invoicing.ErrOverpayment)
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"code": "OVERPAYMENT"`)

	buf.Reset()
	code = reportError(&buf, errors.New("connection refused"))
	assert.Equal(t, 1, code)
	assert.Equal(t, "error: connection refused\n", buf.String())
}

func TestCommandsAreDocumented(t *testing.T) {
	for name, c := range commands {
		assert.NotEmpty(t, c.usage, name)
		assert.NotEmpty(t, c.description, name)
		assert.NotNil(t, c.run, name)
	}
	assert.True(t, commands["pay"].needsKeys)
}
