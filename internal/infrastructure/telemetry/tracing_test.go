package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestStartServiceSpan_EndSpan(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvent  string
	}{
		{name: "success", wantStatus: codes.Ok},
		{name: "business rule", err: shared.NewDomainError("OVERPAYMENT", "too much"), wantStatus: codes.Unset, wantEvent: "business_rule_rejected"},
		{name: "infrastructure", err: errors.New("db down"), wantStatus: codes.Error, wantEvent: "exception"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := withSpanRecorder(t)

			_, span := StartServiceSpan(context.Background(), "InvoiceService", "ApplyPayment",
				attribute.String("invoice.number", "FAC-2024-001"))
			EndSpan(span, tt.err)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "InvoiceService.ApplyPayment", spans[0].Name())
			assert.Equal(t, tt.wantStatus, spans[0].Status().Code)
			if tt.wantEvent != "" {
				require.NotEmpty(t, spans[0].Events())
				assert.Equal(t, tt.wantEvent, spans[0].Events()[0].Name)
			}
		})
	}
}
