package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InvoicingMeterName is the instrumentation scope of InvoicingMetrics
const InvoicingMeterName = "github.com/erp/invoicing"

// Attribute keys used by InvoicingMetrics
const (
	AttrOperation = attribute.Key("invoicing.operation")
	AttrOutcome   = attribute.Key("invoicing.outcome")
	AttrErrorCode = attribute.Key("invoicing.error_code")
	AttrDocType   = attribute.Key("invoicing.document_type")
	AttrMethod    = attribute.Key("invoicing.payment_method")
	AttrStatus    = attribute.Key("invoicing.status")
	AttrCurrency  = attribute.Key("invoicing.currency")
)

// Outcome values for AttrOutcome
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// InvoicingMetrics records business activity of the engine. A nil
// *InvoicingMetrics is valid and records nothing.
type InvoicingMetrics struct {
	documentsIssued   metric.Int64Counter
	paymentsApplied   metric.Int64Counter
	paymentAmount     metric.Float64Histogram
	creditNotes       metric.Int64Counter
	refundAmount      metric.Float64Histogram
	operationDuration metric.Float64Histogram
	operations        metric.Int64Counter
	retries           metric.Int64Counter
}

// NewInvoicingMetrics creates the instruments on meter
func NewInvoicingMetrics(meter metric.Meter) (*InvoicingMetrics, error) {
	m := &InvoicingMetrics{}
	var err error

	if m.documentsIssued, err = meter.Int64Counter("invoicing.documents.issued",
		metric.WithDescription("Documents created, by type"),
		metric.WithUnit("{document}")); err != nil {
		return nil, err
	}
	if m.paymentsApplied, err = meter.Int64Counter("invoicing.payments.applied",
		metric.WithDescription("Payments recorded against invoices"),
		metric.WithUnit("{payment}")); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = meter.Float64Histogram("invoicing.payments.amount",
		metric.WithDescription("Amount of recorded payments"),
		metric.WithUnit("{currency}")); err != nil {
		return nil, err
	}
	if m.creditNotes, err = meter.Int64Counter("invoicing.credit_notes",
		metric.WithDescription("Credit note lifecycle transitions"),
		metric.WithUnit("{credit_note}")); err != nil {
		return nil, err
	}
	if m.refundAmount, err = meter.Float64Histogram("invoicing.credit_notes.refund_amount",
		metric.WithDescription("TTC refunded by validated credit notes"),
		metric.WithUnit("{currency}")); err != nil {
		return nil, err
	}
	if m.operationDuration, err = meter.Float64Histogram("invoicing.operation.duration",
		metric.WithDescription("Duration of service operations"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500)); err != nil {
		return nil, err
	}
	if m.operations, err = meter.Int64Counter("invoicing.operations",
		metric.WithDescription("Service operations by outcome"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("invoicing.operation.retries",
		metric.WithDescription("Retries after a version conflict or a taken number"),
		metric.WithUnit("{retry}")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDocumentIssued counts a newly numbered document
func (m *InvoicingMetrics) RecordDocumentIssued(ctx context.Context, docType string) {
	if m == nil {
		return
	}
	m.documentsIssued.Add(ctx, 1, metric.WithAttributes(AttrDocType.String(docType)))
}

// RecordPayment counts a payment and its amount. status is the invoice
// status after the payment.
func (m *InvoicingMetrics) RecordPayment(ctx context.Context, method, status, currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.paymentsApplied.Add(ctx, 1, metric.WithAttributes(AttrMethod.String(method), AttrStatus.String(status)))
	m.paymentAmount.Record(ctx, amount.InexactFloat64(), metric.WithAttributes(AttrCurrency.String(currency)))
}

// RecordCreditNote counts a credit note transition (created, validated,
// refused, deleted). amount is recorded for validations only.
func (m *InvoicingMetrics) RecordCreditNote(ctx context.Context, transition, currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.creditNotes.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(transition)))
	if transition == "validated" {
		m.refundAmount.Record(ctx, amount.InexactFloat64(), metric.WithAttributes(AttrCurrency.String(currency)))
	}
}

// RecordRetry counts one retry of operation
func (m *InvoicingMetrics) RecordRetry(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation)))
}

// RecordOperation records the duration and outcome of a service call.
// Domain errors count as rejected, anything else as error.
func (m *InvoicingMetrics) RecordOperation(ctx context.Context, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrOperation.String(operation), AttrOutcome.String(OutcomeSuccess)}
	if err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			attrs[1] = AttrOutcome.String(OutcomeRejected)
			attrs = append(attrs, AttrErrorCode.String(de.Code))
		} else {
			attrs[1] = AttrOutcome.String(OutcomeError)
		}
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.operationDuration.Record(ctx, float64(elapsed.Microseconds())/1000,
		metric.WithAttributes(AttrOperation.String(operation)))
}
