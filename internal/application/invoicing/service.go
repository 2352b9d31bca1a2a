package invoicing

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const serviceName = "InvoicingService"

// DefaultRetryAttempts bounds retries after a concurrency conflict or a
// duplicate number
const DefaultRetryAttempts = 3

// Application-level error codes
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodePaymentInProgress = "PAYMENT_IN_PROGRESS"
)

// ErrPaymentInProgress is returned when an idempotency key is claimed but its
// payment is not stored yet
var ErrPaymentInProgress = shared.NewDomainError(CodePaymentInProgress,
	"A payment with this idempotency key is being processed")

// Repositories groups the stores the service reads and writes outside of a
// transaction
type Repositories struct {
	Invoices    invoicing.InvoiceRepository
	CreditNotes invoicing.CreditNoteRepository
	Quotes      invoicing.QuoteRepository
}

// Service runs the invoicing use cases: numbering, persistence with
// optimistic locking, and event publication around the domain engine.
type Service struct {
	repos          Repositories
	txScope        TransactionScope
	sequence       *invoicing.Sequence
	aggregator     invoicing.Aggregator
	paymentTerm    int
	retryAttempts  int
	retryInterval  time.Duration
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	publisher      shared.EventPublisher
	metrics        *telemetry.InvoicingMetrics
	logger         *zap.Logger
	clock          func() time.Time
	validate       *validator.Validate
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records business metrics on m
func WithMetrics(m *telemetry.InvoicingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRetryAttempts sets how many times a conflicting command is retried
func WithRetryAttempts(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retryAttempts = n
		}
	}
}

// WithRetryInterval sets the first backoff interval between retries
func WithRetryInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryInterval = d
		}
	}
}

// WithIdempotencyStore enables idempotency keys on payments
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.idempotency = store
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithEventPublisher publishes domain events once their aggregate is stored
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock replaces time.Now for default dates
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPaymentTermDays sets the due date offset used when none is given
func WithPaymentTermDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.paymentTerm = days
		}
	}
}

// NewService creates a Service. The sequence must not share a transaction
// with txScope: reserved numbers survive a rolled back document.
func NewService(
	repos Repositories,
	txScope TransactionScope,
	sequence *invoicing.Sequence,
	aggregator invoicing.Aggregator,
	opts ...Option,
) *Service {
	s := &Service{
		repos:          repos,
		txScope:        txScope,
		sequence:       sequence,
		aggregator:     aggregator,
		paymentTerm:    invoicing.DefaultPaymentTermDays,
		retryAttempts:  DefaultRetryAttempts,
		retryInterval:  20 * time.Millisecond,
		idempotencyTTL: shared.DefaultIdempotencyTTL,
		logger:         zap.NewNop(),
		clock:          time.Now,
		validate:       newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("invoicing")
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest turns validator failures into a VALIDATION_FAILED domain
// error with one detail per field
func (s *Service) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	de := shared.NewDomainError(CodeValidationFailed, "Request validation failed")
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		de = de.WithDetail(fe.Namespace(), rule)
	}
	return de
}

func (s *Service) now() time.Time {
	return s.clock()
}

// observe runs fn under a span, pprof labels and the operation metrics, and
// logs the outcome
func (s *Service) observe(ctx context.Context, op string, docType invoicing.DocumentType, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, op,
		attribute.String(string(telemetry.AttrDocType), string(docType)))

	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(op, string(docType)), func(ctx context.Context) {
		err = fn(ctx)
	})

	telemetry.EndSpan(span, err)
	s.metrics.RecordOperation(ctx, op, time.Since(start), err)

	if err != nil {
		log := logger.WithLogger(ctx, s.logger).With(zap.String("operation", op))
		if de, ok := shared.IsDomainError(err); ok {
			fields := []zap.Field{zap.String("code", de.Code), zap.String("reason", de.Message)}
			for k, v := range de.Details {
				fields = append(fields, zap.String(k, v))
			}
			log.Warn("business rule rejected", fields...)
		} else {
			log.Error("operation failed", zap.Error(err))
		}
	}
	return err
}

// isRetryable reports errors that go away with fresh state or a fresh number
func isRetryable(err error) bool {
	return errors.Is(err, shared.ErrConcurrencyConflict) || errors.Is(err, invoicing.ErrDuplicateNumber)
}

// withRetry runs fn until it succeeds, fails with a non retryable error or
// the attempts are exhausted. fn must reload whatever it mutates.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	b.MaxInterval = 10 * s.retryInterval
	b.MaxElapsedTime = 0

	operation := func() error {
		err := fn()
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.RecordRetry(ctx, op)
		logger.WithLogger(ctx, s.logger).Debug("retrying",
			zap.String("operation", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.retryAttempts)), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}

// nextNumber reserves the next number of a series for date's year
func (s *Service) nextNumber(ctx context.Context, docType invoicing.DocumentType, date time.Time) (string, error) {
	return s.sequence.Next(ctx, docType, date.Year())
}

// NextNumber reserves and returns the next number of a series. The number is
// consumed even if no document is created with it.
func (s *Service) NextNumber(ctx context.Context, docType invoicing.DocumentType, year int) (string, error) {
	var number string
	err := s.observe(ctx, "NextNumber", docType, func(ctx context.Context) error {
		if year == 0 {
			year = s.now().Year()
		}
		n, err := s.sequence.Next(ctx, docType, year)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	return number, err
}

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// publishEvents publishes and clears the events of stored aggregates.
// Publication failures are logged; the state change is already committed.
func (s *Service) publishEvents(ctx context.Context, sources ...eventSource) {
	var events []shared.DomainEvent
	for _, src := range sources {
		events = append(events, src.GetDomainEvents()...)
		src.ClearDomainEvents()
	}
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("event publication failed",
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}
