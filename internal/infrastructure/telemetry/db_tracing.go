package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold flags statements slower than this
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// DBTracingConfig holds the database tracing configuration
type DBTracingConfig struct {
	DBSystem        string // postgresql or sqlite
	LogFullSQL      bool   // keep bound values in span statements
	SlowQueryThresh time.Duration
}

// DBTracingPlugin is a gorm plugin creating a span per statement through
// otelgorm, then annotating it with rows affected, errors and slowness
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates the plugin; register it with db.Use
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultSlowQueryThreshold
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Name implements gorm.Plugin
func (p *DBTracingPlugin) Name() string {
	return "invoicing:db_tracing"
}

// Initialize implements gorm.Plugin
func (p *DBTracingPlugin) Initialize(db *gorm.DB) error {
	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// Our hooks wrap otelgorm's: the start time lands in the parent context
	// and the statement span is annotated before otelgorm ends it.
	cb := db.Callback()
	hooks := []struct {
		before, after func(string, func(*gorm.DB)) error
		op            string
	}{
		{cb.Create().Before("otel:before:create").Register, cb.Create().After("gorm:create").Before("otel:after:create").Register, "create"},
		{cb.Query().Before("otel:before:select").Register, cb.Query().After("gorm:query").Before("otel:after:select").Register, "query"},
		{cb.Update().Before("otel:before:update").Register, cb.Update().After("gorm:update").Before("otel:after:update").Register, "update"},
		{cb.Delete().Before("otel:before:delete").Register, cb.Delete().After("gorm:delete").Before("otel:after:delete").Register, "delete"},
		{cb.Row().Before("otel:before:row").Register, cb.Row().After("gorm:row").Before("otel:after:row").Register, "row"},
		{cb.Raw().Before("otel:before:raw").Register, cb.Raw().After("gorm:raw").Before("otel:after:raw").Register, "raw"},
	}
	for _, h := range hooks {
		if err := h.before("invoicing:trace_start_"+h.op, markQueryStart); err != nil {
			return err
		}
		if err := h.after("invoicing:trace_end_"+h.op, p.annotateSpan); err != nil {
			return err
		}
	}

	p.logger.Debug("database tracing enabled",
		zap.String("db_system", p.config.DBSystem),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

type queryStartKey struct{}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	slow := elapsed > p.config.SlowQueryThresh
	if slow {
		p.logger.Warn("slow query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
		)
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}

var _ gorm.Plugin = (*DBTracingPlugin)(nil)
