package telemetry

import (
	"context"
	"errors"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Telemetry bundles the providers started from configuration
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
	Metrics  *InvoicingMetrics
}

// Setup starts tracing, metrics, log export and profiling as configured.
// With telemetry disabled every provider is a no-op and Metrics still
// records into the global no-op meter.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{}
	var err error

	if t.Tracer, err = NewTracerProvider(ctx, Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger); err != nil {
		return nil, err
	}

	if t.Meter, err = NewMeterProvider(ctx, MetricsConfig{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.MetricsInterval,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	if t.Logs, err = NewLoggerProvider(ctx, LogsConfig{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	if t.Profiler, err = NewProfiler(ProfilerConfig{
		Enabled:            cfg.ProfilingEnabled,
		ServerAddress:      cfg.ProfilingServer,
		ApplicationName:    cfg.ServiceName,
		ProfileAllocations: true,
		ProfileGoroutines:  true,
	}, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	if t.Profiler.IsEnabled() {
		t.Tracer.EnableSpanProfiles()
	}

	if t.Metrics, err = NewInvoicingMetrics(t.Meter.Meter(InvoicingMeterName)); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	return t, nil
}

// Shutdown stops every started provider and joins their errors
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
