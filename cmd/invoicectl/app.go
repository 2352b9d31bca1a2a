package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/event"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// app owns everything a command needs and closes it in reverse order
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	telemetry *telemetry.Telemetry
	db        *persistence.Database
	stores    *cache.StoreFactory
	bus       *event.InMemoryEventBus
	restock   *event.RestockHandler
	service   *appinvoicing.Service
	closers   []func() error
}

type appOptions struct {
	journalPath    string
	idempotencyKey bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{cfg: cfg}
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		// stdout carries command output
		Output: "stderr",
	}
	if cfg.Log.Output != "stdout" {
		logCfg.Output = cfg.Log.Output
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.telemetry, err = telemetry.Setup(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.telemetry.Shutdown(context.Background()) })

	a.log, err = logger.New(logCfg, a.telemetry.Logs.ZapCore(cfg.App.Name, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.closers = append(a.closers, func() error { _ = logger.Sync(a.log); return nil })

	if err := a.openDatabase(); err != nil {
		a.Close()
		return nil, err
	}

	a.stores = cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(a.log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	a.closers = append(a.closers, a.stores.Close)

	if err := a.wireEvents(opts.journalPath); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.buildService(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openDatabase() error {
	dbSystem := "postgresql"
	if a.cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}

	level := gormlogger.Warn
	if a.cfg.Log.Level == "debug" {
		level = gormlogger.Info
	}
	opts := []persistence.DatabaseOption{
		persistence.WithZapLogger(a.log.Named("gorm"), level),
		persistence.WithFullSQLLogging(a.cfg.Telemetry.DBLogFullSQL),
	}
	if a.cfg.Telemetry.DBTraceEnabled {
		opts = append(opts, persistence.WithPlugin(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			DBSystem:   dbSystem,
			LogFullSQL: a.cfg.Telemetry.DBLogFullSQL,
		}, a.log)))
	}

	db, err := persistence.NewDatabase(&a.cfg.Database, opts...)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	reg, err := telemetry.RegisterDBPoolMetrics(a.telemetry.Meter.Meter(telemetry.InvoicingMeterName), sqlDB, dbSystem)
	if err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	a.closers = append(a.closers, reg.Unregister)
	return nil
}

func (a *app) wireEvents(journalPath string) error {
	a.bus = event.NewInMemoryEventBus(a.log)
	a.restock = event.NewRestockHandler(a.log)
	a.bus.Subscribe(a.restock)

	if journalPath == "" {
		return nil
	}
	f, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event journal: %w", err)
	}
	a.closers = append(a.closers, f.Close)
	a.bus.Subscribe(event.NewJournalHandler(f, event.NewInvoicingSerializer()))
	return nil
}

func (a *app) buildService(opts appOptions) error {
	ic := a.cfg.Invoicing
	currency, err := valueobject.ParseCurrency(ic.Currency)
	if err != nil {
		return err
	}
	vat, err := valueobject.NewRateFromPercent(ic.VATPercent)
	if err != nil {
		return fmt.Errorf("invoicing.vat_percent: %w", err)
	}
	withholding, err := valueobject.NewRateFromPercent(ic.WithholdingPercent)
	if err != nil {
		return fmt.Errorf("invoicing.withholding_percent: %w", err)
	}

	store, err := a.stores.CreateSequenceStore(ic.SequenceBackend, persistence.NewGormSequenceStore(a.db.DB))
	if err != nil {
		return err
	}
	sequence := invoicing.NewSequence(store, invoicing.NumberFormat{
		Prefixes: map[invoicing.DocumentType]string{
			invoicing.DocumentTypeInvoice:    ic.InvoicePrefix,
			invoicing.DocumentTypeQuote:      ic.QuotePrefix,
			invoicing.DocumentTypeCreditNote: ic.CreditNotePrefix,
			invoicing.DocumentTypeSettlement: ic.SettlementPrefix,
		},
		Padding: ic.NumberPadding,
	})

	serviceOpts := []appinvoicing.Option{
		appinvoicing.WithLogger(a.log),
		appinvoicing.WithMetrics(a.telemetry.Metrics),
		appinvoicing.WithEventPublisher(a.bus),
		appinvoicing.WithRetryAttempts(ic.RetryAttempts),
		appinvoicing.WithPaymentTermDays(ic.PaymentTermDays),
	}
	if opts.idempotencyKey {
		keys, err := a.stores.CreateIdempotencyStore()
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, appinvoicing.WithIdempotencyStore(keys, 0))
	}

	a.service = appinvoicing.NewService(
		appinvoicing.Repositories{
			Invoices:    persistence.NewGormInvoiceRepository(a.db.DB),
			CreditNotes: persistence.NewGormCreditNoteRepository(a.db.DB),
			Quotes:      persistence.NewGormQuoteRepository(a.db.DB),
		},
		persistence.NewGormTransactionScope(a.db.DB),
		sequence,
		invoicing.NewAggregator(currency, vat, withholding),
		serviceOpts...,
	)
	return nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
