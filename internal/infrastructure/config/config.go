package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Invoicing InvoicingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	MigrationsPath  string // empty selects the embedded migrations
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool // Log full SQL statements (dev only)
	ProfilingEnabled  bool
	ProfilingServer   string // Pyroscope server address
}

// Sequence backends
const (
	SequenceBackendDatabase = "database"
	SequenceBackendRedis    = "redis"
	SequenceBackendMemory   = "memory"
)

// InvoicingConfig holds the financial rules of the engine
type InvoicingConfig struct {
	Currency           string
	WithholdingPercent string // decimal string, e.g. "9.5"
	VATPercent         string // decimal string, "0" disables VAT
	PaymentTermDays    int
	NumberPadding      int
	InvoicePrefix      string
	QuotePrefix        string
	CreditNotePrefix   string
	SettlementPrefix   string
	SequenceBackend    string // database, redis or memory
	RetryAttempts      int    // optimistic-lock retries per command
}

// Load loads configuration from a .env file, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with INVOICING_ prefix (e.g., INVOICING_DATABASE_PASSWORD)
// 2. config.toml
// 3. defaults
func Load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("INVOICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			MigrationsPath:  v.GetString("database.migrations_path"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
		Invoicing: InvoicingConfig{
			Currency:           v.GetString("invoicing.currency"),
			WithholdingPercent: v.GetString("invoicing.withholding_percent"),
			VATPercent:         v.GetString("invoicing.vat_percent"),
			PaymentTermDays:    v.GetInt("invoicing.payment_term_days"),
			NumberPadding:      v.GetInt("invoicing.number_padding"),
			InvoicePrefix:      v.GetString("invoicing.invoice_prefix"),
			QuotePrefix:        v.GetString("invoicing.quote_prefix"),
			CreditNotePrefix:   v.GetString("invoicing.credit_note_prefix"),
			SettlementPrefix:   v.GetString("invoicing.settlement_prefix"),
			SequenceBackend:    v.GetString("invoicing.sequence_backend"),
			RetryAttempts:      v.GetInt("invoicing.retry_attempts"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults are registered with viper, so an explicit zero in config.toml or
// the environment is kept
var defaults = map[string]any{
	"app.name":                      "invoicing",
	"app.env":                       "development",
	"database.driver":               "postgres",
	"database.host":                 "localhost",
	"database.port":                 5432,
	"database.user":                 "postgres",
	"database.dbname":               "invoicing",
	"database.sslmode":              "disable",
	"database.path":                 "invoicing.db",
	"database.max_open_conns":       25,
	"database.max_idle_conns":       5,
	"database.conn_max_lifetime":    60,
	"database.conn_max_idle_time":   30,
	"redis.host":                    "localhost",
	"redis.port":                    6379,
	"log.level":                     "info",
	"log.format":                    "console",
	"log.output":                    "stdout",
	"telemetry.collector_endpoint":  "localhost:4317",
	"telemetry.sampling_ratio":      1.0,
	"telemetry.service_name":        "invoicing",
	"telemetry.metrics_interval":    60 * time.Second,
	"telemetry.profiling_server":    "http://localhost:4040",
	"invoicing.currency":            "XAF",
	"invoicing.withholding_percent": "9.5",
	"invoicing.vat_percent":         "0",
	"invoicing.payment_term_days":   30,
	"invoicing.number_padding":      3,
	"invoicing.invoice_prefix":      "FAC",
	"invoicing.quote_prefix":        "DEV",
	"invoicing.credit_note_prefix":  "AVO",
	"invoicing.settlement_prefix":   "REG",
	"invoicing.sequence_backend":    SequenceBackendDatabase,
	"invoicing.retry_attempts":      3,
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		if c.Invoicing.SequenceBackend == SequenceBackendMemory {
			return fmt.Errorf("invoicing.sequence_backend=memory loses counters on restart and is not allowed in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	switch c.Invoicing.SequenceBackend {
	case SequenceBackendDatabase, SequenceBackendRedis, SequenceBackendMemory:
	default:
		return fmt.Errorf("invoicing.sequence_backend must be database, redis or memory, got %q", c.Invoicing.SequenceBackend)
	}
	for key, value := range map[string]string{
		"invoicing.withholding_percent": c.Invoicing.WithholdingPercent,
		"invoicing.vat_percent":         c.Invoicing.VATPercent,
	} {
		pct, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%s must be a decimal percentage, got %q", key, value)
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s must be between 0 and 100, got %s", key, value)
		}
	}
	if c.Invoicing.PaymentTermDays < 0 {
		return fmt.Errorf("invoicing.payment_term_days cannot be negative")
	}
	if c.Invoicing.NumberPadding < 1 || c.Invoicing.NumberPadding > 12 {
		return fmt.Errorf("invoicing.number_padding must be between 1 and 12, got %d", c.Invoicing.NumberPadding)
	}
	if c.Invoicing.RetryAttempts < 1 {
		return fmt.Errorf("invoicing.retry_attempts must be at least 1")
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
