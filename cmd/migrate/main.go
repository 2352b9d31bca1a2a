// Command migrate manages the invoicing schema with golang-migrate. Without
// -path it applies the migrations compiled into the binary.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/migration"
	"go.uber.org/zap"
)

// errUsage reports a malformed command line
var errUsage = errors.New("usage")

// fileOp works on migration files without touching the database
type fileOp func(dir string, args []string, stdout io.Writer) error

// dbOp runs against an opened migrator
type dbOp func(m *migration.Migrator, log *zap.Logger, args []string) error

type op struct {
	usage string
	help  string
	file  fileOp
	db    dbOp
}

var ops = map[string]op{
	"up":      {help: "Apply all pending migrations", db: opUp},
	"down":    {help: "Roll back every migration", db: opDown},
	"step":    {usage: "<n>", help: "Apply n migrations, negative rolls back", db: opStep},
	"goto":    {usage: "<version>", help: "Migrate up or down to version", db: opGoto},
	"version": {help: "Show the applied version", db: opVersion},
	"force":   {usage: "<version>", help: "Set the version without running migrations", db: opForce},
	"drop":    {usage: "-confirm", help: "Drop every table", db: opDrop},
	"create":  {usage: "<name> [description]", help: "Write a new up/down pair", file: opCreate},
	"list":    {help: "List the available migrations", file: opList},
}

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Migrations directory (default: migrations compiled into the binary)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(args, migrationsPath, log, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, migrationsPath string, log *zap.Logger, stdout io.Writer) error {
	name, rest := args[0], args[1:]
	o, ok := ops[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	if o.file != nil {
		return o.file(migrationsPath, rest, stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if migrationsPath == "" {
		migrationsPath = cfg.Database.MigrationsPath
	}
	log.Info("Migration CLI started",
		zap.String("command", name),
		zap.String("driver", cfg.Database.Driver),
		zap.String("migrations_path", displayPath(migrationsPath)),
	)

	db, err := migration.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, cfg.Database.Driver, migrationsPath, log)
	if err != nil {
		return err
	}
	defer m.Close()

	return o.db(m, log, rest)
}

func displayPath(path string) string {
	if path == "" {
		return "(embedded)"
	}
	return path
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Invoicing database migration tool\n\nUsage:\n  migrate [-path dir] [-log-level info] <command> [arguments]\n\nCommands:")
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o := ops[name]
		fmt.Fprintf(w, "  %-28s %s\n", name+" "+o.usage, o.help)
	}
	fmt.Fprintln(w, "\nThe database comes from INVOICING_DATABASE_* variables or config.toml.")
}
