package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/erp/invoicing/internal/infrastructure/migration"
	"go.uber.org/zap"
)

func opUp(m *migration.Migrator, _ *zap.Logger, _ []string) error {
	return m.Up()
}

func opDown(m *migration.Migrator, _ *zap.Logger, _ []string) error {
	return m.Down()
}

func opStep(m *migration.Migrator, _ *zap.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: migrate step <n>", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n == 0 {
		return fmt.Errorf("%w: invalid step count %q", errUsage, args[0])
	}
	return m.Steps(n)
}

func parseVersion(args []string, command string) (uint, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: migrate %s <version>", errUsage, command)
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid version %q", errUsage, args[0])
	}
	return uint(v), nil
}

func opGoto(m *migration.Migrator, _ *zap.Logger, args []string) error {
	v, err := parseVersion(args, "goto")
	if err != nil {
		return err
	}
	return m.GoTo(v)
}

func opVersion(m *migration.Migrator, log *zap.Logger, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("No migrations applied")
		return nil
	}
	log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func opForce(m *migration.Migrator, log *zap.Logger, args []string) error {
	v, err := parseVersion(args, "force")
	if err != nil {
		return err
	}
	log.Warn("Forcing migration version", zap.Uint("version", v))
	return m.Force(int(v))
}

func opDrop(m *migration.Migrator, _ *zap.Logger, args []string) error {
	if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
		return fmt.Errorf("%w: drop needs -confirm", errUsage)
	}
	return m.Drop()
}

func opCreate(dir string, args []string, stdout io.Writer) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: migrate create <name> [description]", errUsage)
	}
	if dir == "" {
		dir = migration.DefaultDir
	}
	description := ""
	if len(args) == 2 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n%s\n", mf.UpPath, mf.DownPath)
	return err
}

func opList(dir string, _ []string, stdout io.Writer) error {
	var (
		entries []migration.Entry
		err     error
	)
	if dir == "" {
		entries, err = migration.ListEmbedded()
	} else {
		entries, err = migration.ListMigrations(dir)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintln(stdout, e); err != nil {
			return err
		}
	}
	return nil
}
