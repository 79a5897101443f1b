// Package migrate applies the embedded schema migrations.
package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql sqlite_ledger/*.sql
var migrations embed.FS

// Dialect selects the migration set and database driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	// SQLiteLedger is the ledger schema. It lives in its own database file so
	// ledger writes never wait on the registry's write transaction.
	SQLiteLedger Dialect = "sqlite_ledger"
)

// Up applies every pending migration. A database that is already current is
// not an error.
func Up(db *sql.DB, dialect Dialect) error {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s up: %w", dialect, err)
	}
	return nil
}

// Down reverts every applied migration.
func Down(db *sql.DB, dialect Dialect) error {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s down: %w", dialect, err)
	}
	return nil
}

// Version reports the applied schema version.
func Version(db *sql.DB, dialect Dialect) (uint, bool, error) {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrate %s version: %w", dialect, err)
	}
	return version, dirty, nil
}

func newMigrator(db *sql.DB, dialect Dialect) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case SQLite, SQLiteLedger:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("migrate: unknown dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("migrate %s driver: %w", dialect, err)
	}
	src, err := iofs.New(migrations, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("migrate %s source: %w", dialect, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return m, nil
}
