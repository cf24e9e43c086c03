package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFiles embed.FS

// newMigrator opens its own connection because closing the migrator closes
// the database handle. An empty path uses the embedded migrations.
func newMigrator(driverName, dsn, path string) (*migrate.Migrate, error) {
	sqlDriver, _, err := resolveDriver(driverName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName, err)
	}

	var target migratedb.Driver
	switch driverName {
	case DriverPostgres:
		target, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	case DriverSQLite:
		target, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	if path != "" {
		m, err := migrate.NewWithDatabaseInstance("file://"+path, driverName, target)
		if err != nil {
			target.Close()
			return nil, fmt.Errorf("load migrations from %s: %w", path, err)
		}
		return m, nil
	}

	src, err := iofs.New(migrationFiles, "migrations/"+driverName)
	if err != nil {
		target.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driverName, target)
	if err != nil {
		target.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending migration.
func RunMigrations(driverName, dsn, path string) error {
	m, err := newMigrator(driverName, dsn, path)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Printf("[DB] Schema at version %d", version)
	return nil
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(driverName, dsn, path string) error {
	m, err := newMigrator(driverName, dsn, path)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// GetMigrationVersion reports the applied version and whether the last
// migration failed halfway. A fresh database reports version 0.
func GetMigrationVersion(driverName, dsn, path string) (uint, bool, error) {
	m, err := newMigrator(driverName, dsn, path)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}
