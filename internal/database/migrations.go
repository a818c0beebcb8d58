package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

// MigrationRunner applies the patients and risk_assessments schema.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner reads SQL files from a directory on disk. Used when
// database.migrations_path is configured to override the embedded set.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance from %s: %w", migrationsPath, err)
	}
	return &MigrationRunner{migrate: m, log: logger}, nil
}

// NewEmbeddedMigrationRunner runs the migrations compiled into the binary.
func NewEmbeddedMigrationRunner(databaseURL string, migrations fs.FS, logger *logrus.Logger) (*MigrationRunner, error) {
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	return &MigrationRunner{migrate: m, log: logger}, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mr.log.Info("Applying schema migrations")

	err := mr.migrate.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		mr.log.Info("Schema already up to date")
		return nil
	case err != nil:
		return fmt.Errorf("applying migrations: %w", err)
	}

	mr.logVersion("Schema migrated")
	return nil
}

// Down reverts the most recent migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mr.log.Info("Reverting last schema migration")

	err := mr.migrate.Steps(-1)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		mr.log.Info("Nothing to revert")
		return nil
	case err != nil:
		return fmt.Errorf("reverting migration: %w", err)
	}

	mr.logVersion("Schema reverted")
	return nil
}

func (mr *MigrationRunner) logVersion(msg string) {
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read schema version")
		return
	}
	mr.log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info(msg)
}

// Version reports the applied schema version and whether the last run left it dirty.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close releases the source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
