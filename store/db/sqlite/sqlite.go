package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/agentrouter/internal/profile"
	"github.com/hrygo/agentrouter/internal/version"
	"github.com/hrygo/agentrouter/store"
)

//go:embed schema.sql
var schema string

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

var _ store.Driver = (*DB)(nil)

// NewDB opens the SQLite database named by profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	// - WAL keeps readers from blocking the single writer.
	//
	// References:
	// - https://pkg.go.dev/modernc.org/sqlite#Driver.Open
	// - https://www.sqlite.org/pragma.html
	separator := "?"
	if strings.Contains(profile.DSN, "?") {
		separator = "&"
	}
	dsn := profile.DSN + separator + "_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite serialises writers; a single connection avoids SQLITE_BUSY under WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	// Check if the database is initialized by checking if the interactions table exists.
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type='table' AND name='interactions')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// Migrate applies schema.sql when the recorded schema version is older than the current one.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migration (
			version TEXT NOT NULL PRIMARY KEY,
			applied_ts INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)`); err != nil {
		return errors.Wrap(err, "failed to create schema_migration table")
	}

	current, err := d.currentSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if !version.IsVersionGreaterThan(version.SchemaVersion, current) {
		slog.Debug("sqlite schema up to date", "version", current)
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migration (version) VALUES (?)", version.SchemaVersion); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("sqlite schema migrated", "from", current, "to", version.SchemaVersion)
	return nil
}

func (d *DB) currentSchemaVersion(ctx context.Context) (string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT version FROM schema_migration")
	if err != nil {
		return "", errors.Wrap(err, "failed to list schema versions")
	}
	defer rows.Close()

	latest := ""
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return "", errors.Wrap(err, "failed to scan schema version")
		}
		if version.IsVersionGreaterThan(v, latest) {
			latest = v
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return latest, nil
}
