// Package dbconfig reads chains, RPC endpoints and tokens from Postgres and mirrors tracked
// bridge transactions into it.
package dbconfig

import (
	"context"
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DBConfig struct {
	db *sqlx.DB
}

// NewDBConfig creates a new DBConfig instance with the provided connection string. The pool
// connects lazily.
//
// Parameters:
// - connStr: the database connection string.
//
// Returns:
// - *DBConfig: a pointer to the newly created DBConfig instance.
// - error: an error if the driver rejects the connection string.
func NewDBConfig(connStr string) (*DBConfig, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(bridgeerrors.ErrDatabaseConnect, err.Error())
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &DBConfig{db: db}, nil
}

// Ping checks that the database is reachable.
func (r *DBConfig) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.Wrap(bridgeerrors.ErrDatabaseConnect, err.Error())
	}
	return nil
}

// Close closes the connection pool.
func (r *DBConfig) Close() error {
	return r.db.Close()
}

// RunMigrations applies the embedded schema migrations to the database at connStr.
func RunMigrations(connStr string) error {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return errors.Wrap(err, "failed to open database for migrations")
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create postgres driver")
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "failed to open embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migration instance")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to run migrations")
	}

	return nil
}
