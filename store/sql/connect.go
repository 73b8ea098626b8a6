package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Open connects to the database named by dialect and wraps it in a bun
// handle ready for NewRepositoryFactoryFromDB. The caller owns the handle
// and closes it when the stores are done.
func Open(dialect string, dsn string) (*bun.DB, error) {
	dialect = strings.TrimSpace(strings.ToLower(dialect))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	switch dialect {
	case DialectPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DialectSQLite:
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
}

// OpenFactory opens a connection and builds the repository factory on it in
// one step.
func OpenFactory(dialect string, dsn string) (*RepositoryFactory, *bun.DB, error) {
	db, err := Open(dialect, dsn)
	if err != nil {
		return nil, nil, err
	}
	factory, err := NewRepositoryFactoryFromDB(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return factory, db, nil
}
