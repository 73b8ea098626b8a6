package carriers

import (
	"embed"
	"io/fs"
)

// migrationsFS embeds the carrier schema: the shipment journal, batch record,
// rate-limit state, and activity tables that store/sql reads and writes, with
// SQLite alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded carrier migration tree. The migrations
// package resolves it into per-dialect filesystems and validates coverage.
func MigrationsFS() fs.FS {
	return migrationsFS
}
