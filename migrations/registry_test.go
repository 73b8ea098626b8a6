package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	carriers "github.com/goliatone/go-carriers"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	var labels []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, sourceLabel string, _ fs.FS) error {
		calls = append(calls, dialect)
		labels = append(labels, sourceLabel)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
	if labels[0] != "go-carriers" {
		t.Fatalf("expected go-carriers source label, got %q", labels[0])
	}
}

func TestFilesystems_RejectsTreeMissingCarrierTables(t *testing.T) {
	partial := []byte("CREATE TABLE IF NOT EXISTS carrier_shipments (id TEXT PRIMARY KEY);")
	tree := fstest.MapFS{
		"data/sql/migrations/001_shipments.up.sql":        {Data: partial},
		"data/sql/migrations/sqlite/001_shipments.up.sql": {Data: partial},
	}

	_, err := Filesystems(tree)
	if err == nil {
		t.Fatalf("expected incomplete schema to be rejected")
	}
	for _, table := range []string{"carrier_batches", "carrier_rate_limit_state", "carrier_activity"} {
		if !strings.Contains(err.Error(), table) {
			t.Fatalf("expected error to name missing table %s, got %v", table, err)
		}
	}
	if strings.Contains(err.Error(), "carrier_shipments") {
		t.Fatalf("expected created table to be absent from error, got %v", err)
	}
}

func TestRegister_ValidatesRequiredTablesPerTarget(t *testing.T) {
	partial := fstest.MapFS{
		"001_shipments.up.sql": {Data: []byte(`CREATE TABLE "carrier_shipments" (id TEXT PRIMARY KEY);`)},
	}
	spec := FilesystemSpec{Dialect: DialectSQLite, Path: "partial", FS: partial}

	var calls int
	registerFn := func(context.Context, string, string, fs.FS) error {
		calls++
		return nil
	}

	_, err := Register(context.Background(), registerFn,
		WithFilesystems(spec),
		WithValidationTargets(DialectSQLite),
	)
	if err == nil {
		t.Fatalf("expected incomplete filesystem to fail registration")
	}
	if calls != 0 {
		t.Fatalf("expected no registration before validation, got %d calls", calls)
	}

	_, err = Register(context.Background(), registerFn,
		WithFilesystems(spec),
		WithValidationTargets(DialectSQLite),
		WithRequiredTables("carrier_shipments"),
	)
	if err != nil {
		t.Fatalf("expected trimmed table set to register: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one registration call, got %d", calls)
	}
}

func TestRequiredTables_MatchStoreSchema(t *testing.T) {
	tables := RequiredTables()
	want := []string{"carrier_shipments", "carrier_batches", "carrier_rate_limit_state", "carrier_activity"}
	if len(tables) != len(want) {
		t.Fatalf("expected %d tables, got %d", len(want), len(tables))
	}
	for i, table := range want {
		if tables[i] != table {
			t.Fatalf("expected table %q at %d, got %q", table, i, tables[i])
		}
	}

	tables[0] = "mutated"
	if RequiredTables()[0] != "carrier_shipments" {
		t.Fatalf("expected RequiredTables to return a copy")
	}
}

func TestCarrierSchemaMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := carriers.MigrationsFS()
	names := []string{
		"20260115000001_create_carrier_shipments",
		"20260115000002_create_carrier_batches",
		"20260115000003_create_carrier_rate_limit_state",
		"20260115000004_create_carrier_activity",
	}
	for _, name := range names {
		paths := []string{
			"data/sql/migrations/" + name + ".up.sql",
			"data/sql/migrations/" + name + ".down.sql",
			"data/sql/migrations/sqlite/" + name + ".up.sql",
			"data/sql/migrations/sqlite/" + name + ".down.sql",
		}
		for _, migrationPath := range paths {
			content, err := fs.ReadFile(root, migrationPath)
			if err != nil {
				t.Fatalf("read migration %s: %v", migrationPath, err)
			}
			if strings.TrimSpace(string(content)) == "" {
				t.Fatalf("expected migration %s to have SQL content", migrationPath)
			}
		}
	}
}

func TestSQLiteCarrierShipmentsMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-carrier-shipments?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := carriers.MigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"20260115000001_create_carrier_shipments.up.sql",
	); err != nil {
		t.Fatalf("apply carrier shipments migration up: %v", err)
	}

	insertStatement := `
		INSERT INTO carrier_shipments (
			id,
			carrier_id,
			shipment_id,
			batch_id,
			category,
			status,
			attempts,
			document_ids,
			last_error,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"row-1", "acme", "ship-1", "batch-1", "policy", "delivered", 1, "[]", "",
		"2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert journal row: %v", err)
	}

	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"row-2", "acme", "ship-1", "batch-2", "policy", "failed", 2, "[]", "boom",
		"2026-01-02T00:00:00Z", "2026-01-02T00:00:00Z",
	); err == nil {
		t.Fatalf("expected unique (carrier_id, shipment_id) violation")
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"20260115000001_create_carrier_shipments.down.sql",
	); err != nil {
		t.Fatalf("apply carrier shipments migration down: %v", err)
	}

	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"carrier_shipments",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected carrier_shipments to be dropped after down migration")
	}
}

func TestSQLiteCarrierRateLimitStateMigration_EnforcesCarrierUniqueness(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-carrier-rate-limit?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := carriers.MigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"20260115000003_create_carrier_rate_limit_state.up.sql",
	); err != nil {
		t.Fatalf("apply rate limit state migration up: %v", err)
	}

	insertStatement := `
		INSERT INTO carrier_rate_limit_state (
			id, carrier_id, ceiling, limit_value, in_flight,
			success_streak, throttle_streak, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"state-1", "acme", 8, 4, 0, 0, 0, "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert state row: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"state-2", "acme", 8, 2, 0, 0, 0, "2026-01-02T00:00:00Z", "2026-01-02T00:00:00Z",
	); err == nil {
		t.Fatalf("expected unique carrier_id violation")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
