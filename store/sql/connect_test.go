package sqlstore

import (
	"testing"
)

func TestOpen_ValidatesInput(t *testing.T) {
	if _, err := Open(DialectSQLite, "   "); err == nil {
		t.Fatalf("expected blank dsn to fail")
	}
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatalf("expected unsupported dialect to fail")
	}
}

func TestOpenFactory_SQLite(t *testing.T) {
	factory, db, err := OpenFactory("SQLite", "file:connect_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open factory: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if factory.JournalStore() == nil || factory.BatchStore() == nil {
		t.Fatalf("expected stores built on the opened handle")
	}
	if factory.RateLimitStateStore() == nil || factory.ActivityStore() == nil {
		t.Fatalf("expected auxiliary stores built on the opened handle")
	}
}
