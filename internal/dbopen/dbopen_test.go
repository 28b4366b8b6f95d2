package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenMemory_Pragmas(t *testing.T) {
	db := OpenMemory(t)
	var fk, busy int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if fk != 1 || busy != 10_000 {
		t.Errorf("foreign_keys=%d busy_timeout=%d", fk, busy)
	}
}

func TestOpen_MkdirAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.db")
	db, err := Open(path, WithMkdirAll(), WithSchema("CREATE TABLE t (v TEXT)"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec("INSERT INTO t VALUES ('x')"); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_BadSchema(t *testing.T) {
	if _, err := Open(":memory:", WithSchema("NOT SQL")); err == nil {
		t.Fatal("expected schema error")
	}
}

func TestRunTx_Rollback(t *testing.T) {
	db := OpenMemory(t, WithSchema("CREATE TABLE t (v TEXT)"))
	boom := errors.New("boom")
	err := RunTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t VALUES ('x')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	var n int
	db.QueryRow("SELECT count(*) FROM t").Scan(&n)
	if n != 0 {
		t.Errorf("rows after rollback = %d", n)
	}
}

func TestIsBusy(t *testing.T) {
	if !IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("busy not detected")
	}
	if IsBusy(nil) || IsBusy(errors.New("no such table")) {
		t.Error("false positive")
	}
}
