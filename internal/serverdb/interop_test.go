//go:build cgo

package serverdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marcus/worklog/internal/models"
)

// The data file is plain SQLite, so backups and ad-hoc inspection can use
// any driver. This reads it back through the cgo driver.
func TestDatabaseReadableByCgoDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec, _, err := db.AddRecord(models.CollectionLogs, models.LogRecord{Name: "Standup", Time: "15m"}, "u_1")
	if err != nil {
		t.Fatalf("add record: %v", err)
	}
	if _, err := db.DeleteRecord(models.CollectionLogs, rec.ID); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open with sqlite3: %v", err)
	}
	defer raw.Close()

	var live int
	if err := raw.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&live); err != nil {
		t.Fatalf("count records: %v", err)
	}
	if live != 0 {
		t.Errorf("records = %d, want 0", live)
	}

	rows, err := raw.Query(`SELECT kind, record_id FROM changes ORDER BY seq`)
	if err != nil {
		t.Fatalf("query changes: %v", err)
	}
	defer rows.Close()
	var kinds []string
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			t.Fatal(err)
		}
		if id != rec.ID {
			t.Errorf("change for %q, want %q", id, rec.ID)
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) != 2 || kinds[0] != "added" || kinds[1] != "removed" {
		t.Errorf("change kinds = %v, want [added removed]", kinds)
	}
}
