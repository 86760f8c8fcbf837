package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/worklog/internal/models"
)

// ErrRecordNotFound is returned when a record id does not exist in the collection.
var ErrRecordNotFound = errors.New("record not found")

const (
	defChangesLimit = 500
	maxChangesLimit = 5000
)

// Snapshot is the current contents of a collection together with the
// change sequence it reflects.
type Snapshot struct {
	Records []models.LogRecord
	LastSeq int64
}

// ChangesResult is a page of the change log.
type ChangesResult struct {
	Changes []models.ChangeEvent
	LastSeq int64
	HasMore bool
}

// AddRecord inserts a record with a store-assigned ID and appends an
// "added" change in the same transaction.
func (db *ServerDB) AddRecord(collection string, rec models.LogRecord, createdBy string) (*models.LogRecord, int64, error) {
	rec = rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()
	rec.ID = NewRecordID()
	rec.CreatedBy = createdBy
	rec.CreatedAt = now
	rec.UpdatedAt = now

	var seq int64
	err := db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO records (collection, id, name, time, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			collection, rec.ID, rec.Name, rec.Time, rec.CreatedBy, now, now,
		); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		var err error
		seq, err = appendChange(tx, collection, models.ChangeAdded, rec, now)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return &rec, seq, nil
}

// UpdateRecord replaces the name and time of an existing record and
// appends a "modified" change.
func (db *ServerDB) UpdateRecord(collection string, rec models.LogRecord) (*models.LogRecord, int64, error) {
	rec = rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()
	var seq int64
	var updated *models.LogRecord
	err := db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE records SET name = ?, time = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			rec.Name, rec.Time, now, collection, rec.ID,
		)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrRecordNotFound
		}
		updated, err = getRecord(tx, collection, rec.ID)
		if err != nil {
			return err
		}
		seq, err = appendChange(tx, collection, models.ChangeModified, *updated, now)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, seq, nil
}

// DeleteRecord removes a record and appends a "removed" change carrying the
// record as it was at deletion time.
func (db *ServerDB) DeleteRecord(collection, id string) (int64, error) {
	now := time.Now().UTC()
	var seq int64
	err := db.withTx(func(tx *sql.Tx) error {
		rec, err := getRecord(tx, collection, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM records WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		seq, err = appendChange(tx, collection, models.ChangeRemoved, *rec, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// GetRecord returns a single record, or ErrRecordNotFound.
func (db *ServerDB) GetRecord(collection, id string) (*models.LogRecord, error) {
	return getRecord(db.conn, collection, id)
}

// SnapshotCollection returns every record in insertion order and the last
// change sequence, read in one transaction so the two agree.
func (db *ServerDB) SnapshotCollection(collection string) (*Snapshot, error) {
	snap := &Snapshot{}
	err := db.withTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT id, name, time, created_by, created_at, updated_at FROM records WHERE collection = ? ORDER BY created_at, rowid`,
			collection,
		)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r models.LogRecord
			if err := rows.Scan(&r.ID, &r.Name, &r.Time, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan record: %w", err)
			}
			snap.Records = append(snap.Records, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("list records: iterate: %w", err)
		}
		return tx.QueryRow(
			`SELECT COALESCE(MAX(seq), 0) FROM changes WHERE collection = ?`, collection,
		).Scan(&snap.LastSeq)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ChangesSince returns changes to collection with seq > afterSeq in commit
// order. limit <= 0 selects the default page size.
func (db *ServerDB) ChangesSince(collection string, afterSeq int64, limit int) (*ChangesResult, error) {
	if limit <= 0 {
		limit = defChangesLimit
	}
	if limit > maxChangesLimit {
		limit = maxChangesLimit
	}

	// Fetch one extra row to detect has_more
	rows, err := db.conn.Query(`
		SELECT seq, kind, record_id, name, time, created_by, committed_at
		FROM changes
		WHERE collection = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, collection, afterSeq, limit+1)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	result := &ChangesResult{LastSeq: afterSeq}
	for rows.Next() {
		var ev models.ChangeEvent
		var kind string
		var committed time.Time
		if err := rows.Scan(&ev.Seq, &kind, &ev.Record.ID, &ev.Record.Name, &ev.Record.Time, &ev.Record.CreatedBy, &committed); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		ev.Kind = models.ChangeKind(kind)
		ev.Record.UpdatedAt = committed
		result.Changes = append(result.Changes, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query changes: iterate: %w", err)
	}

	if len(result.Changes) > limit {
		result.HasMore = true
		result.Changes = result.Changes[:limit]
	}
	if n := len(result.Changes); n > 0 {
		result.LastSeq = result.Changes[n-1].Seq
	}
	return result, nil
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getRecord(q queryRower, collection, id string) (*models.LogRecord, error) {
	r := &models.LogRecord{}
	err := q.QueryRow(
		`SELECT id, name, time, created_by, created_at, updated_at FROM records WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&r.ID, &r.Name, &r.Time, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

func appendChange(tx *sql.Tx, collection string, kind models.ChangeKind, rec models.LogRecord, at time.Time) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO changes (collection, kind, record_id, name, time, created_by, committed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		collection, string(kind), rec.ID, rec.Name, rec.Time, rec.CreatedBy, at,
	)
	if err != nil {
		return 0, fmt.Errorf("append change: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("change seq: %w", err)
	}
	return seq, nil
}

// withTx runs fn in a transaction, committing on nil error.
func (db *ServerDB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
