package alarm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the persistence contract for alarms. Every method is scoped
// to one user's partition.
type Store interface {
	// Append stores a new record under a generated id.
	Append(ctx context.Context, userID string, r Record) (Record, error)
	// All returns the user's records in insertion order.
	All(ctx context.Context, userID string) ([]Record, error)
	// DueBy returns records whose minute key is <= upperKey, plus any
	// record whose date and clock do not parse.
	DueBy(ctx context.Context, userID, upperKey string) ([]Record, error)
	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID, id string) error
	// Patch applies p to one record.
	Patch(ctx context.Context, userID, id string, p Patch) error
}

// SQLiteStore is a Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenStore opens (or creates) the alarm database at dbPath.
func OpenStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database and creates the schema.
func NewStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alarms (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		date TEXT NOT NULL,
		clock TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		due_key TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alarms_user_due ON alarms(user_id, due_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// Append stores r under a new id and returns the stored record.
func (s *SQLiteStore) Append(ctx context.Context, userID string, r Record) (Record, error) {
	r.ID = NewID()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alarms (id, user_id, day, date, clock, title, due_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, userID, r.Day, r.Date, r.Clock, r.Title, dueKey(r), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Record{}, storeErr("append", err)
	}
	return r, nil
}

// All returns every record of the user in insertion order.
func (s *SQLiteStore) All(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, day, date, clock, title FROM alarms
		WHERE user_id = ? ORDER BY seq
	`, userID)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return scanRecords(rows)
}

// DueBy returns the user's records with due_key <= upperKey, oldest key
// first. Malformed records carry an empty key and are always included.
func (s *SQLiteStore) DueBy(ctx context.Context, userID, upperKey string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, day, date, clock, title FROM alarms
		WHERE user_id = ? AND due_key <= ? ORDER BY due_key, seq
	`, userID, upperKey)
	if err != nil {
		return nil, storeErr("range query", err)
	}
	return scanRecords(rows)
}

// Delete removes one record of the user.
func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// Patch applies p to the record and recomputes its range key.
func (s *SQLiteStore) Patch(ctx context.Context, userID, id string, p Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("patch", err)
	}
	defer tx.Rollback()

	var r Record
	err = tx.QueryRowContext(ctx, `
		SELECT id, day, date, clock, title FROM alarms WHERE user_id = ? AND id = ?
	`, userID, id).Scan(&r.ID, &r.Day, &r.Date, &r.Clock, &r.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("patch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return storeErr("patch", err)
	}

	r = p.Apply(r)
	_, err = tx.ExecContext(ctx, `
		UPDATE alarms SET day = ?, date = ?, clock = ?, title = ?, due_key = ?
		WHERE user_id = ? AND id = ?
	`, r.Day, r.Date, r.Clock, r.Title, dueKey(r), userID, id)
	if err != nil {
		return storeErr("patch", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("patch", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Day, &r.Date, &r.Clock, &r.Title); err != nil {
			return nil, storeErr("scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("scan", err)
	}
	return out, nil
}
