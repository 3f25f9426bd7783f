package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists sessions in SQLite so logged-in users survive a restart.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the session database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
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
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		email      TEXT NOT NULL,
		latitude   REAL,
		longitude  REAL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create stores a new session.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	var lat, lon sql.NullFloat64
	if sess.Location != nil {
		lat = sql.NullFloat64{Float64: sess.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: sess.Location.Longitude, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, email, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.Token, sess.UserID, sess.Email, lat, lon, sess.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns the session for token, or ErrNotFound.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	var (
		sess      Session
		lat, lon  sql.NullFloat64
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, email, latitude, longitude, created_at
		FROM sessions WHERE token = ?
	`, token).Scan(&sess.Token, &sess.UserID, &sess.Email, &lat, &lon, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if lat.Valid && lon.Valid {
		sess.Location = &Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &sess, nil
}

// SetLocation updates the device position of a session.
func (s *Store) SetLocation(ctx context.Context, token string, c Coordinates) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET latitude = ?, longitude = ? WHERE token = ?
	`, c.Latitude, c.Longitude, token)
	if err != nil {
		return fmt.Errorf("set location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CountForUser returns the number of open sessions of userID.
func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Users returns every user with at least one open session.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
