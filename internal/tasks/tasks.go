// Package tasks keeps per-user to-do lists. Lists are found by exact
// (case-insensitive) name when adding and listing, and by similarity
// when removing, so a slightly misheard name still deletes the intended
// entry.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/match"
)

// RemoveThreshold is the similarity a name must exceed to be removed.
const RemoveThreshold = 0.9

var (
	// ErrListNotFound is returned when no list matches a name.
	ErrListNotFound = errors.New("task list not found")
	// ErrTaskNotFound is returned when no task in the list matches.
	ErrTaskNotFound = errors.New("task not found")
)

// List is a named task list.
type List struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Task is one entry of a list.
type Task struct {
	ID     string `json:"id"`
	ListID string `json:"list_id"`
	Title  string `json:"title"`
}

// Store persists task lists in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the task database at dbPath.
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
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS task_lists (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_task_lists_user ON task_lists(user_id);

	CREATE TABLE IF NOT EXISTS tasks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		list_id TEXT NOT NULL REFERENCES task_lists(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_list ON tasks(list_id);
	`)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Lists returns the user's lists in creation order.
func (s *Store) Lists(ctx context.Context, userID string) ([]List, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title FROM task_lists WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	var lists []List
	for rows.Next() {
		var l List
		if err := rows.Scan(&l.ID, &l.Title); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

// CreateList adds a list named title.
func (s *Store) CreateList(ctx context.Context, userID, title string) (List, error) {
	l := List{ID: uuid.NewString(), Title: strings.TrimSpace(title)}
	if l.Title == "" {
		return List{}, fmt.Errorf("list name is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_lists (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, userID, l.Title, now())
	if err != nil {
		return List{}, fmt.Errorf("insert list: %w", err)
	}
	return l, nil
}

// findList returns the first of the user's lists accepted by pred.
func (s *Store) findList(ctx context.Context, userID, name string, pred match.Predicate) (List, error) {
	lists, err := s.Lists(ctx, userID)
	if err != nil {
		return List{}, err
	}
	found := match.Filter(lists, pred, match.On(strings.TrimSpace(name), func(l List) string { return l.Title }))
	if len(found) == 0 {
		return List{}, fmt.Errorf("%w: %q", ErrListNotFound, name)
	}
	return found[0], nil
}

// Tasks returns the tasks of the named list in insertion order.
func (s *Store) Tasks(ctx context.Context, userID, listName string) ([]Task, error) {
	l, err := s.findList(ctx, userID, listName, strings.EqualFold)
	if err != nil {
		return nil, err
	}
	return s.tasksIn(ctx, l.ID)
}

func (s *Store) tasksIn(ctx context.Context, listID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, list_id, title FROM tasks WHERE list_id = ? ORDER BY seq`, listID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ListID, &t.Title); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// AddTask appends a task to the named list.
func (s *Store) AddTask(ctx context.Context, userID, listName, title string) (Task, error) {
	l, err := s.findList(ctx, userID, listName, strings.EqualFold)
	if err != nil {
		return Task{}, err
	}
	t := Task{ID: uuid.NewString(), ListID: l.ID, Title: strings.TrimSpace(title)}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, list_id, title, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.ListID, t.Title, now())
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// RemoveList deletes the first list similar to name, with its tasks.
func (s *Store) RemoveList(ctx context.Context, userID, name string) (List, error) {
	l, err := s.findList(ctx, userID, name, match.Similar(RemoveThreshold))
	if err != nil {
		return List{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return List{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE list_id = ?`, l.ID); err != nil {
		return List{}, fmt.Errorf("delete tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_lists WHERE id = ?`, l.ID); err != nil {
		return List{}, fmt.Errorf("delete list: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return List{}, fmt.Errorf("commit: %w", err)
	}
	return l, nil
}

// RemoveTask deletes the first task similar to taskName from the list
// similar to listName.
func (s *Store) RemoveTask(ctx context.Context, userID, listName, taskName string) (Task, error) {
	l, err := s.findList(ctx, userID, listName, match.Similar(RemoveThreshold))
	if err != nil {
		return Task{}, err
	}
	tasks, err := s.tasksIn(ctx, l.ID)
	if err != nil {
		return Task{}, err
	}

	found := match.Filter(tasks, match.Similar(RemoveThreshold),
		match.On(strings.TrimSpace(taskName), func(t Task) string { return t.Title }))
	if len(found) == 0 {
		return Task{}, fmt.Errorf("%w: %q in %q", ErrTaskNotFound, taskName, l.Title)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, found[0].ID); err != nil {
		return Task{}, fmt.Errorf("delete task: %w", err)
	}
	return found[0], nil
}
