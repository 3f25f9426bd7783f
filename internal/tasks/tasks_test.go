package tasks

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ListsAndTasks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.CreateList(ctx, "alice", "Groceries")
	s.CreateList(ctx, "alice", "Homework")
	s.CreateList(ctx, "bob", "Garage")

	lists, err := s.Lists(ctx, "alice")
	if err != nil {
		t.Fatalf("Lists: %v", err)
	}
	if len(lists) != 2 || lists[0].Title != "Groceries" || lists[1].Title != "Homework" {
		t.Errorf("Lists = %+v", lists)
	}

	for _, item := range []string{"milk", "eggs"} {
		if _, err := s.AddTask(ctx, "alice", "groceries", item); err != nil {
			t.Fatalf("AddTask(%s): %v", item, err)
		}
	}
	got, err := s.Tasks(ctx, "alice", "GROCERIES")
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(got) != 2 || got[0].Title != "milk" || got[1].Title != "eggs" {
		t.Errorf("Tasks = %+v", got)
	}

	if _, err := s.AddTask(ctx, "bob", "Groceries", "beer"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("AddTask on another user's list error = %v, want ErrListNotFound", err)
	}
	if _, err := s.CreateList(ctx, "alice", "  "); err == nil {
		t.Error("CreateList with blank name should fail")
	}
}

func TestStore_RemoveIsFuzzy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.CreateList(ctx, "alice", "Shopping list")
	s.AddTask(ctx, "alice", "Shopping list", "Buy tomatoes")
	s.AddTask(ctx, "alice", "Shopping list", "Buy bread")

	tests := []struct {
		name     string
		list     string
		task     string
		wantErr  error
		wantTask string
	}{
		{"near miss task", "shopping list", "buy tomatos", nil, "Buy tomatoes"},
		{"too different", "Shopping list", "bread", ErrTaskNotFound, ""},
		{"near miss list", "Shoping list", "Buy bread", nil, "Buy bread"},
		{"unknown list", "Work", "anything", ErrListNotFound, ""},
	}
	for _, tt := range tests {
		got, err := s.RemoveTask(ctx, "alice", tt.list, tt.task)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: RemoveTask error = %v, want %v", tt.name, err, tt.wantErr)
			continue
		}
		if got.Title != tt.wantTask {
			t.Errorf("%s: removed %q, want %q", tt.name, got.Title, tt.wantTask)
		}
	}

	if _, err := s.RemoveList(ctx, "alice", "Shopping lists"); err != nil {
		t.Fatalf("RemoveList: %v", err)
	}
	if lists, _ := s.Lists(ctx, "alice"); len(lists) != 0 {
		t.Errorf("Lists after RemoveList = %+v", lists)
	}
	if _, err := s.RemoveList(ctx, "alice", "Shopping list"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("second RemoveList error = %v", err)
	}
}
