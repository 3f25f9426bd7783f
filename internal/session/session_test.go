package session

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

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

type fakeLifecycle struct {
	mu      sync.Mutex
	running map[string]bool
	starts  []string
	stops   []string

	// beforeStop runs at the start of Stop, outside the lock.
	beforeStop func(userID string)
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{running: map[string]bool{}}
}

func (f *fakeLifecycle) Start(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[userID] {
		return false
	}
	f.running[userID] = true
	f.starts = append(f.starts, userID)
	return true
}

func (f *fakeLifecycle) Stop(userID string) bool {
	if f.beforeStop != nil {
		f.beforeStop(userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[userID] {
		return false
	}
	delete(f.running, userID)
	f.stops = append(f.stops, userID)
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUserID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"john.doe@gmail.com", "john_doe@gmail_com"},
		{" Alice@Example.COM ", "alice@example_com"},
		{"no-dots@localhost", "no-dots@localhost"},
	}
	for _, tt := range tests {
		if got := UserID(tt.in); got != tt.want {
			t.Errorf("UserID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManager_LoginLogout(t *testing.T) {
	ctx := context.Background()
	lc := newFakeLifecycle()
	m := NewManager(newTestStore(t), lc, discardLogger())

	phone, err := m.Login(ctx, "Alice <alice@example.com>", &Coordinates{Latitude: 59.33, Longitude: 18.06})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if phone.UserID != "alice@example_com" || phone.Email != "alice@example.com" {
		t.Errorf("session = %+v", phone)
	}
	speaker, err := m.Login(ctx, "alice@example.com", nil)
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	got, err := m.Resolve(ctx, phone.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Location == nil || got.Location.Latitude != 59.33 {
		t.Errorf("resolved location = %+v", got.Location)
	}

	if err := m.Logout(ctx, phone.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(lc.stops) != 0 {
		t.Errorf("stopped %v while another session is open", lc.stops)
	}

	if err := m.Logout(ctx, speaker.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !reflect.DeepEqual(lc.stops, []string{"alice@example_com"}) {
		t.Errorf("stops = %v, want [alice@example_com]", lc.stops)
	}

	if _, err := m.Resolve(ctx, phone.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve after logout error = %v, want ErrNotFound", err)
	}
	if err := m.Logout(ctx, phone.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("double Logout error = %v, want ErrNotFound", err)
	}
}

func (f *fakeLifecycle) isRunning(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[userID]
}

func TestManager_LoginDuringLogoutKeepsTasksRunning(t *testing.T) {
	ctx := context.Background()
	lc := newFakeLifecycle()
	m := NewManager(newTestStore(t), lc, discardLogger())

	phone, err := m.Login(ctx, "alice@example.com", nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A second device logs in after Logout has counted zero sessions
	// and before the tasks are stopped.
	var (
		speaker  *Session
		loginErr error
	)
	loggedIn := make(chan struct{})
	lc.beforeStop = func(string) {
		lc.beforeStop = nil
		go func() {
			defer close(loggedIn)
			speaker, loginErr = m.Login(ctx, "alice@example.com", nil)
		}()
		select {
		case <-loggedIn:
		case <-time.After(50 * time.Millisecond):
		}
	}

	if err := m.Logout(ctx, phone.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	<-loggedIn
	if loginErr != nil {
		t.Fatalf("concurrent Login: %v", loginErr)
	}

	if _, err := m.Resolve(ctx, speaker.Token); err != nil {
		t.Fatalf("Resolve(second session): %v", err)
	}
	if !lc.isRunning("alice@example_com") {
		t.Error("user has an open session but no background tasks")
	}
}

func TestManager_LoginRejectsBadEmail(t *testing.T) {
	m := NewManager(newTestStore(t), nil, discardLogger())
	if _, err := m.Login(context.Background(), "not an address", nil); err == nil {
		t.Error("Login with invalid email should fail")
	}
}

func TestManager_ResolveEmptyToken(t *testing.T) {
	m := NewManager(newTestStore(t), nil, discardLogger())
	if _, err := m.Resolve(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(\"\") error = %v, want ErrNotFound", err)
	}
}

func TestManager_UpdateLocation(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t), nil, discardLogger())
	sess, _ := m.Login(ctx, "bob@example.com", nil)

	if err := m.UpdateLocation(ctx, sess.Token, Coordinates{Latitude: 1, Longitude: 2}); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	got, _ := m.Resolve(ctx, sess.Token)
	if got.Location == nil || *got.Location != (Coordinates{Latitude: 1, Longitude: 2}) {
		t.Errorf("location = %+v", got.Location)
	}

	if err := m.UpdateLocation(ctx, "missing", Coordinates{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateLocation(missing) = %v, want ErrNotFound", err)
	}
}

func TestManager_ResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	m := NewManager(store, nil, discardLogger())
	m.Login(ctx, "alice@example.com", nil)
	m.Login(ctx, "alice@example.com", nil)
	m.Login(ctx, "bob@example.com", nil)
	store.Close()

	store, err = OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	lc := newFakeLifecycle()
	n, err := NewManager(store, lc, discardLogger()).Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if n != 2 {
		t.Errorf("Resume started %d users, want 2", n)
	}
	if !reflect.DeepEqual(lc.starts, []string{"alice@example_com", "bob@example_com"}) {
		t.Errorf("starts = %v", lc.starts)
	}
}
