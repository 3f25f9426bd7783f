package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lifecycle is notified when a user's first session opens and when the
// last one closes. The alarm supervisor implements it.
type Lifecycle interface {
	Start(userID string) bool
	Stop(userID string) bool
}

// Manager opens and closes sessions and keeps per-user background
// work in step with them. Login and Logout for the same user are
// serialized so the session count and the lifecycle never disagree.
type Manager struct {
	store     *Store
	lifecycle Lifecycle
	logger    *slog.Logger

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewManager creates a Manager. lifecycle may be nil.
func NewManager(store *Store, lifecycle Lifecycle, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		lifecycle: lifecycle,
		logger:    logger,
		users:     make(map[string]*sync.Mutex),
	}
}

// lockUser holds userID's lock until the returned func is called.
func (m *Manager) lockUser(userID string) func() {
	m.mu.Lock()
	l, ok := m.users[userID]
	if !ok {
		l = &sync.Mutex{}
		m.users[userID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Login opens a session for email. Identity is asserted by the caller;
// the manager only partitions by it.
func (m *Manager) Login(ctx context.Context, email string, loc *Coordinates) (*Session, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, fmt.Errorf("invalid email %q: %w", email, err)
	}

	sess := &Session{
		Token:     uuid.NewString(),
		UserID:    UserID(addr.Address),
		Email:     addr.Address,
		Location:  loc,
		CreatedAt: time.Now(),
	}

	unlock := m.lockUser(sess.UserID)
	defer unlock()

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	if m.lifecycle != nil && m.lifecycle.Start(sess.UserID) {
		m.logger.Info("user background tasks started", "user_id", sess.UserID)
	}
	m.logger.Info("session opened", "user_id", sess.UserID)
	return sess, nil
}

// Logout closes the session for token. The user's background work
// stops when no other session remains.
func (m *Manager) Logout(ctx context.Context, token string) error {
	sess, err := m.store.Get(ctx, token)
	if err != nil {
		return err
	}

	unlock := m.lockUser(sess.UserID)
	defer unlock()

	if err := m.store.Delete(ctx, token); err != nil {
		return err
	}
	m.logger.Info("session closed", "user_id", sess.UserID)

	remaining, err := m.store.CountForUser(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if remaining == 0 && m.lifecycle != nil && m.lifecycle.Stop(sess.UserID) {
		m.logger.Info("user background tasks stopped", "user_id", sess.UserID)
	}
	return nil
}

// Resolve returns the session for token.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return m.store.Get(ctx, token)
}

// UpdateLocation records a new device position for the session.
func (m *Manager) UpdateLocation(ctx context.Context, token string, c Coordinates) error {
	return m.store.SetLocation(ctx, token, c)
}

// Resume restarts background work for every user with an open session.
// It is called once at startup.
func (m *Manager) Resume(ctx context.Context) (int, error) {
	users, err := m.store.Users(ctx)
	if err != nil {
		return 0, err
	}
	if m.lifecycle == nil {
		return 0, nil
	}

	n := 0
	for _, u := range users {
		if m.lifecycle.Start(u) {
			n++
		}
	}
	return n, nil
}
