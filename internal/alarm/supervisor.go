package alarm

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// RunFunc is a long-running per-user task. It must return once ctx is
// cancelled.
type RunFunc func(ctx context.Context, userID string) error

// Supervisor keeps one task per logged-in user. Start launches it on
// login; Stop cancels it on logout and waits for it to exit.
type Supervisor struct {
	parent context.Context
	run    RunFunc
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a Supervisor whose tasks live at most as long
// as ctx.
func NewSupervisor(ctx context.Context, run RunFunc, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		parent: ctx,
		run:    run,
		logger: logger,
		tasks:  make(map[string]*task),
	}
}

// Start launches the task for userID. It reports false when one is
// already running.
func (s *Supervisor) Start(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[userID]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(s.parent)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.tasks[userID] = t

	go s.supervise(ctx, userID, t)
	return true
}

func (s *Supervisor) supervise(ctx context.Context, userID string, t *task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("user task panicked", "user_id", userID, "panic", r)
		}

		s.mu.Lock()
		if s.tasks[userID] == t {
			delete(s.tasks, userID)
		}
		s.mu.Unlock()

		t.cancel()
		close(t.done)
	}()

	err := s.run(ctx, userID)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("user task exited", "user_id", userID, "error", err)
	}
}

// Stop cancels the task for userID and waits for it to finish. It
// reports false when no task was running.
func (s *Supervisor) Stop(userID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[userID]
	if ok {
		delete(s.tasks, userID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	<-t.done
	return true
}

// Running reports whether a task for userID is active.
func (s *Supervisor) Running(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[userID]
	return ok
}

// Users returns the users with an active task, sorted.
func (s *Supervisor) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.tasks))
	for u := range s.tasks {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// StopAll cancels every task and waits for all of them.
func (s *Supervisor) StopAll() {
	for _, u := range s.Users() {
		s.Stop(u)
	}
}
