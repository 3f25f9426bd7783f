package alarm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/match"
)

// Service is the alarm CRUD API. Every call names the user explicitly
// and holds that user's lock for its whole read-filter-write cycle.
type Service struct {
	store  Store
	locks  *userLocks
	logger *slog.Logger
}

// NewService creates a Service over store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		locks:  newUserLocks(),
		logger: logger,
	}
}

// Set appends a new alarm. Identical alarms may be set more than once.
func (s *Service) Set(ctx context.Context, userID string, req SetRequest) (Record, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	r, err := s.store.Append(ctx, userID, Record{
		Day:   req.Day,
		Date:  req.Date,
		Clock: req.Clock,
		Title: req.Title,
	})
	if err != nil {
		return Record{}, err
	}

	s.logger.Info("alarm set", "user_id", userID, "alarm_id", r.ID, "date", r.Date, "clock", r.Clock)
	return r, nil
}

// Delete removes every alarm matching f. An empty filter matches, and
// therefore deletes, all of the user's alarms.
func (s *Service) Delete(ctx context.Context, userID string, f Filter) (Result, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	matched, err := s.selectLocked(ctx, userID, f)
	if err != nil {
		return Result{}, err
	}
	if len(matched) == 0 {
		return Result{Message: MsgNotFound}, nil
	}
	if f.IsEmpty() {
		s.logger.Warn("deleting all alarms (no filter given)", "user_id", userID, "count", len(matched))
	}

	for _, r := range matched {
		if err := s.store.Delete(ctx, userID, r.ID); err != nil {
			return Result{}, err
		}
	}

	s.logger.Info("alarms deleted", "user_id", userID, "count", len(matched))
	return Result{Matched: len(matched), Message: MsgDeleted}, nil
}

// Modify applies p to every alarm matching f.
func (s *Service) Modify(ctx context.Context, userID string, f Filter, p Patch) (Result, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	matched, err := s.selectLocked(ctx, userID, f)
	if err != nil {
		return Result{}, err
	}
	if len(matched) == 0 {
		return Result{Message: MsgNotFound}, nil
	}

	for _, r := range matched {
		if err := s.store.Patch(ctx, userID, r.ID, p); err != nil {
			return Result{}, err
		}
	}

	s.logger.Info("alarms modified", "user_id", userID, "count", len(matched))
	return Result{Matched: len(matched), Message: MsgModified}, nil
}

// List returns the user's alarms in insertion order.
func (s *Service) List(ctx context.Context, userID string) ([]Record, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	return s.store.All(ctx, userID)
}

func (s *Service) selectLocked(ctx context.Context, userID string, f Filter) ([]Record, error) {
	all, err := s.store.All(ctx, userID)
	if err != nil {
		return nil, err
	}
	return match.Filter(all, match.Equal,
		match.On(f.Day, func(r Record) string { return r.Day }),
		match.On(f.Date, func(r Record) string { return r.Date }),
		match.On(f.Clock, func(r Record) string { return r.Clock }),
		match.On(f.Title, func(r Record) string { return r.Title }),
	), nil
}

// userLocks hands out one mutex per user.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*sync.Mutex)}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.m[userID]
	if !ok {
		m = &sync.Mutex{}
		l.m[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
