package tools

import (
	"context"
	"errors"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
)

type contextKey string

const sessionKey contextKey = "session"

// ErrNoSession is returned by tools that act on a user's data when the
// call carries no session.
var ErrNoSession = errors.New("no session in context")

// WithSession attaches the caller's session to the context.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session set by WithSession, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// userID returns the partition of the calling user.
func userID(ctx context.Context) (string, error) {
	s := SessionFromContext(ctx)
	if s == nil || s.UserID == "" {
		return "", ErrNoSession
	}
	return s.UserID, nil
}
