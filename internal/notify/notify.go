// Package notify fans alarm announcements out to every delivery channel.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
)

// Multi delivers each announcement to all of its sinks. One sink
// failing does not stop delivery to the others.
type Multi struct {
	sinks  []alarm.Sink
	logger *slog.Logger
}

// NewMulti returns a sink that forwards to sinks in order. Nil sinks are
// skipped.
func NewMulti(logger *slog.Logger, sinks ...alarm.Sink) *Multi {
	m := &Multi{logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add appends a sink.
func (m *Multi) Add(s alarm.Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Notify implements alarm.Sink. The error joins every sink failure.
func (m *Multi) Notify(ctx context.Context, userID, utterance string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, userID, utterance); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		m.logger.Warn("announcement partially delivered",
			"user_id", userID,
			"failed", len(errs),
			"sinks", len(m.sinks),
		)
	}
	return errors.Join(errs...)
}

// Log returns a sink that only records announcements.
func Log(logger *slog.Logger) alarm.Sink {
	return alarm.SinkFunc(func(_ context.Context, userID, utterance string) error {
		logger.Info("alarm announced", "user_id", userID, "utterance", utterance)
		return nil
	})
}
