package alarm

import (
	"context"
	"log/slog"
	"time"
)

// Default notifier timings.
const (
	DefaultPollInterval  = 60 * time.Second
	DefaultNotifyTimeout = 30 * time.Second
)

// Sink delivers an announcement to a user, typically as speech.
type Sink interface {
	Notify(ctx context.Context, userID, utterance string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, userID, utterance string) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, userID, utterance string) error {
	return f(ctx, userID, utterance)
}

// NotifierConfig tunes a Notifier. Zero values take the defaults.
type NotifierConfig struct {
	Interval time.Duration
	// Timeout bounds the sink call and the delete of one fired alarm.
	Timeout  time.Duration
	Location *time.Location
	// Now overrides the wall clock in tests.
	Now func() time.Time
}

// Notifier polls a user's alarms and fires the due ones: it sends the
// utterance to the sink, then deletes the record. A crash between the
// two can repeat an announcement but never loses one.
type Notifier struct {
	svc      *Service
	sink     Sink
	interval time.Duration
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewNotifier creates a Notifier that fires alarms managed by svc.
func NewNotifier(svc *Service, sink Sink, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultNotifyTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		svc:      svc,
		sink:     sink,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		loc:      cfg.Location,
		now:      cfg.Now,
		logger:   logger,
	}
}

// Run polls for userID until ctx is cancelled. Store failures are
// logged and retried on the next interval.
func (n *Notifier) Run(ctx context.Context, userID string) error {
	log := n.logger.With("user_id", userID)
	log.Info("alarm notifier started", "interval", n.interval)
	defer log.Info("alarm notifier stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := n.Poll(ctx, userID); err != nil && ctx.Err() == nil {
			log.Warn("alarm poll failed, retrying next interval", "error", err)
		}
		timer.Reset(n.interval)
	}
}

// Poll runs one iteration for userID and returns the number of alarms
// fired. A cancelled ctx stops the iteration between records; the
// record in hand is always finished.
func (n *Notifier) Poll(ctx context.Context, userID string) (int, error) {
	current := truncateMinute(n.now().In(n.loc))

	// Held through every announcement and delete of this iteration.
	unlock := n.svc.locks.lock(userID)
	defer unlock()

	records, err := n.svc.store.DueBy(ctx, userID, MinuteKey(current))
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return fired, err
		}

		due, err := r.DueAt(n.loc)
		if err != nil {
			n.logger.Error("skipping malformed alarm",
				"user_id", userID,
				"alarm_id", r.ID,
				"error", err,
			)
			continue
		}
		if due.After(current) {
			continue
		}

		if n.fire(ctx, userID, r) {
			fired++
		}
	}
	return fired, nil
}

// fire announces r and deletes it. It runs detached from ctx's
// cancellation so a shutdown does not cut a firing in half.
func (n *Notifier) fire(ctx context.Context, userID string, r Record) bool {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	log := n.logger.With("user_id", userID, "alarm_id", r.ID)

	if err := n.sink.Notify(fctx, userID, r.Utterance()); err != nil {
		log.Warn("alarm announcement failed", "error", err)
	}

	if err := n.svc.store.Delete(fctx, userID, r.ID); err != nil {
		log.Error("fired alarm not deleted, it may fire again", "error", err)
		return false
	}

	log.Info("alarm fired", "date", r.Date, "clock", r.Clock)
	return true
}
