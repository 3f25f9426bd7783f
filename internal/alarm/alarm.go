// Package alarm stores per-user alarms and announces them once their
// time has passed.
//
// The package has three parts. [Service] is the CRUD API the assistant's
// tools call: set, delete-by-filter, modify-by-filter and list. [Notifier]
// is the poll loop that finds due alarms for one user, hands an utterance
// to a [Sink] and deletes the fired record. [Supervisor] runs one notifier
// per logged-in user. All mutations for a user, including firing, are
// serialized by a per-user lock held by the Service.
package alarm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Date and time layouts accepted for an alarm's date + " " + clock.
// Month, day, hour, minute and second may omit the leading zero.
const (
	layoutSeconds = "2006-1-2 15:4:5"
	layoutMinutes = "2006-1-2 15:4"

	// KeyLayout is the zero-padded minute form used for range queries.
	KeyLayout = "2006-01-02 15:04"
)

// User-facing results. The assistant reads these back verbatim.
const (
	MsgSet      = "Alarm set successfully."
	MsgDeleted  = "Alarms matching the specified properties deleted successfully."
	MsgModified = "Alarms matching the specified properties modified successfully."
	MsgNotFound = "No alarms found matching the specified properties."
)

var (
	// ErrStore wraps every failure of the backing store.
	ErrStore = errors.New("alarm store")

	// ErrMalformed marks a record whose date and clock do not parse.
	ErrMalformed = errors.New("malformed alarm")

	// ErrNotFound is returned when a record addressed by id is gone.
	ErrNotFound = errors.New("alarm not found")
)

// Record is one scheduled notification.
type Record struct {
	ID    string `json:"id"`
	Day   string `json:"day"`
	Date  string `json:"date"`  // YYYY-MM-DD
	Clock string `json:"clock"` // HH:MM or HH:MM:SS
	Title string `json:"title,omitempty"`
}

// DueAt parses the record's date and clock in loc, seconds layout first,
// and truncates the result to the minute. Fractional seconds are
// rejected.
func (r Record) DueAt(loc *time.Location) (time.Time, error) {
	s := r.Date + " " + r.Clock
	if strings.ContainsAny(r.Clock, ".,") {
		return time.Time{}, fmt.Errorf("%w: alarm %s has date/clock %q", ErrMalformed, r.ID, s)
	}
	t, err := time.ParseInLocation(layoutSeconds, s, loc)
	if err != nil {
		t, err = time.ParseInLocation(layoutMinutes, s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: alarm %s has date/clock %q", ErrMalformed, r.ID, s)
		}
	}
	return truncateMinute(t), nil
}

// Utterance is the announcement spoken when the alarm fires.
func (r Record) Utterance() string {
	msg := fmt.Sprintf("Alarm at %s on %s, %s has passed.", r.Clock, r.Day, r.Date)
	if r.Title != "" {
		msg += " " + r.Title + "."
	}
	return msg
}

// MinuteKey formats t in the store's range-query key form.
func MinuteKey(t time.Time) string {
	return t.Format(KeyLayout)
}

// dueKey is the store key of r: its minute key, or "" when the record
// is malformed so that range queries always return it.
func dueKey(r Record) string {
	t, err := r.DueAt(time.UTC)
	if err != nil {
		return ""
	}
	return MinuteKey(t)
}

func truncateMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// SetRequest holds the fields of a new alarm.
type SetRequest struct {
	Day   string `json:"day"`
	Date  string `json:"date"`
	Clock string `json:"clock"`
	Title string `json:"title,omitempty"`
}

// Filter selects alarms by exact field equality. Empty fields are
// unconstrained; an empty Filter selects every alarm.
type Filter struct {
	Day   string `json:"day,omitempty"`
	Date  string `json:"date,omitempty"`
	Clock string `json:"clock,omitempty"`
	Title string `json:"title,omitempty"`
}

// IsEmpty reports whether no field is constrained.
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// Patch overwrites every non-nil field.
type Patch struct {
	Day   *string `json:"day,omitempty"`
	Date  *string `json:"date,omitempty"`
	Clock *string `json:"clock,omitempty"`
	Title *string `json:"title,omitempty"`
}

// Apply returns r with the patch applied. The id is never changed.
func (p Patch) Apply(r Record) Record {
	if p.Day != nil {
		r.Day = *p.Day
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Clock != nil {
		r.Clock = *p.Clock
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	return r
}

// Result reports the outcome of a filtered delete or modify.
type Result struct {
	Matched int    `json:"matched"`
	Message string `json:"message"`
}
