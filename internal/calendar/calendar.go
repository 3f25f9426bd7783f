// Package calendar reads and edits the user's CalDAV calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// ErrNotFound is returned when no event matches a removal request.
var ErrNotFound = errors.New("event not found")

// DateLayout is the day format used by the calendar tools.
const DateLayout = "2006-01-02"

// Event is a single calendar entry.
type Event struct {
	UID     string    `json:"uid"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`

	path string
}

// server is the subset of the CalDAV client used here.
type server interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindCalendarHomeSet(ctx context.Context, principal string) (string, error)
	FindCalendars(ctx context.Context, homeSet string) ([]caldav.Calendar, error)
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
	RemoveAll(ctx context.Context, name string) error
}

// Calendar is one CalDAV calendar collection.
type Calendar struct {
	srv        server
	collection string
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time

	mu   sync.Mutex
	path string
}

// New connects to the configured CalDAV server. Event times are
// interpreted in loc.
func New(cfg config.DAVConfig, loc *time.Location, logger *slog.Logger) (*Calendar, error) {
	var hc webdav.HTTPClient = httpkit.NewClient(httpkit.WithTimeout(30*time.Second), httpkit.WithLogger(logger))
	if cfg.Username != "" {
		hc = webdav.HTTPClientWithBasicAuth(hc, cfg.Username, cfg.Password)
	}
	c, err := caldav.NewClient(hc, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("caldav client: %w", err)
	}
	return newCalendar(c, cfg.Collection, loc, logger), nil
}

func newCalendar(srv server, collection string, loc *time.Location, logger *slog.Logger) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{srv: srv, collection: collection, loc: loc, logger: logger, now: time.Now}
}

// calendarPath discovers the calendar collection once and caches it.
func (c *Calendar) calendarPath(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path != "" {
		return c.path, nil
	}

	principal, err := c.srv.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	home, err := c.srv.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home: %w", err)
	}
	cals, err := c.srv.FindCalendars(ctx, home)
	if err != nil {
		return "", fmt.Errorf("list calendars: %w", err)
	}

	for _, cal := range cals {
		if c.collection == "" || strings.EqualFold(cal.Name, c.collection) {
			c.path = cal.Path
			c.logger.Debug("calendar selected", "path", cal.Path, "name", cal.Name)
			return c.path, nil
		}
	}
	if c.collection != "" {
		return "", fmt.Errorf("calendar %q not found", c.collection)
	}
	return "", fmt.Errorf("no calendars under %s", home)
}

// ParseDay parses a YYYY-MM-DD date in the calendar's zone.
func (c *Calendar) ParseDay(date string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not in YYYY-MM-DD format", date)
	}
	return day, nil
}

// EventsOn returns the events overlapping the given day, by start time.
func (c *Calendar) EventsOn(ctx context.Context, day time.Time) ([]Event, error) {
	calPath, err := c.calendarPath(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc)
	end := start.AddDate(0, 0, 1)

	objs, err := c.srv.QueryCalendar(ctx, calPath, &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Props: []string{ical.PropVersion},
			Comps: []caldav.CalendarCompRequest{{
				Name:  ical.CompEvent,
				Props: []string{ical.PropUID, ical.PropSummary, ical.PropDateTimeStart, ical.PropDateTimeEnd},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []Event
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			e, err := c.fromICal(ev)
			if err != nil {
				c.logger.Debug("skipping unreadable event", "path", obj.Path, "error", err)
				continue
			}
			e.path = obj.Path
			events = append(events, e)
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// Add creates a new event.
func (c *Calendar) Add(ctx context.Context, title string, start, end time.Time) (Event, error) {
	if !end.After(start) {
		return Event{}, fmt.Errorf("event must end after it starts")
	}
	calPath, err := c.calendarPath(ctx)
	if err != nil {
		return Event{}, err
	}

	e := Event{UID: uuid.NewString(), Summary: title, Start: start, End: end}
	e.path = path.Join(calPath, e.UID+".ics")

	if _, err := c.srv.PutCalendarObject(ctx, e.path, c.toICal(e)); err != nil {
		return Event{}, fmt.Errorf("put event: %w", err)
	}
	c.logger.Info("calendar event added", "uid", e.UID, "start", start)
	return e, nil
}

// RemoveByTitle deletes the first event on day whose title matches,
// case-insensitively.
func (c *Calendar) RemoveByTitle(ctx context.Context, title string, day time.Time) (Event, error) {
	events, err := c.EventsOn(ctx, day)
	if err != nil {
		return Event{}, err
	}
	for _, e := range events {
		if strings.EqualFold(e.Summary, strings.TrimSpace(title)) {
			if err := c.srv.RemoveAll(ctx, e.path); err != nil {
				return Event{}, fmt.Errorf("remove event: %w", err)
			}
			c.logger.Info("calendar event removed", "uid", e.UID)
			return e, nil
		}
	}
	return Event{}, ErrNotFound
}

func (c *Calendar) toICal(e Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Ecco6//Voice Assistant//EN")

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, e.UID)
	ev.Props.SetText(ical.PropSummary, e.Summary)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, c.now().UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())

	cal.Children = append(cal.Children, ev.Component)
	return cal
}

func (c *Calendar) fromICal(ev ical.Event) (Event, error) {
	start, err := ev.DateTimeStart(c.loc)
	if err != nil {
		return Event{}, err
	}
	end, err := ev.DateTimeEnd(c.loc)
	if err != nil {
		return Event{}, err
	}
	e := Event{Start: start, End: end}
	if p := ev.Props.Get(ical.PropUID); p != nil {
		e.UID = p.Value
	}
	if s, err := ev.Props.Text(ical.PropSummary); err == nil {
		e.Summary = s
	}
	return e, nil
}
