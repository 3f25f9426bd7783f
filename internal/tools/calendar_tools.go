package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/calendar"
)

// eventTimeLayout is the start and end format the model is asked for.
const eventTimeLayout = "2006-01-02T15:04:05"

// SetCalendar adds the calendar tools to the registry.
func (r *Registry) SetCalendar(c Calendar) {
	r.calendar = c
	r.registerCalendarTools()
}

func (r *Registry) registerCalendarTools() {
	if r.calendar == nil {
		return
	}

	r.Register(&Tool{
		Name:        "get_events_by_date",
		Description: "Get all events of a day from the calendar.",
		Parameters:  object([]string{"date"}, "date", "The date in YYYY-MM-DD format."),
		Handler:     r.handleEventsByDate,
	})

	r.Register(&Tool{
		Name:        "add_event",
		Description: "Add an event to the calendar.",
		Parameters: object([]string{"title", "start_time", "end_time"},
			"title", "The title of the event.",
			"start_time", "The start datetime of the event, in the format of YYYY-MM-DDTHH:MM:SS.",
			"end_time", "The end datetime of the event, in the format of YYYY-MM-DDTHH:MM:SS.",
		),
		Handler: r.handleAddEvent,
	})

	r.Register(&Tool{
		Name:        "remove_event",
		Description: "Remove an event from the calendar.",
		Parameters: object([]string{"event_title", "date"},
			"event_title", "The title of the event.",
			"date", "The date in YYYY-MM-DD format.",
		),
		Handler: r.handleRemoveEvent,
	})
}

type eventSummary struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func (r *Registry) handleEventsByDate(ctx context.Context, args map[string]any) (string, error) {
	date, err := requireString(args, "date")
	if err != nil {
		return "", err
	}
	day, err := r.calendar.ParseDay(date)
	if err != nil {
		return "", err
	}
	events, err := r.calendar.EventsOn(ctx, day)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return fmt.Sprintf("No events on %s.", date), nil
	}

	lines := make([]string, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(eventSummary{
			Summary: e.Summary,
			Start:   e.Start.In(r.loc).Format(time.RFC3339),
			End:     e.End.In(r.loc).Format(time.RFC3339),
		})
		if err != nil {
			return "", err
		}
		lines = append(lines, string(data))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Registry) parseEventTime(args map[string]any, key string) (time.Time, error) {
	s, err := requireString(args, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(eventTimeLayout, s, r.loc)
	if err != nil {
		// Accept an explicit offset as well.
		if t, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("%s %q is not in YYYY-MM-DDTHH:MM:SS format", key, s)
	}
	return t, nil
}

func (r *Registry) handleAddEvent(ctx context.Context, args map[string]any) (string, error) {
	title, err := requireString(args, "title")
	if err != nil {
		return "", err
	}
	start, err := r.parseEventTime(args, "start_time")
	if err != nil {
		return "", err
	}
	end, err := r.parseEventTime(args, "end_time")
	if err != nil {
		return "", err
	}
	if _, err := r.calendar.Add(ctx, title, start, end); err != nil {
		return "", err
	}
	return fmt.Sprintf("Event '%s' added to the calendar.", title), nil
}

func (r *Registry) handleRemoveEvent(ctx context.Context, args map[string]any) (string, error) {
	title, err := requireString(args, "event_title")
	if err != nil {
		return "", err
	}
	date, err := requireString(args, "date")
	if err != nil {
		return "", err
	}
	day, err := r.calendar.ParseDay(date)
	if err != nil {
		return "", err
	}
	if _, err := r.calendar.RemoveByTitle(ctx, title, day); err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			return fmt.Sprintf("No event with title '%s' found for the specified date", title), nil
		}
		return "", err
	}
	return fmt.Sprintf("Event '%s' deleted successfully", title), nil
}
