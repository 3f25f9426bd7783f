package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
)

// SetAlarmService adds the alarm tools to the registry.
func (r *Registry) SetAlarmService(svc *alarm.Service) {
	r.alarms = svc
	r.registerAlarmTools()
}

func (r *Registry) registerAlarmTools() {
	if r.alarms == nil {
		return
	}

	alarmProps := []string{
		"day", "The week day name of the alarm, e.g. Monday.",
		"date", "The date of the alarm in YYYY-MM-DD format.",
		"clock", "The time of the alarm in HH:MM:SS format.",
		"title", "Optional title of the alarm.",
	}

	r.Register(&Tool{
		Name:        "set_alarm",
		Description: "Set an alarm for a specified time.",
		Parameters:  object([]string{"day", "date", "clock"}, alarmProps...),
		Handler:     r.handleSetAlarm,
	})

	r.Register(&Tool{
		Name: "remove_alarm",
		Description: "Remove an alarm of a specified time. Only the given properties are matched; " +
			"calling it without any property removes every alarm.",
		Parameters: object(nil, alarmProps...),
		Handler:    r.handleRemoveAlarm,
	})

	r.Register(&Tool{
		Name:        "get_alarms",
		Description: "Get the users alarms",
		Parameters:  object(nil),
		Handler:     r.handleGetAlarms,
	})

	r.Register(&Tool{
		Name:        "modify_alarm",
		Description: "Modify an existing alarm with new information.",
		Parameters: object(nil,
			"existing_day", "The week day name of the alarm to change.",
			"existing_date", "The date of the alarm to change, YYYY-MM-DD.",
			"existing_clock", "The time of the alarm to change, HH:MM:SS.",
			"existing_title", "The title of the alarm to change.",
			"new_day", "The new week day name.",
			"new_date", "The new date, YYYY-MM-DD.",
			"new_clock", "The new time, HH:MM:SS.",
			"new_title", "The new title.",
		),
		Handler: r.handleModifyAlarm,
	})
}

func (r *Registry) handleSetAlarm(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	// Set never validates; an alarm that does not parse is reported by
	// the notifier when it polls.
	if _, err := r.alarms.Set(ctx, user, alarm.SetRequest{
		Day:   stringArg(args, "day"),
		Date:  stringArg(args, "date"),
		Clock: stringArg(args, "clock"),
		Title: stringArg(args, "title"),
	}); err != nil {
		return "", err
	}
	return alarm.MsgSet, nil
}

func alarmFilter(args map[string]any, prefix string) alarm.Filter {
	return alarm.Filter{
		Day:   stringArg(args, prefix+"day"),
		Date:  stringArg(args, prefix+"date"),
		Clock: stringArg(args, prefix+"clock"),
		Title: stringArg(args, prefix+"title"),
	}
}

func (r *Registry) handleRemoveAlarm(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	res, err := r.alarms.Delete(ctx, user, alarmFilter(args, ""))
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

func (r *Registry) handleGetAlarms(ctx context.Context, _ map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	list, err := r.alarms.List(ctx, user)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "You have no alarms.", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode alarms: %w", err)
	}
	return string(data), nil
}

// optional returns a pointer to the argument, or nil when the key is
// absent or null. An empty string is a value and clears the field.
func optional(args map[string]any, key string) *string {
	if v, ok := args[key]; !ok || v == nil {
		return nil
	}
	v := stringArg(args, key)
	return &v
}

func (r *Registry) handleModifyAlarm(ctx context.Context, args map[string]any) (string, error) {
	user, err := userID(ctx)
	if err != nil {
		return "", err
	}
	res, err := r.alarms.Modify(ctx, user, alarmFilter(args, "existing_"), alarm.Patch{
		Day:   optional(args, "new_day"),
		Date:  optional(args, "new_date"),
		Clock: optional(args, "new_clock"),
		Title: optional(args, "new_title"),
	})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}
