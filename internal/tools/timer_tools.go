package tools

import (
	"context"
	"errors"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/timer"
)

// SetTimer adds set_rpi_timer to the registry.
func (r *Registry) SetTimer(t Timer) {
	r.timer = t
	if t == nil {
		return
	}
	r.Register(&Tool{
		Name:        "set_rpi_timer",
		Description: "Set a timer/countdown on the device by given time.",
		Parameters:  object([]string{"time"}, "time", "The time set for the timer in HH:MM:SS format."),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			d, err := requireString(args, "time")
			if err != nil {
				return "", err
			}
			err = r.timer.Set(ctx, d)
			if errors.Is(err, timer.ErrFormat) {
				return "Time not in HH:MM:SS format.", nil
			}
			if err != nil {
				return "", err
			}
			return "The timer has been successfully set.", nil
		},
	})
}
