package tools

import (
	"context"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/homeassistant"
)

// SetLight adds the smart light tools to the registry.
func (r *Registry) SetLight(l Light) {
	r.light = l
	r.registerLightTools()
}

func (r *Registry) registerLightTools() {
	if r.light == nil {
		return
	}

	r.Register(&Tool{
		Name:        "turn_on_light",
		Description: "Turn on the light.",
		Parameters:  object(nil),
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			if err := r.light.TurnOn(ctx); err != nil {
				return "", err
			}
			return "The light has been successfully turned on.", nil
		},
	})

	r.Register(&Tool{
		Name:        "turn_off_light",
		Description: "Turn off the light.",
		Parameters:  object(nil),
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			if err := r.light.TurnOff(ctx); err != nil {
				return "", err
			}
			return "The light has been successfully turned off.", nil
		},
	})

	for _, b := range []homeassistant.Brightness{
		homeassistant.BrightnessLow,
		homeassistant.BrightnessMedium,
		homeassistant.BrightnessHigh,
	} {
		r.Register(&Tool{
			Name:        "set_brightness_" + string(b),
			Description: "Set the brightness of the light as " + string(b) + ".",
			Parameters:  object(nil),
			Handler: func(ctx context.Context, _ map[string]any) (string, error) {
				if err := r.light.SetBrightness(ctx, b); err != nil {
					return "", err
				}
				return "Brightness of the light has been set as " + string(b) + ".", nil
			},
		})
	}
}
