package homeassistant

import (
	"context"
	"fmt"
)

// Brightness is a preset bulb brightness.
type Brightness string

// Brightness presets, each backed by a script in Home Assistant.
const (
	BrightnessLow    Brightness = "low"
	BrightnessMedium Brightness = "medium"
	BrightnessHigh   Brightness = "high"
)

// Script names configured in Home Assistant for the bulb.
const (
	scriptTurnOn  = "turn_on_bulb"
	scriptTurnOff = "turn_off_bulb"
)

// Light controls the assistant's smart bulb.
type Light struct {
	client *Client
}

// NewLight wraps a client.
func NewLight(c *Client) *Light {
	return &Light{client: c}
}

// TurnOn switches the bulb on.
func (l *Light) TurnOn(ctx context.Context) error {
	return l.client.RunScript(ctx, scriptTurnOn)
}

// TurnOff switches the bulb off.
func (l *Light) TurnOff(ctx context.Context) error {
	return l.client.RunScript(ctx, scriptTurnOff)
}

// SetBrightness applies a preset.
func (l *Light) SetBrightness(ctx context.Context, b Brightness) error {
	switch b {
	case BrightnessLow, BrightnessMedium, BrightnessHigh:
	default:
		return fmt.Errorf("unknown brightness %q", b)
	}
	return l.client.RunScript(ctx, "set_brightness_"+string(b))
}
