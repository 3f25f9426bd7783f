package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
)

// currentTimeLayout reads as "Friday 2024-03-01 09:00:00".
const currentTimeLayout = "Monday 2006-01-02 15:04:05"

func (r *Registry) registerTimeTools() {
	r.Register(&Tool{
		Name:        "get_current_time",
		Description: "Get the current date, time and the week day name.",
		Parameters:  object(nil),
		Handler: func(context.Context, map[string]any) (string, error) {
			return r.now().In(r.loc).Format(currentTimeLayout), nil
		},
	})
}

// SetGeocoder lets get_current_location name the address instead of
// only reporting coordinates.
func (r *Registry) SetGeocoder(g Geocoder) {
	r.geocoder = g
}

func (r *Registry) registerLocationTools() {
	r.Register(&Tool{
		Name:        "get_current_location",
		Description: "Get my current location.",
		Parameters:  object(nil),
		Handler:     r.handleCurrentLocation,
	})
}

var errNoLocation = errors.New("the device has not reported its location")

// sessionLocation returns the coordinates reported by the caller's device.
func sessionLocation(ctx context.Context) (session.Coordinates, error) {
	s := SessionFromContext(ctx)
	if s == nil {
		return session.Coordinates{}, ErrNoSession
	}
	if s.Location == nil {
		return session.Coordinates{}, errNoLocation
	}
	return *s.Location, nil
}

func (r *Registry) handleCurrentLocation(ctx context.Context, _ map[string]any) (string, error) {
	loc, err := sessionLocation(ctx)
	if err != nil {
		return "", err
	}
	if r.geocoder == nil {
		return fmt.Sprintf("Latitude %.5f, longitude %.5f", loc.Latitude, loc.Longitude), nil
	}
	return r.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
}
