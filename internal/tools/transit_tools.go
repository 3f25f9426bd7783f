package tools

import (
	"context"
	"fmt"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/transit"
)

// SetTransit adds the journey planner tools to the registry.
func (r *Registry) SetTransit(t Transit) {
	r.transit = t
	r.registerTransitTools()
}

func (r *Registry) registerTransitTools() {
	if r.transit == nil {
		return
	}

	r.Register(&Tool{
		Name:        "get_travel_suggestions",
		Description: "Get travel suggestions for a specific journey.",
		Parameters: object([]string{"origin_station_name", "destination_station_name"},
			"origin_station_name", "The name of the origin station.",
			"destination_station_name", "The name of the destination station.",
		),
		Handler: r.handleTravelSuggestions,
	})

	r.Register(&Tool{
		Name: "get_nearby_stops",
		Description: "Get nearby stops based on current location. " +
			"Latitude and longitude default to the device's position.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"latitude":    map[string]any{"type": "number", "description": "The latitude of the location."},
				"longitude":   map[string]any{"type": "number", "description": "The longitude of the location."},
				"max_results": map[string]any{"type": "integer", "description": "Maximum number of nearby stops to retrieve (default 3)."},
			},
		},
		Handler: r.handleNearbyStops,
	})
}

func (r *Registry) handleTravelSuggestions(ctx context.Context, args map[string]any) (string, error) {
	origin, err := requireString(args, "origin_station_name")
	if err != nil {
		return "", err
	}
	dest, err := requireString(args, "destination_station_name")
	if err != nil {
		return "", err
	}
	return r.transit.TravelSuggestions(ctx, origin, dest)
}

func (r *Registry) handleNearbyStops(ctx context.Context, args map[string]any) (string, error) {
	lat, okLat := floatArg(args, "latitude")
	lon, okLon := floatArg(args, "longitude")
	if !okLat || !okLon {
		loc, err := sessionLocation(ctx)
		if err != nil {
			return "", fmt.Errorf("latitude and longitude are required: %w", err)
		}
		lat, lon = loc.Latitude, loc.Longitude
	}
	limit := 0
	if n, ok := floatArg(args, "max_results"); ok {
		limit = int(n)
	}

	stops, err := r.transit.NearbyStops(ctx, lat, lon, limit)
	if err != nil {
		return "", err
	}
	return transit.FormatNearby(stops), nil
}
