// Package transit plans trips and finds nearby stops using the SL
// journey planner.
package transit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

const (
	maxSuggestions = 2
	nearbyRadius   = 1000
)

// Client queries the journey planner.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	stops      *StopIndex
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a planner client over an already loaded stop index.
func New(cfg config.TransitConfig, stops *StopIndex, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		stops:      stops,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(20*time.Second), httpkit.WithRetry(2, time.Second), httpkit.WithLogger(logger)),
		logger:     logger,
	}
}

type endpoint struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

type tripResponse struct {
	Trip []struct {
		LegList struct {
			Leg []struct {
				Origin      endpoint `json:"Origin"`
				Destination endpoint `json:"Destination"`
				Product     *struct {
					Name   string `json:"name"`
					CatOut string `json:"catOut"`
				} `json:"Product"`
			} `json:"Leg"`
		} `json:"LegList"`
	} `json:"Trip"`
}

func coord(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// TravelSuggestions describes up to two commuter train or bus legs
// between two named stops. Unknown stop names produce a spoken error
// rather than a Go error.
func (c *Client) TravelSuggestions(ctx context.Context, origin, destination string) (string, error) {
	from, err := c.stops.Find(origin)
	if errors.Is(err, ErrStopNotFound) {
		return fmt.Sprintf("Error: Station '%s' not found in the database.", origin), nil
	}
	to, err := c.stops.Find(destination)
	if errors.Is(err, ErrStopNotFound) {
		return fmt.Sprintf("Error: Station '%s' not found in the database.", destination), nil
	}
	c.logger.Debug("planning trip", "origin", from.Name, "destination", to.Name)

	q := url.Values{
		"key":            {c.apiKey},
		"originCoordLat": {coord(from.Lat)}, "originCoordLong": {coord(from.Lon)},
		"destCoordLat": {coord(to.Lat)}, "destCoordLong": {coord(to.Lon)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/trip.json?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	var resp tripResponse
	if err := httpkit.DoJSON(c.httpClient, req, &resp); err != nil {
		return "", fmt.Errorf("plan trip: %w", err)
	}

	var sb strings.Builder
	found := 0
	for _, trip := range resp.Trip {
		for _, leg := range trip.LegList.Leg {
			if leg.Product == nil {
				continue
			}
			var label string
			switch {
			case leg.Product.CatOut == "TRAIN" && strings.Contains(leg.Product.Name, "PENDELTÅG"):
				label = "Pendeltåg Line"
			case leg.Product.CatOut == "BUS":
				label = "Bus Line"
			default:
				continue
			}
			fmt.Fprintf(&sb, "%s: %s\nDeparture: %s\nDestination: %s\nDeparture Time: %s\nArrival Time: %s\n\n",
				label, leg.Product.Name, leg.Origin.Name, leg.Destination.Name, leg.Origin.Time, leg.Destination.Time)
			found++
			if found == maxSuggestions {
				return sb.String(), nil
			}
		}
	}
	if found == 0 {
		return "No travel suggestions found.", nil
	}
	return sb.String(), nil
}

// NearbyStop is a stop close to a coordinate.
type NearbyStop struct {
	Name     string `json:"name"`
	Distance int    `json:"distance"` // meters
	ID       string `json:"location"`
}

// NearbyStops lists stops within 1 km of the coordinate. A limit of 0
// uses the configured maximum.
func (c *Client) NearbyStops(ctx context.Context, lat, lon float64, limit int) ([]NearbyStop, error) {
	if limit <= 0 {
		limit = c.maxResults
	}
	q := url.Values{
		"key":            {c.apiKey},
		"originCoordLat": {coord(lat)}, "originCoordLong": {coord(lon)},
		"maxNo": {strconv.Itoa(limit)},
		"r":     {strconv.Itoa(nearbyRadius)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/nearbystopsv2.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Locations []struct {
			StopLocation struct {
				Name string `json:"name"`
				Dist int    `json:"dist"`
				ID   string `json:"id"`
			} `json:"StopLocation"`
		} `json:"stopLocationOrCoordLocation"`
	}
	if err := httpkit.DoJSON(c.httpClient, req, &resp); err != nil {
		return nil, fmt.Errorf("nearby stops: %w", err)
	}

	out := make([]NearbyStop, 0, len(resp.Locations))
	for _, l := range resp.Locations {
		if l.StopLocation.Name == "" {
			continue
		}
		out = append(out, NearbyStop{Name: l.StopLocation.Name, Distance: l.StopLocation.Dist, ID: l.StopLocation.ID})
	}
	return out, nil
}

// FormatNearby renders nearby stops as text.
func FormatNearby(stops []NearbyStop) string {
	if len(stops) == 0 {
		return "No stops found nearby."
	}
	var sb strings.Builder
	for i, s := range stops {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s, %d meters away", s.Name, s.Distance)
	}
	return sb.String()
}
