// Package weather reports current conditions and daily forecasts from
// the Meteosource API on RapidAPI.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// ErrUnknownPlace is returned when the place lookup finds nothing.
var ErrUnknownPlace = errors.New("unknown place")

// Client queries the weather service.
type Client struct {
	baseURL    string
	host       string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a weather client.
func New(cfg config.RapidAPIConfig, logger *slog.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Client{
		baseURL:    base,
		host:       host,
		apiKey:     cfg.APIKey,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(15*time.Second), httpkit.WithRetry(2, time.Second), httpkit.WithLogger(logger)),
		logger:     logger,
	}
}

type wind struct {
	Speed float64 `json:"speed"`
	Dir   string  `json:"dir"`
	Gusts float64 `json:"gusts"`
}

type precipitation struct {
	Type string `json:"type"`
}

type current struct {
	Summary       string        `json:"summary"`
	Temperature   float64       `json:"temperature"`
	FeelsLike     float64       `json:"feels_like"`
	Wind          wind          `json:"wind"`
	Precipitation precipitation `json:"precipitation"`
	Humidity      float64       `json:"humidity"`
	UVIndex       float64       `json:"uv_index"`
	Visibility    float64       `json:"visibility"`
	WindChill     float64       `json:"wind_chill"`
}

type day struct {
	Day           string        `json:"day"`
	Summary       string        `json:"summary"`
	TempMin       float64       `json:"temperature_min"`
	TempMax       float64       `json:"temperature_max"`
	FeelsLikeMin  float64       `json:"feels_like_min"`
	FeelsLikeMax  float64       `json:"feels_like_max"`
	Wind          wind          `json:"wind"`
	Precipitation precipitation `json:"precipitation"`
	Humidity      float64       `json:"humidity"`
	Visibility    float64       `json:"visibility"`
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)
	return httpkit.DoJSON(c.httpClient, req, out)
}

// placeID resolves a place name to the service's identifier.
func (c *Client) placeID(ctx context.Context, place string) (string, error) {
	var places []struct {
		PlaceID string `json:"place_id"`
		Name    string `json:"name"`
	}
	if err := c.get(ctx, "/find_places", url.Values{"text": {place}, "language": {"en"}}, &places); err != nil {
		return "", fmt.Errorf("find place: %w", err)
	}
	if len(places) == 0 || places[0].PlaceID == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlace, place)
	}
	return places[0].PlaceID, nil
}

func forecastQuery(placeID string) url.Values {
	return url.Values{
		"place_id": {placeID},
		"timezone": {"auto"},
		"language": {"en"},
		"units":    {"metric"},
	}
}

// Report describes the weather in place. An empty date gives current
// conditions; a YYYY-MM-DD date gives that day's forecast.
func (c *Client) Report(ctx context.Context, place, date string) (string, error) {
	id, err := c.placeID(ctx, place)
	if err != nil {
		return "", err
	}

	if date == "" {
		var resp struct {
			Current current `json:"current"`
		}
		if err := c.get(ctx, "/current", forecastQuery(id), &resp); err != nil {
			return "", fmt.Errorf("current weather: %w", err)
		}
		return describeCurrent(place, resp.Current), nil
	}

	var resp struct {
		Daily struct {
			Data []day `json:"data"`
		} `json:"daily"`
	}
	if err := c.get(ctx, "/daily", forecastQuery(id), &resp); err != nil {
		return "", fmt.Errorf("daily forecast: %w", err)
	}
	for _, d := range resp.Daily.Data {
		if d.Day == date {
			return describeDay(place, d), nil
		}
	}
	return fmt.Sprintf("No forecast available for %s in %s.", date, place), nil
}

func describeCurrent(place string, w current) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "In %s, the weather is currently %s. ", place, w.Summary)
	fmt.Fprintf(&sb, "The temperature is %g°C, but it feels like %g°C. ", w.Temperature, w.FeelsLike)
	fmt.Fprintf(&sb, "The wind speed is %g m/s coming from the %s direction, with gusts up to %g m/s. ", w.Wind.Speed, w.Wind.Dir, w.Wind.Gusts)
	fmt.Fprintf(&sb, "There is %s precipitation, and the humidity level is %g%%. ", w.Precipitation.Type, w.Humidity)
	fmt.Fprintf(&sb, "The UV index is %g. The visibility is %g km. The wind chill is %g°C.", w.UVIndex, w.Visibility, w.WindChill)
	return sb.String()
}

func describeDay(place string, d day) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "On %s, the weather in %s is forecasted to be %s. ", d.Day, place, d.Summary)
	fmt.Fprintf(&sb, "The temperature will range from %g°C to %g°C. ", d.TempMin, d.TempMax)
	fmt.Fprintf(&sb, "It will feel like %g°C to %g°C. ", d.FeelsLikeMin, d.FeelsLikeMax)
	fmt.Fprintf(&sb, "The wind speed will be %g m/s coming from the %s direction, with gusts up to %g m/s. ", d.Wind.Speed, d.Wind.Dir, d.Wind.Gusts)
	fmt.Fprintf(&sb, "There is %s precipitation, and the humidity level is %g%%. ", d.Precipitation.Type, d.Humidity)
	fmt.Fprintf(&sb, "The visibility is %g km.", d.Visibility)
	return sb.String()
}
