// Package geocode turns coordinates into a street address using the
// Google Geocoding API.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// NoResult is reported when the service knows nothing about the point.
const NoResult = "Cannot find the current location"

// Client performs reverse geocoding.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a geocoding client.
func New(cfg config.GeocodeConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(10*time.Second), httpkit.WithRetry(2, time.Second), httpkit.WithLogger(logger)),
		logger:     logger,
	}
}

// Reverse returns the formatted address of the best match for the
// coordinate, or NoResult.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{
		"latlng": {strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)},
		"key":    {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
		Results      []struct {
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
	}
	if err := httpkit.DoJSON(c.httpClient, req, &resp); err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	switch resp.Status {
	case "", "OK", "ZERO_RESULTS":
	default:
		return "", fmt.Errorf("reverse geocode: %s: %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 || resp.Results[0].FormattedAddress == "" {
		return NoResult, nil
	}
	return resp.Results[0].FormattedAddress, nil
}
