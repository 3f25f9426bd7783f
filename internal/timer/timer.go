// Package timer starts countdowns on the Ecco6 button device.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// ErrFormat is returned for durations not written as HH:MM:SS.
var ErrFormat = errors.New("time not in HH:MM:SS format")

// Countdown is the payload the device expects.
type Countdown struct {
	Hour   string `json:"hour"`
	Minute string `json:"minute"`
	Second string `json:"second"`
}

// ParseCountdown splits an HH:MM:SS duration. Each part must be a
// non-negative integer.
func ParseCountdown(s string) (Countdown, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Countdown{}, ErrFormat
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if n, err := strconv.Atoi(p); err != nil || n < 0 {
			return Countdown{}, ErrFormat
		}
		parts[i] = p
	}
	return Countdown{Hour: parts[0], Minute: parts[1], Second: parts[2]}, nil
}

// Client talks to the device timer endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a timer client posting to url.
func New(url string, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(10*time.Second), httpkit.WithLogger(logger)),
		logger:     logger,
	}
}

// Set starts a countdown of the given HH:MM:SS length.
func (c *Client) Set(ctx context.Context, duration string) error {
	cd, err := ParseCountdown(duration)
	if err != nil {
		return err
	}
	req, err := httpkit.NewJSONRequest(ctx, http.MethodPost, c.url, cd)
	if err != nil {
		return err
	}
	if err := httpkit.DoJSON(c.httpClient, req, nil); err != nil {
		return fmt.Errorf("set timer: %w", err)
	}
	c.logger.Info("device timer set", "duration", duration)
	return nil
}
