// Package homeassistant provides a client for the Home Assistant REST
// API, used to drive the smart bulb through Home Assistant scripts.
package homeassistant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// Client is a Home Assistant REST API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new Home Assistant client. Connection failures
// on the LAN are retried briefly.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15*time.Second),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

type apiStatus struct {
	Message string `json:"message"`
}

// Ping checks if the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var status apiStatus
	if err := c.do(ctx, http.MethodGet, "/api/", nil, &status); err != nil {
		return err
	}
	if status.Message != "API running." {
		return fmt.Errorf("unexpected API status: %s", status.Message)
	}
	return nil
}

// CallService calls a Home Assistant service.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	if data == nil {
		data = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, path, data, nil)
}

// RunScript runs the script entity script.<name>.
func (c *Client) RunScript(ctx context.Context, name string) error {
	return c.CallService(ctx, "script", name, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req, err := httpkit.NewJSONRequest(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	if err := httpkit.DoJSON(c.httpClient, req, result); err != nil {
		return fmt.Errorf("home assistant %s: %w", path, err)
	}
	return nil
}
