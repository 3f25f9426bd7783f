// Package news fetches world headlines from the Google News API on
// RapidAPI.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

// DefaultLimit is the number of headlines returned by Top.
const DefaultLimit = 3

// Headline is one news item.
type Headline struct {
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Publisher string `json:"publisher"`
}

// Client queries the news service.
type Client struct {
	baseURL    string
	host       string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a news client.
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

// Top returns the first DefaultLimit world headlines. Missing fields
// are filled with a spoken placeholder.
func (c *Client) Top(ctx context.Context) ([]Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/world?lr=en-US", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)

	var resp struct {
		Items []Headline `json:"items"`
	}
	if err := httpkit.DoJSON(c.httpClient, req, &resp); err != nil {
		return nil, fmt.Errorf("fetch headlines: %w", err)
	}

	items := resp.Items
	if len(items) > DefaultLimit {
		items = items[:DefaultLimit]
	}
	out := make([]Headline, 0, len(items))
	for _, it := range items {
		out = append(out, Headline{
			Title:     orDefault(stripTags(it.Title), "Title not available"),
			Snippet:   orDefault(stripTags(it.Snippet), "Snippet not available"),
			Publisher: orDefault(strings.TrimSpace(it.Publisher), "Publisher not available"),
		})
	}
	c.logger.Debug("headlines fetched", "count", len(out))
	return out, nil
}

// Format renders headlines as text for the assistant to read out.
func Format(headlines []Headline) string {
	if len(headlines) == 0 {
		return "No headlines available right now."
	}
	var sb strings.Builder
	for i, h := range headlines {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Title: %s\nSnippet: %s\nPublisher: %s", h.Title, h.Snippet, h.Publisher)
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// stripTags drops markup some publishers leave in titles and snippets.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.WriteString(z.Token().Data)
			b.WriteString(" ")
		}
	}
}
