package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /find_places", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") != "key" {
			t.Errorf("missing RapidAPI key header")
		}
		if r.URL.Query().Get("text") == "Atlantis" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"place_id":"stockholm","name":"Stockholm"}]`))
	})
	mux.HandleFunc("GET /current", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("units") != "metric" || r.URL.Query().Get("place_id") != "stockholm" {
			t.Errorf("current query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"current":{"summary":"Partly sunny","temperature":12.5,"feels_like":10,
			"wind":{"speed":3.2,"dir":"NW","gusts":6},"precipitation":{"type":"none"},
			"humidity":60,"uv_index":2,"visibility":24,"wind_chill":9.5}}`))
	})
	mux.HandleFunc("GET /daily", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily":{"data":[
			{"day":"2024-03-01","summary":"Rain","temperature_min":1,"temperature_max":5},
			{"day":"2024-03-02","summary":"Snow","temperature_min":-3,"temperature_max":0,
			 "feels_like_min":-7,"feels_like_max":-2,"wind":{"speed":5,"dir":"N","gusts":9},
			 "precipitation":{"type":"snow"},"humidity":80,"visibility":4}]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return New(config.RapidAPIConfig{APIKey: "key", BaseURL: url}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReport_Current(t *testing.T) {
	c := newTestClient(newTestServer(t).URL)
	got, err := c.Report(context.Background(), "Stockholm", "")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	for _, part := range []string{"In Stockholm, the weather is currently Partly sunny.", "12.5°C", "NW", "UV index is 2"} {
		if !strings.Contains(got, part) {
			t.Errorf("report missing %q:\n%s", part, got)
		}
	}
}

func TestReport_Daily(t *testing.T) {
	c := newTestClient(newTestServer(t).URL)

	got, err := c.Report(context.Background(), "Stockholm", "2024-03-02")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !strings.HasPrefix(got, "On 2024-03-02, the weather in Stockholm is forecasted to be Snow.") ||
		!strings.Contains(got, "from -3°C to 0°C") {
		t.Errorf("daily report = %s", got)
	}

	got, _ = c.Report(context.Background(), "Stockholm", "2030-01-01")
	if got != "No forecast available for 2030-01-01 in Stockholm." {
		t.Errorf("missing day report = %q", got)
	}
}

func TestReport_UnknownPlace(t *testing.T) {
	c := newTestClient(newTestServer(t).URL)
	if _, err := c.Report(context.Background(), "Atlantis", ""); !errors.Is(err, ErrUnknownPlace) {
		t.Errorf("Report error = %v, want ErrUnknownPlace", err)
	}
}
