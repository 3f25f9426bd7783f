package timer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
)

func TestParseCountdown(t *testing.T) {
	tests := []struct {
		in      string
		want    Countdown
		wantErr bool
	}{
		{"00:05:00", Countdown{"00", "05", "00"}, false},
		{" 1:30:15 ", Countdown{"1", "30", "15"}, false},
		{"05:00", Countdown{}, true},
		{"1:2:3:4", Countdown{}, true},
		{"a:b:c", Countdown{}, true},
		{"", Countdown{}, true},
	}
	for _, tt := range tests {
		got, err := ParseCountdown(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCountdown(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrFormat) {
			t.Errorf("ParseCountdown(%q) error = %v, want ErrFormat", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseCountdown(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSet(t *testing.T) {
	var got Countdown
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := c.Set(context.Background(), "00:10:30"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got != (Countdown{"00", "10", "30"}) {
		t.Errorf("device received %+v", got)
	}
}

func TestSet_DeviceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := c.Set(context.Background(), "00:00:10")
	var se *httpkit.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Set error = %v, want 503 StatusError", err)
	}
}
