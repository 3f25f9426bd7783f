package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
)

func TestMulti_DeliversToAll(t *testing.T) {
	var got []string
	record := func(name string, err error) alarm.Sink {
		return alarm.SinkFunc(func(_ context.Context, userID, utterance string) error {
			got = append(got, name+":"+userID)
			return err
		})
	}

	offline := errors.New("speaker offline")
	m := NewMulti(slog.New(slog.NewTextHandler(io.Discard, nil)),
		record("mqtt", nil),
		nil,
		record("ws", offline),
	)
	m.Add(record("log", nil))

	err := m.Notify(context.Background(), "alice", "Alarm at 07:00")
	if !errors.Is(err, offline) {
		t.Errorf("Notify error = %v, want it to wrap the failing sink", err)
	}
	if strings.Join(got, ",") != "mqtt:alice,ws:alice,log:alice" {
		t.Errorf("delivery order = %v", got)
	}
}

func TestMulti_NoSinks(t *testing.T) {
	m := NewMulti(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := m.Notify(context.Background(), "alice", "x"); err != nil {
		t.Errorf("Notify with no sinks = %v", err)
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	sink := Log(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := sink.Notify(context.Background(), "alice", "Alarm at 07:00"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "user_id=alice") {
		t.Errorf("log = %q", buf.String())
	}
}
