package transit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/match"
)

// StopCutoff is the minimum similarity for a spoken stop name to match
// an indexed stop.
const StopCutoff = 0.6

// ErrStopNotFound is returned when no stop name is similar enough.
var ErrStopNotFound = errors.New("stop not found")

// Stop is one entry of the stop index.
type Stop struct {
	Name string
	Lat  float64
	Lon  float64
}

// StopIndex maps stop names to coordinates.
type StopIndex struct {
	names []string // lower-cased, index order
	stops map[string]Stop
}

// LoadStops reads a GTFS stops.txt file.
func LoadStops(path string) (*StopIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseStops(f)
}

// ParseStops reads a stops CSV with stop_name, stop_lat and stop_lon
// columns. Rows with unparseable coordinates are skipped. When a name
// repeats, the first row wins.
func ParseStops(r io.Reader) (*StopIndex, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read stops header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, want := range []string{"stop_name", "stop_lat", "stop_lon"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("stops file has no %s column", want)
		}
	}

	idx := &StopIndex{stops: map[string]Stop{}}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stops: %w", err)
		}
		if len(row) <= col["stop_name"] || len(row) <= col["stop_lat"] || len(row) <= col["stop_lon"] {
			continue
		}
		lat, err1 := strconv.ParseFloat(row[col["stop_lat"]], 64)
		lon, err2 := strconv.ParseFloat(row[col["stop_lon"]], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		name := strings.TrimSpace(row[col["stop_name"]])
		key := strings.ToLower(name)
		if _, dup := idx.stops[key]; dup || key == "" {
			continue
		}
		idx.names = append(idx.names, key)
		idx.stops[key] = Stop{Name: name, Lat: lat, Lon: lon}
	}
	return idx, nil
}

// Len reports the number of indexed stops.
func (x *StopIndex) Len() int { return len(x.names) }

// Find returns the stop whose name is closest to name.
func (x *StopIndex) Find(name string) (Stop, error) {
	best := match.Closest(strings.ToLower(strings.TrimSpace(name)), x.names, 1, StopCutoff)
	if len(best) == 0 {
		return Stop{}, fmt.Errorf("%w: %s", ErrStopNotFound, name)
	}
	return x.stops[best[0]], nil
}
