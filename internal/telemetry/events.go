// Package telemetry defines the wire format that flows over the WebSocket
// connection between a data source and livechart clients. Every message is a
// JSON object mapping a series name to its full history of [timestamp, value]
// pairs; each message replaces the previous one rather than extending it.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotObject     = errors.New("payload is not a JSON object")
	ErrEmpty         = errors.New("payload has no series")
	ErrFirstNotArray = errors.New("first series is not an array")
)

// Point is a single sample. T is milliseconds since the Unix epoch.
type Point struct {
	T int64
	V float64
}

// At builds a Point from a wall-clock time.
func At(t time.Time, v float64) Point {
	return Point{T: t.UnixMilli(), V: v}
}

// Time returns T as a time.Time in UTC.
func (p Point) Time() time.Time {
	return time.UnixMilli(p.T).UTC()
}

// MarshalJSON encodes the point as a two-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.T, p.V})
}

// UnmarshalJSON accepts [timestamp, value]. Elements past the second are
// ignored whatever their type. Integer timestamps are read exactly; fractional
// ones are truncated to the millisecond.
func (p *Point) UnmarshalJSON(b []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return err
	}
	if len(elems) < 2 {
		return fmt.Errorf("point needs 2 elements, got %d", len(elems))
	}

	var ts json.Number
	if err := json.Unmarshal(elems[0], &ts); err != nil {
		return fmt.Errorf("point timestamp: %w", err)
	}
	t, err := ts.Int64()
	if err != nil {
		f, ferr := ts.Float64()
		if ferr != nil {
			return fmt.Errorf("point timestamp %q: %w", ts, ferr)
		}
		t = int64(f)
	}

	var v float64
	if err := json.Unmarshal(elems[1], &v); err != nil {
		return fmt.Errorf("point value: %w", err)
	}
	p.T, p.V = t, v
	return nil
}

// Snapshot is one decoded message: series name to its points.
type Snapshot map[string][]Point

// Points returns the total number of points across all series.
func (s Snapshot) Points() int {
	n := 0
	for _, pts := range s {
		n += len(pts)
	}
	return n
}

// ParseSnapshot decodes a raw message.
//
// Validation is minimal: the object must have at least one key
// and the first key in document order must hold an array of points. Later
// series that fail to decode are skipped, so a payload can be forwarded with
// fewer series than it carried.
func ParseSnapshot(raw []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}
	if !dec.More() {
		return nil, ErrEmpty
	}
	keyTok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	first, _ := keyTok.(string)
	var firstVal json.RawMessage
	if err := dec.Decode(&firstVal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if trimmed := bytes.TrimSpace(firstVal); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %q", ErrFirstNotArray, first)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}

	snap := make(Snapshot, len(fields))
	for name, v := range fields {
		var pts []Point
		if err := json.Unmarshal(v, &pts); err != nil {
			if name == first {
				return nil, fmt.Errorf("series %q: %w", name, err)
			}
			continue
		}
		snap[name] = pts
	}
	return snap, nil
}

// FeedStatus mirrors the JSON returned by GET /api/status on livechartd.
type FeedStatus struct {
	Name          string   `json:"name"`
	State         string   `json:"state"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Clients       int      `json:"clients"`
	Series        []string `json:"series"`
	IntervalMS    int64    `json:"interval_ms"`
	MaxPoints     int      `json:"max_points"`
	Ticks         uint64   `json:"ticks"`
}
