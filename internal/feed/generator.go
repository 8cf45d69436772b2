// Package feed simulates a metrics source so the viewer can be exercised
// end-to-end without a real data producer. Every tick it appends one sample
// per series and broadcasts the FULL history, the same way a source that
// only ever sends complete snapshots would.
package feed

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/livechart/internal/telemetry"
)

// Broadcaster delivers one snapshot to every connected client.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Wave is one simulated series: Offset + Amplitude*fn(elapsed/Period).
type Wave struct {
	Name      string
	Offset    float64
	Amplitude float64
	Period    float64 // seconds
	Fn        func(float64) float64
}

// Value evaluates the wave at elapsed seconds.
func (w Wave) Value(elapsed float64) float64 {
	return w.Offset + w.Amplitude*w.Fn(elapsed/w.Period)
}

// DefaultWaves are the cpu, memory and disk series the feed emits.
var DefaultWaves = []Wave{
	{Name: "cpu", Offset: 50, Amplitude: 30, Period: 2, Fn: math.Sin},
	{Name: "memory", Offset: 60, Amplitude: 20, Period: 3, Fn: math.Cos},
	{Name: "disk", Offset: 40, Amplitude: 15, Period: 5, Fn: math.Sin},
}

// Generator keeps a bounded history per wave.
type Generator struct {
	Waves     []Wave
	MaxPoints int

	mu      sync.Mutex
	start   time.Time
	history map[string][]telemetry.Point
	ticks   atomic.Uint64
}

// NewGenerator creates a generator whose clock starts at start.
func NewGenerator(waves []Wave, maxPoints int, start time.Time) *Generator {
	if maxPoints < 1 {
		maxPoints = 1000
	}
	return &Generator{
		Waves:     waves,
		MaxPoints: maxPoints,
		start:     start,
		history:   make(map[string][]telemetry.Point, len(waves)),
	}
}

// Step appends one sample per wave at now and returns a copy of the full,
// capped history.
func (g *Generator) Step(now time.Time) telemetry.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	elapsed := now.Sub(g.start).Seconds()
	snap := make(telemetry.Snapshot, len(g.Waves))
	for _, w := range g.Waves {
		h := append(g.history[w.Name], telemetry.At(now, w.Value(elapsed)))
		if len(h) > g.MaxPoints {
			h = h[len(h)-g.MaxPoints:]
		}
		g.history[w.Name] = h
		snap[w.Name] = append([]telemetry.Point(nil), h...)
	}
	g.ticks.Add(1)
	return snap
}

// Ticks returns how many snapshots have been produced.
func (g *Generator) Ticks() uint64 {
	return g.ticks.Load()
}

// Names returns the series names in emit order.
func (g *Generator) Names() []string {
	names := make([]string, len(g.Waves))
	for i, w := range g.Waves {
		names[i] = w.Name
	}
	return names
}

// Runner drives a Generator on a fixed interval.
type Runner struct {
	Out      Broadcaster
	Gen      *Generator
	Interval time.Duration
	Log      *log.Logger
}

// New creates a runner with the default waves.
func New(out Broadcaster, maxPoints int, interval time.Duration, logger *log.Logger) *Runner {
	return &Runner{
		Out:      out,
		Gen:      NewGenerator(DefaultWaves, maxPoints, time.Now()),
		Interval: interval,
		Log:      logger,
	}
}

// Run broadcasts one snapshot per interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.Log.Printf("feed running: %d series every %s (history %d)", len(r.Gen.Waves), r.Interval, r.Gen.MaxPoints)

	t := time.NewTicker(r.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Out.BroadcastJSON(r.Gen.Step(now))
			if n := r.Gen.Ticks(); n%100 == 0 {
				r.Log.Printf("sent %d updates (%d points per series)", n, min(int(n), r.Gen.MaxPoints))
			}
		}
	}
}
