// Package series holds the latest snapshot of every named series and
// republishes it at a bounded rate, so a source that sends full snapshots many
// times a second does not drive the redraw rate.
package series

import (
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/large-farva/livechart/internal/telemetry"
)

const (
	DefaultMaxPoints = 1000
	DefaultInterval  = 16 * time.Millisecond
)

// Series is one named entry of a published View.
type Series struct {
	Name   string
	Points []telemetry.Point
}

// View is a consistent, independent copy of every series at publish time.
type View []Series

// Len returns the total number of points in the view.
func (v View) Len() int {
	n := 0
	for _, s := range v {
		n += len(s.Points)
	}
	return n
}

// Stats are running counters for a Buffer.
type Stats struct {
	Ingested    uint64
	Published   uint64
	Series      int
	Points      int
	LastPublish time.Time
	Paused      bool
}

// Options configures a Buffer.
type Options struct {
	MaxPoints int           // per-series cap, default 1000
	Interval  time.Duration // minimum time between publishes, default 16ms
	OnPublish func(View)    // called with the lock held; must not call back into the Buffer
	Now       func() time.Time
	Logger    *log.Logger
}

// Buffer stores the most recent points per series and publishes copies of
// them. All methods are safe for concurrent use.
type Buffer struct {
	maxPoints int
	interval  time.Duration
	onPublish func(View)
	now       func() time.Time
	log       *log.Logger

	mu       sync.Mutex
	names    []string
	data     map[string][]telemetry.Point
	paused   bool
	running  bool
	closed   bool
	timer    *time.Timer
	timerGen uint64
	thr      *throttle
	stats    Stats
}

// New creates an empty Buffer. Call Start to begin timer-driven publishing.
func New(opts Options) *Buffer {
	b := &Buffer{
		maxPoints: opts.MaxPoints,
		interval:  opts.Interval,
		onPublish: opts.OnPublish,
		now:       opts.Now,
		log:       opts.Logger,
		data:      make(map[string][]telemetry.Point),
	}
	if b.maxPoints <= 0 {
		b.maxPoints = DefaultMaxPoints
	}
	if b.interval <= 0 {
		b.interval = DefaultInterval
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.log == nil {
		b.log = log.New(io.Discard, "", 0)
	}
	b.thr = newThrottle(b.interval)
	return b
}

// Start arms the recurring publish timer.
func (b *Buffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running || b.closed {
		return
	}
	b.running = true
	b.armLocked()
}

// Close stops the recurring timer. Later calls to Ingest are ignored.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.running = false
	b.disarmLocked()
}

// Ingest replaces the stored points of every series in snap, keeping only
// the newest MaxPoints of each. It updates state even while paused.
func (b *Buffer) Ingest(snap telemetry.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	var added []string
	for name, pts := range snap {
		if _, ok := b.data[name]; !ok {
			added = append(added, name)
		}
		if len(pts) > b.maxPoints {
			pts = pts[len(pts)-b.maxPoints:]
		}
		b.data[name] = append([]telemetry.Point(nil), pts...)
	}
	sort.Strings(added)
	b.names = append(b.names, added...)
	b.stats.Ingested++

	if !b.paused {
		b.requestLocked()
	}
}

// SetPaused stops or resumes publishing. Resuming publishes once right away.
func (b *Buffer) SetPaused(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if paused == b.paused {
		return
	}
	b.paused = paused
	if paused {
		b.log.Printf("publishing paused")
		b.disarmLocked()
		return
	}
	b.log.Printf("publishing resumed")
	b.thr.mark(b.now())
	b.publishLocked()
	if b.running {
		b.armLocked()
	}
}

// Paused reports whether publishing is paused.
func (b *Buffer) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Clear drops every series and publishes an empty view, paused or not.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log.Printf("clearing %d series", len(b.names))
	b.names = nil
	b.data = make(map[string][]telemetry.Point)
	b.thr.mark(b.now())
	b.publishLocked()
}

// View returns a copy of the current state without publishing it.
func (b *Buffer) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

// Stats returns a copy of the running counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stats
	st.Series = len(b.names)
	st.Points = 0
	for _, pts := range b.data {
		st.Points += len(pts)
	}
	st.Paused = b.paused
	return st
}

func (b *Buffer) requestLocked() {
	if b.thr.request(b.now()) {
		b.publishLocked()
	}
}

func (b *Buffer) publishLocked() {
	v := b.viewLocked()
	b.stats.Published++
	b.stats.LastPublish = b.now()
	if b.onPublish != nil {
		b.onPublish(v)
	}
}

func (b *Buffer) viewLocked() View {
	v := make(View, 0, len(b.names))
	for _, name := range b.names {
		v = append(v, Series{
			Name:   name,
			Points: append([]telemetry.Point(nil), b.data[name]...),
		})
	}
	return v
}

func (b *Buffer) armLocked() {
	if b.paused || b.closed {
		return
	}
	b.disarmLocked()
	gen := b.timerGen
	b.timer = time.AfterFunc(b.interval, func() { b.tick(gen) })
}

func (b *Buffer) disarmLocked() {
	b.timerGen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Buffer) tick(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.timerGen || b.paused || b.closed {
		return
	}
	b.requestLocked()
	b.timer.Reset(b.interval)
}
