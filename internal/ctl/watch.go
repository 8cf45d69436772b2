package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/large-farva/livechart/internal/series"
	"github.com/large-farva/livechart/internal/stream"
	"github.com/large-farva/livechart/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Endpoint  string
	Interval  time.Duration // minimum time between summary lines
	MaxPoints int
	Filter    []string // series to show (empty = all)
	JSON      bool     // one JSON object per line
	Out       io.Writer
	Stream    stream.Options
}

// Watch connects to a series endpoint and prints one summary line per
// published view, plus connection status transitions, until ctx is done or
// the client gives up reconnecting.
func Watch(ctx context.Context, opts WatchOptions) error {
	endpoint, err := stream.ValidateEndpoint(opts.Endpoint)
	if err != nil {
		return err
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	w := &watcher{
		out:    opts.Out,
		json:   opts.JSON,
		filter: make(map[string]bool, len(opts.Filter)),
		width:  terminalWidth(120),
	}
	for _, f := range opts.Filter {
		w.filter[f] = true
	}
	w.enc = json.NewEncoder(w.out)

	buf := series.New(series.Options{
		MaxPoints: opts.MaxPoints,
		Interval:  opts.Interval,
		OnPublish: w.publish,
	})
	buf.Start()
	defer buf.Close()

	c := stream.New(opts.Stream)
	done := make(chan struct{})
	var once sync.Once

	if !opts.JSON {
		fmt.Fprintln(w.out)
		fmt.Fprintf(w.out, "  %s %s\n", colorize(cyan, "watching"), colorize(dim, endpoint))
		if len(opts.Filter) > 0 {
			fmt.Fprintf(w.out, "  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Fprintln(w.out, colorize(dim, "  "+strings.Repeat("─", 50)))
	}

	c.Connect(endpoint, stream.Handlers{
		OnMessage: buf.Ingest,
		OnStatusChange: func(s stream.Status) {
			w.status(s)
			if (s == stream.StatusDisconnected || s == stream.StatusError) && c.Idle() {
				once.Do(func() { close(done) })
			}
		},
		OnError: w.error,
	})

	select {
	case <-ctx.Done():
		once.Do(func() { close(done) })
		c.Disconnect()
		if !opts.JSON {
			w.mu.Lock()
			fmt.Fprintln(w.out)
			fmt.Fprintln(w.out, colorize(dim, "  disconnected"))
			w.mu.Unlock()
		}
		return nil
	case <-done:
		return fmt.Errorf("connection to %s lost after %d retries", endpoint, c.Retries())
	}
}

type watcher struct {
	mu     sync.Mutex
	out    io.Writer
	enc    *json.Encoder
	json   bool
	filter map[string]bool
	width  int
}

type seriesLine struct {
	Name   string           `json:"name"`
	Points int              `json:"points"`
	Last   *telemetry.Point `json:"last,omitempty"`
}

func (w *watcher) visible(name string) bool {
	return len(w.filter) == 0 || w.filter[name]
}

func (w *watcher) publish(v series.View) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	lines := make([]seriesLine, 0, len(v))
	for _, s := range v {
		if !w.visible(s.Name) {
			continue
		}
		l := seriesLine{Name: s.Name, Points: len(s.Points)}
		if n := len(s.Points); n > 0 {
			p := s.Points[n-1]
			l.Last = &p
		}
		lines = append(lines, l)
	}

	if w.json {
		_ = w.enc.Encode(map[string]any{
			"ts":     now.UTC().Format(time.RFC3339Nano),
			"type":   "view",
			"series": lines,
		})
		return
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString("  ")
		b.WriteString(colorize(bold, l.Name))
		b.WriteString(" ")
		if l.Last != nil {
			b.WriteString(formatValue(l.Last.V))
		} else {
			b.WriteString("-")
		}
		b.WriteString(colorize(dim, fmt.Sprintf(" (%d)", l.Points)))
	}
	line := "  " + colorize(dim, now.Format("15:04:05.000")) + b.String()
	if !colorEnabled() {
		line = truncate(line, w.width)
	}
	fmt.Fprintln(w.out, line)
}

func (w *watcher) status(s stream.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if w.json {
		_ = w.enc.Encode(map[string]any{
			"ts":     now.UTC().Format(time.RFC3339Nano),
			"type":   "status",
			"status": s.String(),
		})
		return
	}
	fmt.Fprintf(w.out, "  %s %s\n",
		colorize(dim, now.Format("15:04:05.000")),
		colorize(statusColor(s), padRight(strings.ToUpper(s.String()), 12)),
	)
}

func (w *watcher) error(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if w.json {
		_ = w.enc.Encode(map[string]any{
			"ts":    now.UTC().Format(time.RFC3339Nano),
			"type":  "error",
			"error": msg,
		})
		return
	}
	fmt.Fprintf(w.out, "  %s %s  %s\n",
		colorize(dim, now.Format("15:04:05.000")),
		colorize(red, "ERROR"),
		msg,
	)
}
