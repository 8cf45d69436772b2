// Package app wires together the HTTP server, the WebSocket hub, and the
// feed runner that make up livechartd. It owns the daemon's lifecycle and
// is the single source of truth for the current operating state.
package app

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/large-farva/livechart/internal/config"
	"github.com/large-farva/livechart/internal/feed"
	"github.com/large-farva/livechart/internal/ws"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger *log.Logger
	Cfg    config.Config
	Bind   string
}

// App is the top-level daemon process.
type App struct {
	log    *log.Logger
	cfg    config.Config
	bind   string
	server *http.Server

	startedAt time.Time
	state     atomic.Value // STARTING, RUNNING, STOPPING

	wsHub  *ws.Hub
	runner *feed.Runner
}

// New creates an App in the STARTING state. Call Run to start serving.
func New(opts Options) *App {
	hub := ws.NewHub()
	a := &App{
		log:       opts.Logger,
		cfg:       opts.Cfg,
		bind:      opts.Bind,
		startedAt: time.Now(),
		wsHub:     hub,
		runner:    feed.New(hub, opts.Cfg.Feed.MaxPoints, opts.Cfg.Feed.Interval(), opts.Logger),
	}
	a.state.Store("STARTING")
	return a
}

// Handler returns the daemon's HTTP routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.Handle("/ws", a.wsHub.Handler())
	mux.Handle("/", a.wsHub.Handler())
	return mux
}

// Run starts the HTTP server, the hub, and the feed runner. It blocks until
// the context is cancelled or the server returns an error.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" && a.cfg.Server.Bind != "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8004"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on ws://%s", bind)

	a.Start(ctx)

	go func() {
		<-ctx.Done()
		a.state.Store("STOPPING")
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	return a.server.Serve(ln)
}

// Start launches the hub and the feed runner without binding a listener.
func (a *App) Start(ctx context.Context) {
	go a.wsHub.Run(ctx)
	go a.runner.Run(ctx)
	a.state.Store("RUNNING")
}
