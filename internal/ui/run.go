package ui

import (
	"io"
	"log"

	tui "github.com/charmbracelet/bubbletea"

	"github.com/large-farva/livechart/internal/config"
	"github.com/large-farva/livechart/internal/series"
	"github.com/large-farva/livechart/internal/stream"
	"github.com/large-farva/livechart/internal/telemetry"
)

// Options configures Run.
type Options struct {
	Cfg         config.Config
	Endpoint    string // overrides Cfg.Stream.Endpoint when set
	AutoConnect bool
}

// Run starts the interactive view and blocks until the user quits. The
// connection is closed and the buffer stopped before it returns.
func Run(opts Options) error {
	cfg := opts.Cfg
	logger := log.New(io.Discard, "", 0)
	if cfg.UI.LogFile != "" {
		f, err := tui.LogToFile(cfg.UI.LogFile, "livechart")
		if err != nil {
			return err
		}
		defer f.Close()
		logger = log.Default()
	}

	endpoint := cfg.Stream.Endpoint
	if opts.Endpoint != "" {
		endpoint = opts.Endpoint
	}

	client := stream.New(stream.Options{
		Logger:           logger,
		MaxRetries:       cfg.Stream.MaxRetries,
		BaseDelay:        cfg.Stream.BaseDelay(),
		MaxDelay:         cfg.Stream.MaxDelay(),
		Verbose:          cfg.Logging.Debug(),
		HandshakeTimeout: cfg.Stream.HandshakeTimeout(),
	})

	var p *tui.Program
	views := newLatest()
	buf := series.New(series.Options{
		MaxPoints: cfg.Buffer.MaxPoints,
		Interval:  cfg.Buffer.PublishInterval(),
		Logger:    logger,
		OnPublish: views.offer,
	})

	m := newModel(client, buf, endpoint)
	m.autoConnect = opts.AutoConnect && endpoint != ""
	m.handlers = stream.Handlers{
		OnMessage: func(s telemetry.Snapshot) {
			m.received.Add(1)
			buf.Ingest(s)
		},
		OnStatusChange: func(s stream.Status) { p.Send(statusMsg(s)) },
		OnError:        func(text string) { p.Send(errMsg(text)) },
	}

	progOpts := []tui.ProgramOption{tui.WithInputTTY()}
	if cfg.UI.AltScreen {
		progOpts = append(progOpts, tui.WithAltScreen())
	}
	p = tui.NewProgram(m, progOpts...)

	done := make(chan struct{})
	defer close(done)
	go views.forward(done, func(v series.View) { p.Send(viewMsg(v)) })

	buf.Start()
	defer buf.Close()
	defer client.Disconnect()

	_, err := p.Run()
	return err
}
