// Livechartd is a reference series feed for livechart.
//
// It serves a WebSocket endpoint that broadcasts a full snapshot of a few
// synthetic series on every tick, plus small HTTP status endpoints. Shutdown
// is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/livechart/internal/app"
	"github.com/large-farva/livechart/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to config file (TOML, or YAML by extension)")
		bind       = pflag.String("bind", "", "HTTP bind address (default from config, 0.0.0.0:8004)")
		interval   = pflag.Duration("interval", 0, "Feed tick interval (overrides feed.interval_ms)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *interval > 0 {
		cfg.Feed.IntervalMS = int(interval.Milliseconds())
		if err := config.Validate(cfg); err != nil {
			log.Fatalf("invalid --interval: %v", err)
		}
	}

	logger := log.New(os.Stdout, "livechartd ", log.LstdFlags|log.Lmicroseconds)

	a := app.New(app.Options{
		Logger: logger,
		Cfg:    cfg,
		Bind:   *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("livechartd failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
