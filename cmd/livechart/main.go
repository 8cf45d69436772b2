// Livechart charts named time series streamed over a WebSocket. The view
// command opens the interactive terminal chart; the other commands stream
// summaries or query a running livechartd.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/livechart/internal/config"
	"github.com/large-farva/livechart/internal/ctl"
	"github.com/large-farva/livechart/internal/stream"
	"github.com/large-farva/livechart/internal/ui"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to config file (TOML, or YAML by extension)")
		endpoint   = pflag.StringP("endpoint", "e", "", "Series WebSocket endpoint (default from config, ws://localhost:8004)")
		jsonOut    = pflag.Bool("json", false, "Output JSON instead of formatted text")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --interval are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *endpoint != "" {
		cfg.Stream.Endpoint = *endpoint
	}

	cmd := "view"
	var subArgs []string
	if pflag.NArg() > 0 {
		cmd = pflag.Arg(0)
		subArgs = pflag.Args()[1:]
	}

	switch cmd {
	case "view":
		viewFlags := pflag.NewFlagSet("view", pflag.ContinueOnError)
		noConnect := viewFlags.Bool("no-connect", false, "Start disconnected and wait for enter")
		logFile := viewFlags.String("log-file", cfg.UI.LogFile, "Write client logs to this file")
		altScreen := viewFlags.Bool("alt-screen", cfg.UI.AltScreen, "Use the terminal alternate screen buffer")
		_ = viewFlags.Parse(subArgs)
		cfg.UI.LogFile = *logFile
		cfg.UI.AltScreen = *altScreen
		err = ui.Run(ui.Options{Cfg: cfg, AutoConnect: !*noConnect})

	case "watch":
		opts := ctl.WatchOptions{
			Endpoint:  cfg.Stream.Endpoint,
			JSON:      *jsonOut,
			MaxPoints: cfg.Buffer.MaxPoints,
		}
		watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		watchFlags.DurationVar(&opts.Interval, "interval", time.Second, "Minimum time between summary lines")
		watchFlags.StringSliceVar(&opts.Filter, "filter", nil, "Series to show (e.g. --filter cpu,memory)")
		verbose := watchFlags.BoolP("verbose", "v", false, "Log connection activity to stderr")
		_ = watchFlags.Parse(subArgs)

		logger := log.New(os.Stderr, "livechart ", log.LstdFlags|log.Lmicroseconds)
		if !*verbose {
			logger.SetOutput(io.Discard)
		}
		opts.Stream = stream.Options{
			Logger:           logger,
			MaxRetries:       cfg.Stream.MaxRetries,
			BaseDelay:        cfg.Stream.BaseDelay(),
			MaxDelay:         cfg.Stream.MaxDelay(),
			Verbose:          cfg.Logging.Debug(),
			HandshakeTimeout: cfg.Stream.HandshakeTimeout(),
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = ctl.Watch(ctx, opts)
		stop()

	case "status":
		err = ctl.Status(cfg.Stream.Endpoint, *jsonOut)

	case "health":
		err = ctl.Health(cfg.Stream.Endpoint, *jsonOut)

	case "version":
		err = ctl.VersionInfo(cfg.Stream.Endpoint, *jsonOut)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  livechart: live terminal charts for WebSocket series

  USAGE
    livechart [flags] [command] [command-flags]

  COMMANDS
    view            Interactive chart (default)
    watch           Stream one summary line per published view (Ctrl-C to stop)
    status          Show feed daemon state, clients, and series
    health          Check that the feed daemon is reachable
    version         Show CLI and feed daemon version information

  GLOBAL FLAGS
    -c, --config PATH     Config file (TOML, or YAML for .yaml/.yml)
    -e, --endpoint URL    Series endpoint (default: ws://localhost:8004)
        --json            Output JSON instead of formatted text

  COMMAND FLAGS
    view:
        --no-connect        Start disconnected and wait for enter
        --log-file PATH     Write client logs to this file
        --alt-screen        Use the alternate screen buffer (default: true)

    watch:
        --interval DUR      Minimum time between summary lines (default: 1s)
        --filter NAMES      Series to show (comma-separated)
    -v, --verbose           Log connection activity to stderr

  KEYS (view)
    enter    connect / disconnect
    p        pause / resume
    c        clear
    q        quit

  EXAMPLES
    livechart
    livechart -e ws://192.168.8.1:8004 view
    livechart watch --interval 500ms --filter cpu,memory
    livechart --json watch
    livechart status

`)
}
