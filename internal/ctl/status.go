package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/large-farva/livechart/internal/telemetry"
)

// Status fetches the feed daemon status and prints a formatted summary.
func Status(endpoint string, jsonOutput bool) error {
	base := httpBase(endpoint)

	var s telemetry.FeedStatus
	if err := getJSON(base, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateColor := green
	if s.State != "RUNNING" {
		stateColor = yellow
	}

	fmt.Println()
	fmt.Println(header("  LIVECHART FEED STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor, s.State))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %d\n", colorize(dim, "Clients:"), s.Clients)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Series:"), strings.Join(s.Series, ", "))
	fmt.Printf("  %-12s %dms (history %d)\n", colorize(dim, "Interval:"), s.IntervalMS, s.MaxPoints)
	fmt.Printf("  %-12s %d\n", colorize(dim, "Updates:"), s.Ticks)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), base)
	fmt.Println()

	return nil
}

// Health checks daemon liveness via GET /healthz.
func Health(endpoint string, jsonOutput bool) error {
	base := httpBase(endpoint)

	status, _, err := getRaw(base, "/healthz")
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": base, "error": err.Error()})
		}
		return err
	}

	healthy := status == 200

	if jsonOutput {
		return printJSON(map[string]any{"healthy": healthy, "url": base})
	}

	fmt.Println()
	if healthy {
		fmt.Printf("  %s  livechartd is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, base))
	} else {
		fmt.Printf("  %s  livechartd returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, base))
	}
	fmt.Println()

	return nil
}
