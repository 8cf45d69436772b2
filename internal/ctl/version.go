package ctl

import (
	"fmt"
	"strings"

	"github.com/large-farva/livechart/internal/telemetry"
)

// Build-time variables set via -ldflags.
var (
	Version   = "dev"
	GoVersion = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BuiltAt   string `json:"built_at,omitempty"`
}

// feedInfo is what the CLI can learn about the stream it would chart.
type feedInfo struct {
	buildInfo
	Endpoint   string   `json:"endpoint"`
	Series     []string `json:"series"`
	IntervalMS int64    `json:"interval_ms"`
	MaxPoints  int      `json:"max_points"`
}

type versionReport struct {
	CLI       buildInfo `json:"cli"`
	Feed      *feedInfo `json:"feed,omitempty"`
	FeedError string    `json:"feed_error,omitempty"`
}

// collectVersions asks the feed for its build and its stream layout. A feed
// that answers /api/version but not /api/status is still reported.
func collectVersions(endpoint string) versionReport {
	r := versionReport{CLI: buildInfo{Version: Version, GoVersion: GoVersion}}
	base := httpBase(endpoint)

	feed := &feedInfo{Endpoint: endpoint}
	if err := getJSON(base, "/api/version", &feed.buildInfo); err != nil {
		r.FeedError = err.Error()
		return r
	}
	var s telemetry.FeedStatus
	if err := getJSON(base, "/api/status", &s); err == nil {
		feed.Series = s.Series
		feed.IntervalMS = s.IntervalMS
		feed.MaxPoints = s.MaxPoints
	}
	r.Feed = feed
	return r
}

// VersionInfo prints the CLI build and, when the feed is reachable, its build
// along with the series it streams and how often.
func VersionInfo(endpoint string, jsonOutput bool) error {
	r := collectVersions(endpoint)
	if jsonOutput {
		return printJSON(r)
	}

	fmt.Println()
	fmt.Println(header("  LIVECHART VERSION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s (%s)\n", colorize(dim, "CLI:"), r.CLI.Version, r.CLI.GoVersion)
	if r.Feed == nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Feed:"), colorize(red, "unreachable: "+r.FeedError))
		fmt.Println()
		return nil
	}

	f := r.Feed
	fmt.Printf("  %-12s %s (%s, built %s)\n", colorize(dim, "Feed:"), f.Version, f.GoVersion, f.BuiltAt)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Endpoint:"), f.Endpoint)
	if len(f.Series) > 0 {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Series:"), strings.Join(f.Series, ", "))
		fmt.Printf("  %-12s every %dms, %d points per series\n", colorize(dim, "Stream:"), f.IntervalMS, f.MaxPoints)
	}
	fmt.Println()

	return nil
}
