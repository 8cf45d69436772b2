package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/large-farva/livechart/internal/telemetry"
)

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := telemetry.FeedStatus{
		Name:          "livechartd",
		State:         a.state.Load().(string),
		UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
		Clients:       a.wsHub.Clients(),
		Series:        a.runner.Gen.Names(),
		IntervalMS:    a.runner.Interval.Milliseconds(),
		MaxPoints:     a.runner.Gen.MaxPoints,
		Ticks:         a.runner.Gen.Ticks(),
	}
	writeJSON(w, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
