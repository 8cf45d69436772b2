package series

import (
	"time"

	"golang.org/x/time/rate"
)

// throttle admits at most one publish per interval. Both the recurring timer
// and the ingest path go through request, so there is one place that decides
// who publishes in a given interval.
type throttle struct {
	every rate.Limit
	lim   *rate.Limiter
}

func newThrottle(interval time.Duration) *throttle {
	every := rate.Every(interval)
	return &throttle{every: every, lim: rate.NewLimiter(every, 1)}
}

// request reports whether a publish may happen at now, and if so records it.
func (t *throttle) request(now time.Time) bool {
	return t.lim.AllowN(now, 1)
}

// mark records a publish at now that bypassed request.
func (t *throttle) mark(now time.Time) {
	t.lim = rate.NewLimiter(t.every, 1)
	t.lim.AllowN(now, 1)
}
