package probe

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Governor paces probe dispatches per worker: at least the configured delay
// elapses between two consecutive dispatches of the same worker, so the total
// request rate tops out at workers/delay. Each worker owns its limiter, so
// there is no cross-worker synchronization.
//
// A limiter with burst 1 starts full, which gives the two properties the
// pacing needs: the first dispatch of a worker is never delayed, and the
// token refills in real time during the network call, so a slow probe absorbs
// part or all of the delay instead of adding to it.
type Governor struct {
	limiters []*rate.Limiter
}

func NewGovernor(workers int, delay time.Duration) *Governor {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	limiters := make([]*rate.Limiter, workers)
	for i := range limiters {
		limiters[i] = rate.NewLimiter(limit, 1)
	}
	return &Governor{limiters: limiters}
}

// Wait blocks the given worker until its next dispatch slot, or until ctx is
// cancelled.
func (g *Governor) Wait(ctx context.Context, worker int) error {
	return g.limiters[worker].Wait(ctx)
}
