package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	sumapiRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sumapi_rate_limit_waits_total",
		Help: "Total number of requests delayed by the client side rate limit",
	})

	sumapiRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sumapi_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for the client side rate limit",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
)

// minReportedWait keeps immediate grants out of the wait metrics.
const minReportedWait = time.Millisecond

// Limiter gates requests to a fixed rate. A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst. rps <= 0 disables pacing.
func NewLimiter(rps float64, burst int, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter.Limit() == rate.Inf {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}

	if waited := time.Since(start); waited >= minReportedWait {
		sumapiRateLimitWaitsTotal.Inc()
		sumapiRateLimitWaitSeconds.Observe(waited.Seconds())
		l.logger.Debug().
			Dur("waited", waited).
			Float64("limit", float64(l.limiter.Limit())).
			Msg("Request delayed by rate limit")
	}
	return nil
}

// State returns the current limiter state.
func (l *Limiter) State() State {
	if l == nil || l.limiter.Limit() == rate.Inf {
		return State{Unlimited: true}
	}
	return State{
		Limit:  float64(l.limiter.Limit()),
		Burst:  l.limiter.Burst(),
		Tokens: l.limiter.Tokens(),
	}
}
