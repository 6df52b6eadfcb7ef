// Package ratelimit paces outgoing SumAPI requests on the client side.
// The service publishes no rate limit headers, so the pace is a fixed
// requests-per-second budget taken from the client configuration.
package ratelimit

import (
	"math"
)

// State is a snapshot of the limiter.
type State struct {
	// Limit is the sustained requests per second. Zero when unlimited.
	Limit float64 `json:"limit"`

	// Burst is the number of requests allowed at once.
	Burst int `json:"burst"`

	// Tokens is the number of requests that may be sent without waiting.
	Tokens float64 `json:"tokens"`

	// Unlimited is true when no pacing applies.
	Unlimited bool `json:"unlimited"`
}

// NeedsWait returns true if the next request will be delayed.
func (s State) NeedsWait() bool {
	return !s.Unlimited && s.Tokens < 1
}

// Available returns the number of whole requests that can be sent now.
func (s State) Available() int {
	if s.Unlimited {
		return math.MaxInt
	}
	if s.Tokens < 0 {
		return 0
	}
	return int(s.Tokens)
}
