package api

import (
	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5.0
	defaultBurst = 10
)

// newLimiter builds the client-side throttle. Requests wait for a token and
// are never rejected; non-positive rps disables throttling.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
