package exchange

import (
	"context"

	"golang.org/x/time/rate"
)

// limiter wraps a token bucket sized to an exchange's documented request
// weight budget. Every gateway method calls wait before issuing its HTTP
// request rather than reacting to 429s after the fact.
type limiter struct {
	bucket *rate.Limiter
}

// newLimiter builds a limiter allowing ratePerSecond steady-state requests
// with a burst of burst, matching the token-bucket shape exchanges price
// their weight limits in.
func newLimiter(ratePerSecond float64, burst int) *limiter {
	return &limiter{bucket: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (l *limiter) wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}
