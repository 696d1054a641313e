package mailbox

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive provider calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer is a token bucket that starts empty, so n waits take at
// least n intervals however long the calls between them run.
type RatePacer struct {
	lim *rate.Limiter
}

// NewRatePacer allows one call per interval with the given burst. A zero
// interval never waits.
func NewRatePacer(interval time.Duration, burst int) *RatePacer {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		return &RatePacer{lim: rate.NewLimiter(rate.Inf, burst)}
	}
	lim := rate.NewLimiter(rate.Every(interval), burst)
	lim.AllowN(time.Now(), burst)
	return &RatePacer{lim: lim}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}
