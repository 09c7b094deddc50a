package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay is the spacing between the item requests of one crawl.
const DefaultDelay = 500 * time.Millisecond

// Pacer enforces a minimum interval between sequential requests. The first
// Wait returns immediately. A Pacer belongs to a single adapter crawl and must
// not be shared between adapters.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer with the given minimum spacing. A non-positive
// interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may go out or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
