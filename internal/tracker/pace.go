package tracker

import (
	"context"
	"time"

	"github.com/juju/ratelimit"
)

// NewPacer returns a token bucket allowing perSecond requests per second with no burst.
// It returns nil if perSecond is not positive, which disables pacing.
func NewPacer(perSecond float64) *ratelimit.Bucket {
	if perSecond <= 0 {
		return nil
	}
	return ratelimit.NewBucketWithRate(perSecond, 1)
}

// Pace blocks until b allows another request or ctx is done. A nil b never blocks.
func Pace(ctx context.Context, b *ratelimit.Bucket) error {
	if b == nil {
		return ctx.Err()
	}
	d := b.Take(1)
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
