package link

import (
	"context"
	"math/rand/v2"
	"time"
)

// Timing holds every delay and timeout used by the duty cycles. Zero
// timeouts mean "no timeout"; zero jitter means fixed retry intervals.
type Timing struct {
	PowerPoll     time.Duration // AwaitPowerOn re-poll interval
	DiscoverPoll  time.Duration // DiscoverPeer re-query interval
	RetryDelay    time.Duration // pause after a failed connect or a missing characteristic
	MaxWriteDelay time.Duration // write-loop delay is uniform in [0, MaxWriteDelay)
	RetryJitter   time.Duration // extra uniform [0, RetryJitter) added to retry sleeps

	ConnectTimeout  time.Duration
	DiscoverTimeout time.Duration
	WriteTimeout    time.Duration
}

// DefaultTiming is the stock schedule: fixed 5s/2s/5s retries,
// up to 1.5s between writes and no call timeouts.
func DefaultTiming() Timing {
	return Timing{
		PowerPoll:     5 * time.Second,
		DiscoverPoll:  2 * time.Second,
		RetryDelay:    5 * time.Second,
		MaxWriteDelay: 1500 * time.Millisecond,
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// uniform returns a duration in [0, limit), or 0 when limit is not positive.
func uniform(rng *rand.Rand, limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rng.Int64N(int64(limit)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call runs fn under a derived context bounded by timeout, if one is set.
func call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	return fn(ctx)
}
