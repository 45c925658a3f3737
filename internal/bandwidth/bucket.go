// Package bandwidth emulates the delivery rate of a remote content host.
//
// A single Bucket is shared by every transfer in the process; Pump moves
// bytes from a source to a sink no faster than the bucket grants them, so
// the aggregate rate across all concurrent transfers stays under the cap.
package bandwidth

import (
	"context"
	"sync"
	"time"
)

// refillInterval bounds how long an Acquire sleeps between partial grants.
// The aggregate rate may overshoot the cap by at most one interval's worth
// of bytes.
const refillInterval = 20 * time.Millisecond

// Bucket is a token bucket holding byte credits, refilled continuously at
// the configured rate and capped at one second of burst. It is safe for
// concurrent use and is meant to be shared by all transfers in the process.
type Bucket struct {
	mu     sync.Mutex
	rate   float64 // bytes per second
	cap    float64 // == rate, at most one second of accumulation
	tokens float64
	last   time.Time

	now func() time.Time
}

// New returns a full bucket enforcing bytesPerSec as the aggregate cap.
// Caps below one byte per second are clamped up.
func New(bytesPerSec int64) *Bucket {
	if bytesPerSec < 1 {
		bytesPerSec = 1
	}
	b := &Bucket{
		rate: float64(bytesPerSec),
		cap:  float64(bytesPerSec),
		now:  time.Now,
	}
	b.tokens = b.cap
	b.last = b.now()
	return b
}

// Rate reports the configured cap in bytes per second.
func (b *Bucket) Rate() int64 { return int64(b.rate) }

// Available reports the tokens currently in the bucket.
func (b *Bucket) Available() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(b.now())
	return int64(b.tokens)
}

// refill credits tokens for the time elapsed since the last refill.
// Caller must hold b.mu.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.cap {
		b.tokens = b.cap
	}
	b.last = now
}

// take debits up to n tokens and returns the amount granted. Caller must
// hold b.mu.
func (b *Bucket) take(n int) int {
	b.refill(b.now())
	granted := float64(n)
	if granted > b.tokens {
		granted = b.tokens
	}
	if granted < 1 {
		return 0
	}
	g := int(granted)
	b.tokens -= float64(g)
	return g
}

// Acquire blocks until n bytes of credit have been debited from the bucket,
// taking partial grants as tokens become available. It returns early with
// ctx.Err() if the context is cancelled; tokens already debited are not
// returned. Waiters are woken on a uniform short interval, which keeps grant
// order roughly arrival order without strict FIFO bookkeeping.
func (b *Bucket) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	for {
		b.mu.Lock()
		g := b.take(n)
		b.mu.Unlock()
		n -= g
		if n <= 0 {
			return nil
		}

		wait := b.waitFor(n)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// waitFor estimates how long until n more tokens accumulate, capped at one
// refill interval so contending waiters re-poll fairly.
func (b *Bucket) waitFor(n int) time.Duration {
	d := time.Duration(float64(n) / b.rate * float64(time.Second))
	if d > refillInterval {
		d = refillInterval
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
