package udpio

import (
	"context"

	"golang.org/x/time/rate"
)

// Shaper throttles the sender's UDP transmitter to a configured bits/sec
// ceiling (bandwidth_limit) using a token bucket sized in bytes.
type Shaper struct {
	limiter *rate.Limiter
}

// NewShaper builds a Shaper for bandwidthLimitBits bits per second. A limit
// of 0 disables shaping (Wait always returns immediately).
func NewShaper(bandwidthLimitBits int) *Shaper {
	if bandwidthLimitBits <= 0 {
		return &Shaper{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	bytesPerSec := bandwidthLimitBits / 8
	// Burst equal to one second's worth keeps the limiter from fragmenting a
	// single batch write across many small waits.
	return &Shaper{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)}
}

// WaitN blocks until n bytes' worth of budget is available, or ctx is done.
// A request larger than the bucket is taken in bucket-sized pieces. The UDP
// transmitter stage calls this once per outgoing datagram before writing it.
func (s *Shaper) WaitN(ctx context.Context, n int) error {
	if burst := s.limiter.Burst(); burst > 0 && s.limiter.Limit() != rate.Inf {
		for n > burst {
			if err := s.limiter.WaitN(ctx, burst); err != nil {
				return err
			}
			n -= burst
		}
	}
	return s.limiter.WaitN(ctx, n)
}
