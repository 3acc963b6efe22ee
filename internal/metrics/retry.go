package metrics

import (
	"math/rand"
	"time"
)

// JitterFactor is the ±fraction of jitter applied to retry delays.
const JitterFactor = 0.2

// RetryPolicy is shared by the subscriber and the poller: both count
// consecutive failures and give up once MaxFailures is reached.
type RetryPolicy struct {
	// MaxFailures <= 0 retries forever.
	MaxFailures int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultSubscriberPolicy() RetryPolicy {
	return RetryPolicy{MaxFailures: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

func DefaultPollerPolicy() RetryPolicy {
	return RetryPolicy{MaxFailures: 1, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Exhausted reports whether failures consecutive failures end the loop.
func (p RetryPolicy) Exhausted(failures int) bool {
	return p.MaxFailures > 0 && failures >= p.MaxFailures
}

// Delay returns the wait before retry number attempt (1-based): BaseDelay
// doubled per attempt, capped at MaxDelay, with ±20% jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	jitterRange := float64(d) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange
	return time.Duration(float64(d) + jitter)
}
