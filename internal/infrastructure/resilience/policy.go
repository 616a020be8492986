package resilience

import "time"

// Policy bounds one class of remote calls. The two remote surfaces of this
// system fail differently: postgres calls hold an HTTP handler open and must
// give up fast, while NATS publishes have nobody waiting on them and can
// afford to ride out a reconnect.
type Policy struct {
	Attempts      int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	BackoffFactor float64

	BreakerDisabled     bool
	BreakerMinCalls     uint32
	BreakerFailureRatio float64
	BreakerCooldown     time.Duration
	BreakerProbes       uint32
}

// StorePolicy is tuned for store-facing calls made inside a request: at most
// two short retries, and a breaker that trips only on a clear majority of
// failures so a burst of duplicate checks cannot open it.
func StorePolicy() Policy {
	return Policy{
		Attempts:      3,
		BackoffBase:   50 * time.Millisecond,
		BackoffCap:    250 * time.Millisecond,
		BackoffFactor: 2.0,

		BreakerMinCalls:     10,
		BreakerFailureRatio: 0.6,
		BreakerCooldown:     15 * time.Second,
		BreakerProbes:       3,
	}
}

// PushPolicy is tuned for upload-status publishes: backoff stretches to cover
// a NATS reconnect window, and the breaker cools down longer because a lost
// push costs nothing while the poll loop covers for it.
func PushPolicy() Policy {
	return Policy{
		Attempts:      4,
		BackoffBase:   100 * time.Millisecond,
		BackoffCap:    2 * time.Second,
		BackoffFactor: 2.0,

		BreakerMinCalls:     8,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     30 * time.Second,
		BreakerProbes:       2,
	}
}

func (p Policy) withDefaults() Policy {
	out := p
	base := StorePolicy()

	if out.Attempts <= 0 {
		out.Attempts = base.Attempts
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = base.BackoffBase
	}
	if out.BackoffCap < out.BackoffBase {
		out.BackoffCap = out.BackoffBase
	}
	if out.BackoffFactor < 1.0 {
		out.BackoffFactor = base.BackoffFactor
	}

	if out.BreakerMinCalls == 0 {
		out.BreakerMinCalls = base.BreakerMinCalls
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = base.BreakerFailureRatio
	}
	if out.BreakerCooldown <= 0 {
		out.BreakerCooldown = base.BreakerCooldown
	}
	if out.BreakerProbes == 0 {
		out.BreakerProbes = base.BreakerProbes
	}

	return out
}

// backoff returns the wait before retry number n (n >= 1), growing
// geometrically from the base and clamped at the cap.
func (p Policy) backoff(n int) time.Duration {
	wait := p.BackoffBase
	for i := 1; i < n; i++ {
		wait = time.Duration(float64(wait) * p.BackoffFactor)
		if wait >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if wait > p.BackoffCap {
		return p.BackoffCap
	}
	return wait
}
