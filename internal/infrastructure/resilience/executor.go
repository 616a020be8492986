package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict tells the executor how to treat one failed call: whether the call
// may be retried, and whether it counts against the operation's breaker.
type Verdict struct {
	Retryable    bool
	CountAgainst bool
}

type Classifier func(err error) Verdict

// Executor wraps remote calls with the bounded retries and per-operation
// circuit breakers of one Policy. Operations share nothing: a flapping
// postgres must not trip the breaker guarding the push channel.
type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Do(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify Classifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = strictClassifier
	}

	if e.policy.BreakerDisabled {
		return e.attempt(ctx, op, fn, classify)
	}

	_, err := e.breakerFor(op, classify).Execute(func() (any, error) {
		return nil, e.attempt(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) attempt(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify Classifier,
) error {
	var lastErr error

	for n := 1; n <= e.policy.Attempts; n++ {
		if n > 1 {
			slog.Warn("retry_attempt",
				"operation", operation,
				"attempt", n,
				"max_attempts", e.policy.Attempts,
				"error", lastErr,
			)
			if err := sleep(ctx, e.policy.backoff(n-1)); err != nil {
				return lastErr
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr).Retryable {
			return lastErr
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) breakerFor(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	p := e.policy
	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: p.BreakerProbes,
		Timeout:     p.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < p.BreakerMinCalls {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= p.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).CountAgainst
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// strictClassifier treats every failure as terminal and breaker-visible.
func strictClassifier(error) Verdict {
	return Verdict{Retryable: false, CountAgainst: true}
}
