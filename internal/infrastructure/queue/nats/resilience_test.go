package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

func TestClassifyConnectionErrorsAsRetryable(t *testing.T) {
	for _, err := range []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected} {
		verdict := classifyNATSError(err)
		if !verdict.Retryable || !verdict.CountAgainst {
			t.Fatalf("%v: expected retryable failure, got %+v", err, verdict)
		}
	}
}

func TestClassifyContextCancellationAsNeither(t *testing.T) {
	verdict := classifyNATSError(context.Canceled)
	if verdict.Retryable || verdict.CountAgainst {
		t.Fatalf("cancellation must not retry or trip the breaker, got %+v", verdict)
	}
}

func TestWrapTemporaryOnlyForRetryableErrors(t *testing.T) {
	wrapped := wrapTemporaryIfNeeded(nats.ErrTimeout)
	if !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected temporary wrap, got %v", wrapped)
	}

	permanent := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(permanent); !errors.Is(got, permanent) || domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("permanent error must pass through unwrapped, got %v", got)
	}
}
