package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

type countingStore struct {
	checkCalls int
	checkFn    func() (*domain.Document, error)
	linkCalls  int
	linkFn     func() error
}

func (s *countingStore) CheckDuplicate(context.Context, string) (*domain.Document, error) {
	s.checkCalls++
	return s.checkFn()
}

func (s *countingStore) LinkForCompare(context.Context, string, string) error {
	s.linkCalls++
	return s.linkFn()
}

func (s *countingStore) List(context.Context, *string) ([]domain.Document, error) { return nil, nil }
func (s *countingStore) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, nil
}
func (s *countingStore) Create(context.Context, domain.CreateDocumentRequest) (*domain.Document, error) {
	return nil, nil
}
func (s *countingStore) Update(context.Context, string, domain.DocumentPatch) error { return nil }
func (s *countingStore) Delete(context.Context, string) error                       { return nil }
func (s *countingStore) GetAvailableForCompare(context.Context, string) ([]domain.Document, error) {
	return nil, nil
}

func fastPolicy() Policy {
	return Policy{
		Attempts:        3,
		BackoffBase:     time.Millisecond,
		BackoffCap:      2 * time.Millisecond,
		BackoffFactor:   2,
		BreakerDisabled: true,
	}
}

func TestGuardedCheckDuplicateRetriesTransientStoreFailure(t *testing.T) {
	inner := &countingStore{}
	inner.checkFn = func() (*domain.Document, error) {
		if inner.checkCalls < 3 {
			return nil, errors.New("connection refused")
		}
		return &domain.Document{ID: "orig"}, nil
	}
	store := NewGuardedDocumentStore(inner, NewExecutor(fastPolicy()))

	doc, err := store.CheckDuplicate(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("CheckDuplicate() error = %v", err)
	}
	if doc == nil || doc.ID != "orig" {
		t.Fatalf("expected the recovered answer, got %+v", doc)
	}
	if inner.checkCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.checkCalls)
	}
}

func TestGuardedLinkDoesNotRetryDomainAnswers(t *testing.T) {
	inner := &countingStore{}
	inner.linkFn = func() error {
		return domain.WrapError(domain.ErrDocumentNotFound, "link document", fmt.Errorf("id=missing"))
	}
	store := NewGuardedDocumentStore(inner, NewExecutor(fastPolicy()))

	err := store.LinkForCompare(context.Background(), "drhp-1", "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not-found to pass through, got %v", err)
	}
	if inner.linkCalls != 1 {
		t.Fatalf("a domain answer must not be retried, got %d calls", inner.linkCalls)
	}
}

func TestClassifyStoreErrorKeepsDomainAnswersOffTheBreaker(t *testing.T) {
	domainErr := domain.WrapError(domain.ErrDuplicateDocument, "check", errors.New("taken"))
	if v := classifyStoreError(domainErr); v.Retryable || v.CountAgainst {
		t.Fatalf("domain answers are not failures, got %+v", v)
	}
	if v := classifyStoreError(context.Canceled); v.Retryable || v.CountAgainst {
		t.Fatalf("cancellation is not a store failure, got %+v", v)
	}
	if v := classifyStoreError(errors.New("broken pipe")); !v.Retryable || !v.CountAgainst {
		t.Fatalf("infrastructure failures must retry and count, got %+v", v)
	}
}
