package resilience

import (
	"context"
	"errors"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

// GuardedDocumentStore wraps a DocumentStore with retries and breakers on the
// read-mostly calls the engine depends on: the remote duplicate check and the
// compare link. Create is passed through untouched, its body is a one-shot
// stream and a blind retry would replay a half-consumed reader.
type GuardedDocumentStore struct {
	inner ports.DocumentStore
	exec  *Executor
}

func NewGuardedDocumentStore(inner ports.DocumentStore, exec *Executor) *GuardedDocumentStore {
	return &GuardedDocumentStore{inner: inner, exec: exec}
}

// classifyStoreError keeps domain answers out of the breaker: a not-found or a
// duplicate is the store working correctly, not failing.
func classifyStoreError(err error) Verdict {
	switch {
	case err == nil:
		return Verdict{}
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrDirectoryNotFound),
		domain.IsKind(err, domain.ErrDuplicateDocument),
		domain.IsKind(err, domain.ErrInvalidInput):
		return Verdict{Retryable: false, CountAgainst: false}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Verdict{Retryable: false, CountAgainst: false}
	default:
		return Verdict{Retryable: true, CountAgainst: true}
	}
}

func (s *GuardedDocumentStore) CheckDuplicate(ctx context.Context, namespace string) (*domain.Document, error) {
	var doc *domain.Document
	err := s.exec.Do(ctx, "store.check_duplicate", func(ctx context.Context) error {
		var callErr error
		doc, callErr = s.inner.CheckDuplicate(ctx, namespace)
		return callErr
	}, classifyStoreError)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *GuardedDocumentStore) LinkForCompare(ctx context.Context, drhpID, rhpID string) error {
	return s.exec.Do(ctx, "store.link_for_compare", func(ctx context.Context) error {
		return s.inner.LinkForCompare(ctx, drhpID, rhpID)
	}, classifyStoreError)
}

func (s *GuardedDocumentStore) List(ctx context.Context, directoryID *string) ([]domain.Document, error) {
	return s.inner.List(ctx, directoryID)
}

func (s *GuardedDocumentStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return s.inner.GetByID(ctx, id)
}

func (s *GuardedDocumentStore) Create(ctx context.Context, req domain.CreateDocumentRequest) (*domain.Document, error) {
	return s.inner.Create(ctx, req)
}

func (s *GuardedDocumentStore) Update(ctx context.Context, id string, patch domain.DocumentPatch) error {
	return s.inner.Update(ctx, id, patch)
}

func (s *GuardedDocumentStore) Delete(ctx context.Context, id string) error {
	return s.inner.Delete(ctx, id)
}

func (s *GuardedDocumentStore) GetAvailableForCompare(ctx context.Context, id string) ([]domain.Document, error) {
	return s.inner.GetAvailableForCompare(ctx, id)
}
