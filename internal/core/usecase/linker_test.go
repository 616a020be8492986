package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

func newLinkerFixture(store *fakeDocumentStore) (*Linker, *fakeCatalog, *fakeRegistryRefresher, *recordedEvents) {
	catalog := newFakeCatalog()
	registry := &fakeRegistryRefresher{cached: map[string][]domain.Document{}}
	events := &recordedEvents{}
	return NewLinker(store, registry, catalog, events), catalog, registry, events
}

func TestFindAndLinkLinksPairAndIsIdempotent(t *testing.T) {
	store := &fakeDocumentStore{docs: []domain.Document{
		{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir"), Namespace: "a-drhp.pdf"},
		{ID: "r1", Type: domain.TypeRHP, DirectoryID: strPtr("dir"), Namespace: "a-rhp.pdf"},
	}}
	linker, catalog, _, _ := newLinkerFixture(store)

	doc, _ := store.document("d1")
	outcome, err := linker.FindAndLink(context.Background(), doc)
	if err != nil {
		t.Fatalf("FindAndLink() error = %v", err)
	}
	if outcome.Kind != OutcomeLinked || outcome.DrhpID != "d1" || outcome.RhpID != "r1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.NavigateTo != "d1" {
		t.Fatalf("navigation must target the DRHP id, got %s", outcome.NavigateTo)
	}
	if len(store.linkCalls) != 1 {
		t.Fatalf("expected exactly one link call, got %d", len(store.linkCalls))
	}
	if catalog.refreshCount() != 1 {
		t.Fatalf("expected one aggregate refresh after link")
	}

	// Re-running on either side must short-circuit without a second link call.
	for _, id := range []string{"d1", "r1"} {
		doc, _ := store.document(id)
		outcome, err := linker.FindAndLink(context.Background(), doc)
		if err != nil {
			t.Fatalf("FindAndLink(%s) error = %v", id, err)
		}
		if outcome.Kind != OutcomeLinked || outcome.DrhpID != "d1" || outcome.RhpID != "r1" {
			t.Fatalf("idempotent call returned %+v", outcome)
		}
	}
	if len(store.linkCalls) != 1 {
		t.Fatalf("idempotent calls must not link again; got %d calls", len(store.linkCalls))
	}
}

func TestFindAndLinkOrdersDrhpIDFirst(t *testing.T) {
	store := &fakeDocumentStore{docs: []domain.Document{
		{ID: "r1", Type: domain.TypeRHP, DirectoryID: strPtr("dir"), Namespace: "a-rhp.pdf"},
		{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir"), Namespace: "a-drhp.pdf"},
	}}
	linker, _, _, _ := newLinkerFixture(store)

	doc, _ := store.document("r1")
	if _, err := linker.FindAndLink(context.Background(), doc); err != nil {
		t.Fatalf("FindAndLink() error = %v", err)
	}
	if store.linkCalls[0] != [2]string{"d1", "r1"} {
		t.Fatalf("DRHP id must be the first positional argument, got %v", store.linkCalls[0])
	}
}

func TestFindAndLinkPrefersCachedDocuments(t *testing.T) {
	store := &fakeDocumentStore{listErr: errors.New("must not hit the store")}
	linker, _, registry, _ := newLinkerFixture(store)
	registry.cached["dir"] = []domain.Document{
		{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir")},
		{ID: "r1", Type: domain.TypeRHP, DirectoryID: strPtr("dir")},
	}

	doc := registry.cached["dir"][0]
	outcome, err := linker.FindAndLink(context.Background(), doc)
	if err != nil {
		t.Fatalf("FindAndLink() error = %v", err)
	}
	if outcome.Kind != OutcomeLinked {
		t.Fatalf("expected linked outcome from cached search, got %+v", outcome)
	}
}

func TestFindAndLinkSkipsAlreadyLinkedCandidates(t *testing.T) {
	store := &fakeDocumentStore{docs: []domain.Document{
		{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir"), Namespace: "a.pdf"},
		{ID: "r-taken", Type: domain.TypeRHP, DirectoryID: strPtr("dir"), RelatedDrhpID: "elsewhere"},
		{ID: "r-free", Type: domain.TypeRHP, DirectoryID: strPtr("dir")},
	}}
	linker, _, _, _ := newLinkerFixture(store)

	doc, _ := store.document("d1")
	outcome, err := linker.FindAndLink(context.Background(), doc)
	if err != nil {
		t.Fatalf("FindAndLink() error = %v", err)
	}
	if outcome.RhpID != "r-free" {
		t.Fatalf("candidate with an existing link must be skipped, got %+v", outcome)
	}
}

func TestFindAndLinkFallsBackToManualSelection(t *testing.T) {
	store := &fakeDocumentStore{
		docs: []domain.Document{
			{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir"), Namespace: "a.pdf"},
		},
		available: []domain.Document{{ID: "candidate-1", Type: domain.TypeRHP}},
	}
	linker, catalog, _, events := newLinkerFixture(store)
	catalog.names["dir"] = "Acme Corp"

	doc, _ := store.document("d1")
	outcome, err := linker.FindAndLink(context.Background(), doc)
	if err != nil {
		t.Fatalf("FindAndLink() error = %v", err)
	}
	if outcome.Kind != OutcomeManualSelection {
		t.Fatalf("expected manual selection, got %+v", outcome)
	}
	if outcome.DirectoryName != "Acme Corp" {
		t.Fatalf("outcome must carry the directory's human name, got %q", outcome.DirectoryName)
	}
	if len(outcome.Candidates) != 1 || outcome.Candidates[0].ID != "candidate-1" {
		t.Fatalf("expected advisory candidates, got %+v", outcome.Candidates)
	}
	if len(events.manualSelections) != 1 {
		t.Fatalf("manual selection event not emitted")
	}
}

func TestFindAndLinkLinkFailureDegradesToManual(t *testing.T) {
	store := &fakeDocumentStore{
		docs: []domain.Document{
			{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir")},
			{ID: "r1", Type: domain.TypeRHP, DirectoryID: strPtr("dir")},
		},
		linkErr: errors.New("backend rejected link"),
	}
	linker, _, _, _ := newLinkerFixture(store)

	doc, _ := store.document("d1")
	outcome, err := linker.FindAndLink(context.Background(), doc)
	if err != nil {
		t.Fatalf("link failure must not surface a hard error, got %v", err)
	}
	if outcome.Kind != OutcomeManualSelection {
		t.Fatalf("expected manual fallback after link failure, got %+v", outcome)
	}
}

func TestDirectoryCompareAlreadyLinkedNavigatesWithoutLinkCall(t *testing.T) {
	store := &fakeDocumentStore{docs: linkedPairDocs("dir")}
	linker, _, _, _ := newLinkerFixture(store)

	outcome, err := linker.DirectoryCompare(context.Background(), domain.Directory{ID: "dir", Name: "Acme"})
	if err != nil {
		t.Fatalf("DirectoryCompare() error = %v", err)
	}
	if outcome.Kind != OutcomeLinked || outcome.NavigateTo != "drhp-1" {
		t.Fatalf("expected direct navigation, got %+v", outcome)
	}
	if len(store.linkCalls) != 0 {
		t.Fatalf("already-linked pair must not trigger a redundant link call")
	}
}

func TestDirectoryComparePromptsForMissingTypes(t *testing.T) {
	store := &fakeDocumentStore{docs: []domain.Document{
		{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir")},
	}}
	linker, _, _, _ := newLinkerFixture(store)

	outcome, err := linker.DirectoryCompare(context.Background(), domain.Directory{ID: "dir", Name: "Acme"})
	if err != nil {
		t.Fatalf("DirectoryCompare() error = %v", err)
	}
	if outcome.Kind != OutcomeUploadMissing || len(outcome.Missing) != 1 || outcome.Missing[0] != domain.TypeRHP {
		t.Fatalf("expected prompt for missing RHP, got %+v", outcome)
	}

	empty := &fakeDocumentStore{}
	linker, _, _, _ = newLinkerFixture(empty)
	outcome, err = linker.DirectoryCompare(context.Background(), domain.Directory{ID: "dir", Name: "Acme"})
	if err != nil {
		t.Fatalf("DirectoryCompare() error = %v", err)
	}
	if outcome.Kind != OutcomeUploadMissing || len(outcome.Missing) != 2 {
		t.Fatalf("expected prompt for both uploads, got %+v", outcome)
	}
}

func TestManualLinkRevalidatesThroughLinkCall(t *testing.T) {
	store := &fakeDocumentStore{
		docs: []domain.Document{
			{ID: "d1", Type: domain.TypeDRHP, DirectoryID: strPtr("dir")},
			{ID: "r-stale", Type: domain.TypeRHP, DirectoryID: strPtr("dir")},
		},
		linkErr: errors.New("candidate no longer available"),
	}
	linker, _, _, _ := newLinkerFixture(store)

	doc, _ := store.document("d1")
	selected, _ := store.document("r-stale")
	if _, err := linker.ManualLink(context.Background(), doc, selected); err == nil {
		t.Fatalf("stale manual selection must fail through the link call")
	}
}
