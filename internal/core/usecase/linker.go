package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

type CompareOutcomeKind string

const (
	// OutcomeLinked means a pair exists (found or just created) and the
	// caller should navigate to the comparison view for the DRHP id.
	OutcomeLinked CompareOutcomeKind = "linked"
	// OutcomeManualSelection means no counterpart was found or linking
	// failed; the user picks from an advisory candidate list.
	OutcomeManualSelection CompareOutcomeKind = "manual_selection"
	// OutcomeUploadMissing means the directory lacks one or both filing
	// types and the user should be prompted to upload them.
	OutcomeUploadMissing CompareOutcomeKind = "upload_missing"
)

type CompareOutcome struct {
	Kind          CompareOutcomeKind    `json:"kind"`
	DrhpID        string                `json:"drhp_id,omitempty"`
	RhpID         string                `json:"rhp_id,omitempty"`
	NavigateTo    string                `json:"navigate_to,omitempty"`
	DirectoryName string                `json:"directory_name,omitempty"`
	Candidates    []domain.Document     `json:"candidates,omitempty"`
	Missing       []domain.DocumentType `json:"missing,omitempty"`
}

// Linker discovers and links complementary DRHP/RHP pairs. It prefers the
// owning directory's already-loaded documents, falls back to a fresh fetch,
// and degrades to manual selection instead of surfacing hard link errors.
type Linker struct {
	docs     ports.DocumentStore
	registry ports.RegistryView
	catalog  interface {
		ports.CatalogView
		ports.CatalogRefresher
	}
	events ports.EventSink
}

func NewLinker(
	docs ports.DocumentStore,
	registry ports.RegistryView,
	catalog interface {
		ports.CatalogView
		ports.CatalogRefresher
	},
	events ports.EventSink,
) *Linker {
	if events == nil {
		events = ports.NopEventSink{}
	}
	return &Linker{docs: docs, registry: registry, catalog: catalog, events: events}
}

// FindAndLink resolves a comparison for one document, short-circuiting at the
// first success: existing link, then in-directory counterpart search, then
// manual selection.
func (l *Linker) FindAndLink(ctx context.Context, doc domain.Document) (*CompareOutcome, error) {
	// An existing link on either side means the pair is already established.
	if related := doc.RelatedID(); related != "" {
		drhpID, rhpID := orderPair(doc, related)
		return &CompareOutcome{Kind: OutcomeLinked, DrhpID: drhpID, RhpID: rhpID, NavigateTo: drhpID}, nil
	}

	if doc.DirectoryID == nil {
		return l.manualSelection(ctx, doc, "")
	}
	directoryID := *doc.DirectoryID

	neighbors, cached := l.registry.CachedDocuments(directoryID)
	if !cached {
		// The cache cannot be trusted for a directory the user has not
		// opened; fetch fresh before searching.
		fetched, err := l.docs.List(ctx, &directoryID)
		if err != nil {
			return nil, fmt.Errorf("list documents of directory %s: %w", directoryID, err)
		}
		neighbors = fetched
	}

	candidate, found := firstUnlinkedCounterpart(doc, neighbors)
	if !found {
		return l.manualSelection(ctx, doc, directoryID)
	}

	outcome, err := l.link(ctx, doc, candidate, directoryID)
	if err != nil {
		// Link failure degrades to the manual flow, never a hard error.
		slog.Warn("link creation failed, falling back to manual selection",
			"document_id", doc.ID,
			"candidate_id", candidate.ID,
			"error", err,
		)
		return l.manualSelection(ctx, doc, directoryID)
	}
	return outcome, nil
}

// ManualLink applies a user's selection. The link call is the single source
// of truth: a stale candidate fails here and surfaces to the caller.
func (l *Linker) ManualLink(ctx context.Context, doc domain.Document, selected domain.Document) (*CompareOutcome, error) {
	directoryID := ""
	if doc.DirectoryID != nil {
		directoryID = *doc.DirectoryID
	}
	return l.link(ctx, doc, selected, directoryID)
}

// DirectoryCompare classifies a whole directory: navigate when a linked pair
// exists, link when both types are present unlinked, otherwise prompt for the
// missing uploads.
func (l *Linker) DirectoryCompare(ctx context.Context, dir domain.Directory) (*CompareOutcome, error) {
	docs, err := l.docs.List(ctx, &dir.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents of directory %s: %w", dir.ID, err)
	}

	if drhp, rhp, linked := domain.LinkedPair(docs); linked {
		// Already linked: navigate directly, no redundant link call.
		return &CompareOutcome{Kind: OutcomeLinked, DrhpID: drhp.ID, RhpID: rhp.ID, NavigateTo: drhp.ID}, nil
	}

	drhp := firstUnlinkedOfType(docs, domain.TypeDRHP)
	rhp := firstUnlinkedOfType(docs, domain.TypeRHP)

	switch {
	case drhp != nil && rhp != nil:
		outcome, err := l.link(ctx, *drhp, *rhp, dir.ID)
		if err != nil {
			slog.Warn("directory link failed, falling back to manual selection",
				"directory_id", dir.ID,
				"error", err,
			)
			return l.manualSelection(ctx, *drhp, dir.ID)
		}
		return outcome, nil
	case drhp != nil:
		return &CompareOutcome{Kind: OutcomeUploadMissing, DirectoryName: dir.Name, Missing: []domain.DocumentType{domain.TypeRHP}}, nil
	case rhp != nil:
		return &CompareOutcome{Kind: OutcomeUploadMissing, DirectoryName: dir.Name, Missing: []domain.DocumentType{domain.TypeDRHP}}, nil
	default:
		return &CompareOutcome{Kind: OutcomeUploadMissing, DirectoryName: dir.Name, Missing: []domain.DocumentType{domain.TypeDRHP, domain.TypeRHP}}, nil
	}
}

func (l *Linker) link(ctx context.Context, a, b domain.Document, directoryID string) (*CompareOutcome, error) {
	drhpID, rhpID := orderPairDocs(a, b)
	if err := l.docs.LinkForCompare(ctx, drhpID, rhpID); err != nil {
		return nil, fmt.Errorf("link %s with %s: %w", drhpID, rhpID, err)
	}

	if directoryID != "" {
		if err := l.catalog.RefreshDirectory(ctx, directoryID); err != nil {
			slog.Warn("aggregate refresh after link failed", "directory_id", directoryID, "error", err)
		}
	}
	return &CompareOutcome{Kind: OutcomeLinked, DrhpID: drhpID, RhpID: rhpID, NavigateTo: drhpID}, nil
}

func (l *Linker) manualSelection(ctx context.Context, doc domain.Document, directoryID string) (*CompareOutcome, error) {
	directoryName := ""
	if directoryID != "" {
		directoryName = l.catalog.DirectoryName(directoryID)
	}

	// Advisory list; it may be stale, and a selection re-validates through
	// the link call anyway.
	candidates, err := l.docs.GetAvailableForCompare(ctx, doc.ID)
	if err != nil {
		slog.Warn("candidate fetch failed", "document_id", doc.ID, "error", err)
		candidates = nil
	}

	l.events.ManualSelectionNeeded(doc.ID, directoryName, candidates)
	return &CompareOutcome{
		Kind:          OutcomeManualSelection,
		DirectoryName: directoryName,
		Candidates:    candidates,
	}, nil
}

// firstUnlinkedCounterpart returns the first other document in the same
// directory with the opposite type and no link on either side. First match
// wins; there is no ranking beyond array order.
func firstUnlinkedCounterpart(doc domain.Document, neighbors []domain.Document) (domain.Document, bool) {
	for _, other := range neighbors {
		if other.ID == doc.ID || other.Type != doc.Type.Opposite() {
			continue
		}
		if doc.DirectoryID != nil && !other.InDirectory(*doc.DirectoryID) {
			continue
		}
		if other.RelatedID() != "" {
			continue
		}
		return other, true
	}
	return domain.Document{}, false
}

func firstUnlinkedOfType(docs []domain.Document, t domain.DocumentType) *domain.Document {
	for i := range docs {
		if docs[i].Type == t && docs[i].RelatedID() == "" {
			return &docs[i]
		}
	}
	return nil
}

// orderPairDocs orders two documents as (drhpID, rhpID); the DRHP id is
// always the first positional argument of the link call.
func orderPairDocs(a, b domain.Document) (string, string) {
	if a.Type == domain.TypeDRHP {
		return a.ID, b.ID
	}
	return b.ID, a.ID
}

func orderPair(doc domain.Document, relatedID string) (string, string) {
	if doc.Type == domain.TypeDRHP {
		return doc.ID, relatedID
	}
	return relatedID, doc.ID
}
