package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

type ItemType string

const (
	ItemDocument ItemType = "document"
	ItemSummary  ItemType = "summary"
	ItemReport   ItemType = "report"
)

// RegistryItem is one row of the unified, time-sorted directory view.
type RegistryItem struct {
	ItemType ItemType         `json:"item_type"`
	Document *domain.Document `json:"document,omitempty"`
	Summary  *domain.Summary  `json:"summary,omitempty"`
	Report   *domain.Report   `json:"report,omitempty"`
	SortedAt time.Time        `json:"sorted_at"`
}

// DirectoryContents is everything the registry knows about one open directory.
type DirectoryContents struct {
	DirectoryID string            `json:"directory_id"`
	Documents   []domain.Document `json:"documents"`
	Summaries   []domain.Summary  `json:"summaries"`
	Reports     []domain.Report   `json:"reports"`
}

// Registry loads and caches the contents of open directories. Summaries and
// reports come from unscoped endpoints and are filtered client-side; rapid
// directory switches are reconciled with a per-directory generation token so
// a stale load never replaces a fresher one.
type Registry struct {
	docs      ports.DocumentStore
	summaries ports.SummaryStore
	reports   ports.ReportStore

	mu          sync.Mutex
	generations map[string]uint64
	applied     map[string]uint64
	cache       map[string]DirectoryContents
}

func NewRegistry(docs ports.DocumentStore, summaries ports.SummaryStore, reports ports.ReportStore) *Registry {
	return &Registry{
		docs:        docs,
		summaries:   summaries,
		reports:     reports,
		generations: map[string]uint64{},
		applied:     map[string]uint64{},
		cache:       map[string]DirectoryContents{},
	}
}

// LoadDirectory fetches documents, summaries and reports concurrently and
// returns the directory-scoped view. The result is cached unless a newer load
// for the same directory resolved first.
func (r *Registry) LoadDirectory(ctx context.Context, directoryID string) (*DirectoryContents, error) {
	r.mu.Lock()
	r.generations[directoryID]++
	gen := r.generations[directoryID]
	r.mu.Unlock()

	var (
		documents []domain.Document
		summaries []domain.Summary
		reports   []domain.Report
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		documents, err = r.docs.List(groupCtx, &directoryID)
		return err
	})
	group.Go(func() error {
		var err error
		summaries, err = r.summaries.GetAll(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		reports, err = r.reports.GetAll(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("load directory %s: %w", directoryID, err)
	}

	contents := DirectoryContents{
		DirectoryID: directoryID,
		Documents:   documents,
		Summaries:   filterSummaries(summaries, documents),
		Reports:     filterReports(reports, documents),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen >= r.applied[directoryID] {
		r.applied[directoryID] = gen
		r.cache[directoryID] = contents
	}
	return &contents, nil
}

// Reload re-pulls a directory after a mutation, replacing the cached view.
func (r *Registry) Reload(ctx context.Context, directoryID string) error {
	_, err := r.LoadDirectory(ctx, directoryID)
	return err
}

// CachedDocuments returns the already-loaded documents for a directory, if
// the directory has been opened.
func (r *Registry) CachedDocuments(directoryID string) ([]domain.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contents, ok := r.cache[directoryID]
	if !ok {
		return nil, false
	}
	docs := make([]domain.Document, len(contents.Documents))
	copy(docs, contents.Documents)
	return docs, true
}

// Forget drops a directory from the cache, e.g. after its deletion.
func (r *Registry) Forget(directoryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, directoryID)
	delete(r.applied, directoryID)
	delete(r.generations, directoryID)
}

func filterSummaries(summaries []domain.Summary, docs []domain.Document) []domain.Summary {
	ids := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		ids[doc.ID] = struct{}{}
	}
	out := make([]domain.Summary, 0, len(summaries))
	for _, summary := range summaries {
		if _, ok := ids[summary.DocumentID]; ok {
			out = append(out, summary)
		}
	}
	return out
}

func filterReports(reports []domain.Report, docs []domain.Document) []domain.Report {
	out := make([]domain.Report, 0, len(reports))
	for _, report := range reports {
		if reportBelongsToDirectory(report, docs) {
			out = append(out, report)
		}
	}
	return out
}

// reportBelongsToDirectory implements the association rule: the report must
// match a DRHP in the directory whose related RHP also lives there, keyed by
// either the (namespace, rhpNamespace) pair or the (drhpId, rhpId) pair.
// Reports may carry either key depending on when they were generated.
func reportBelongsToDirectory(report domain.Report, docs []domain.Document) bool {
	byID := make(map[string]domain.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	for _, doc := range docs {
		if doc.Type != domain.TypeDRHP || doc.RelatedRhpID == "" {
			continue
		}
		rhp, found := byID[doc.RelatedRhpID]
		if !found || rhp.Type != domain.TypeRHP {
			continue
		}
		if report.DrhpNamespace != "" && report.RhpNamespace != "" &&
			doc.SameNamespace(report.DrhpNamespace) && rhp.SameNamespace(report.RhpNamespace) {
			return true
		}
		if report.DrhpID != "" && report.RhpID != "" &&
			report.DrhpID == doc.ID && report.RhpID == rhp.ID {
			return true
		}
	}
	return false
}

// UnifiedItems merges documents, summaries and reports into one list sorted
// by updatedAt (falling back to uploadedAt/createdAt) descending. The sort is
// stable: ties keep arrival order.
func (c DirectoryContents) UnifiedItems() []RegistryItem {
	items := make([]RegistryItem, 0, len(c.Documents)+len(c.Summaries)+len(c.Reports))
	for i := range c.Documents {
		doc := c.Documents[i]
		at := doc.UpdatedAt
		if at.IsZero() {
			at = doc.UploadedAt
		}
		items = append(items, RegistryItem{ItemType: ItemDocument, Document: &doc, SortedAt: at})
	}
	for i := range c.Summaries {
		summary := c.Summaries[i]
		at := summary.UpdatedAt
		if at.IsZero() {
			at = summary.CreatedAt
		}
		items = append(items, RegistryItem{ItemType: ItemSummary, Summary: &summary, SortedAt: at})
	}
	for i := range c.Reports {
		report := c.Reports[i]
		at := report.UpdatedAt
		if at.IsZero() {
			at = report.CreatedAt
		}
		items = append(items, RegistryItem{ItemType: ItemReport, Report: &report, SortedAt: at})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortedAt.After(items[j].SortedAt)
	})
	return items
}
