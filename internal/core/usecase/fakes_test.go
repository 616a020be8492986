package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

func strPtr(s string) *string { return &s }

type fakeDocumentStore struct {
	mu sync.Mutex

	docs    []domain.Document
	listErr error

	getByIDFn   func(id string) (*domain.Document, error)
	getCalls    int
	createFn    func(req domain.CreateDocumentRequest) (*domain.Document, error)
	createCalls int

	checkDupDoc *domain.Document
	checkDupErr error

	linkErr   error
	linkCalls [][2]string

	available    []domain.Document
	availableErr error
}

func (f *fakeDocumentStore) List(_ context.Context, directoryID *string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if directoryID == nil {
		out := make([]domain.Document, len(f.docs))
		copy(out, f.docs)
		return out, nil
	}
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.InDirectory(*directoryID) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	f.getCalls++
	fn := f.getByIDFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == id {
			copyDoc := f.docs[i]
			return &copyDoc, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (f *fakeDocumentStore) Create(_ context.Context, req domain.CreateDocumentRequest) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createFn != nil {
		return f.createFn(req)
	}
	doc := domain.Document{
		ID:          "doc-" + req.Namespace,
		Name:        req.Filename,
		Namespace:   req.Namespace,
		Type:        req.Type,
		DirectoryID: &req.DirectoryID,
		Status:      domain.StatusProcessing,
		UploadedAt:  time.Now().UTC(),
	}
	f.docs = append(f.docs, doc)
	return &doc, nil
}

func (f *fakeDocumentStore) Update(context.Context, string, domain.DocumentPatch) error { return nil }

func (f *fakeDocumentStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == id {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return nil
		}
	}
	return domain.ErrDocumentNotFound
}

func (f *fakeDocumentStore) CheckDuplicate(context.Context, string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkDupErr != nil {
		return nil, f.checkDupErr
	}
	return f.checkDupDoc, nil
}

func (f *fakeDocumentStore) LinkForCompare(_ context.Context, drhpID, rhpID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls = append(f.linkCalls, [2]string{drhpID, rhpID})
	if f.linkErr != nil {
		return f.linkErr
	}
	for i := range f.docs {
		switch f.docs[i].ID {
		case drhpID:
			f.docs[i].RelatedRhpID = rhpID
		case rhpID:
			f.docs[i].RelatedDrhpID = drhpID
		}
	}
	return nil
}

func (f *fakeDocumentStore) GetAvailableForCompare(context.Context, string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.availableErr != nil {
		return nil, f.availableErr
	}
	return f.available, nil
}

func (f *fakeDocumentStore) setStatus(id string, status domain.DocumentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == id {
			f.docs[i].Status = status
		}
	}
}

func (f *fakeDocumentStore) document(id string) (domain.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return domain.Document{}, false
}

type fakeDirectoryStore struct {
	roots   []domain.Directory
	listErr error
}

func (f *fakeDirectoryStore) ListChildren(_ context.Context, parentID *string, page, pageSize int) ([]ports.DirectoryEntry, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var matching []domain.Directory
	for _, dir := range f.roots {
		if parentID == nil && dir.ParentID == nil {
			matching = append(matching, dir)
		} else if parentID != nil && dir.ParentID != nil && *dir.ParentID == *parentID {
			matching = append(matching, dir)
		}
	}
	start := (page - 1) * pageSize
	if start > len(matching) {
		start = len(matching)
	}
	end := start + pageSize
	if end > len(matching) {
		end = len(matching)
	}
	entries := make([]ports.DirectoryEntry, 0, end-start)
	for _, dir := range matching[start:end] {
		entries = append(entries, ports.DirectoryEntry{Kind: "directory", Directory: dir})
	}
	return entries, len(matching), nil
}

func (f *fakeDirectoryStore) Create(_ context.Context, name string, parentID *string) (*domain.Directory, error) {
	dir := domain.Directory{ID: "dir-" + name, Name: name, ParentID: parentID, CreatedAt: time.Now().UTC()}
	f.roots = append(f.roots, dir)
	return &dir, nil
}

func (f *fakeDirectoryStore) Update(context.Context, string, domain.DirectoryPatch) error { return nil }
func (f *fakeDirectoryStore) Delete(context.Context, string) error                       { return nil }

func (f *fakeDirectoryStore) CheckDuplicate(_ context.Context, name string) (*domain.Directory, error) {
	for i := range f.roots {
		if f.roots[i].Name == name {
			return &f.roots[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDirectoryStore) Search(context.Context, string, int) ([]domain.DirectorySuggestion, error) {
	return nil, nil
}

type fakeSummaryStore struct {
	summaries []domain.Summary
	err       error
}

func (f *fakeSummaryStore) GetAll(context.Context) ([]domain.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summaries, nil
}
func (f *fakeSummaryStore) Update(context.Context, string, string) error { return nil }
func (f *fakeSummaryStore) Delete(context.Context, string) error         { return nil }

type fakeReportStore struct {
	reports []domain.Report
	err     error
}

func (f *fakeReportStore) GetAll(context.Context) ([]domain.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reports, nil
}
func (f *fakeReportStore) Update(context.Context, string, string) error { return nil }
func (f *fakeReportStore) Delete(context.Context, string) error         { return nil }

// fakeCatalog satisfies both the view and refresher sides with recorded calls.
type fakeCatalog struct {
	mu           sync.Mutex
	names        map[string]string
	aggregates   map[string]domain.DirectoryAggregate
	refreshCalls []string
	bumpCalls    []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		names:      map[string]string{},
		aggregates: map[string]domain.DirectoryAggregate{},
	}
}

func (f *fakeCatalog) Snapshot() ([]domain.Directory, map[string]domain.DirectoryAggregate) {
	return nil, f.aggregates
}

func (f *fakeCatalog) Aggregate(directoryID string) (domain.DirectoryAggregate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agg, ok := f.aggregates[directoryID]
	return agg, ok
}

func (f *fakeCatalog) DirectoryName(directoryID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names[directoryID]
}

func (f *fakeCatalog) Refresh(context.Context) error { return nil }

func (f *fakeCatalog) RefreshDirectory(_ context.Context, directoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls = append(f.refreshCalls, directoryID)
	return nil
}

func (f *fakeCatalog) BumpLastUpload(directoryID string, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumpCalls = append(f.bumpCalls, directoryID)
}

func (f *fakeCatalog) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshCalls)
}

type fakeRegistryRefresher struct {
	mu      sync.Mutex
	reloads []string
	cached  map[string][]domain.Document
}

func (f *fakeRegistryRefresher) Reload(_ context.Context, directoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, directoryID)
	return nil
}

func (f *fakeRegistryRefresher) CachedDocuments(directoryID string) ([]domain.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, ok := f.cached[directoryID]
	return docs, ok
}

func (f *fakeRegistryRefresher) reloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reloads)
}

type recordedEvents struct {
	mu               sync.Mutex
	duplicates       []domain.DuplicateVerdict
	resolved         []domain.UploadJob
	readyToCompare   []string
	manualSelections []string
}

func (r *recordedEvents) DuplicateFound(_ string, verdict domain.DuplicateVerdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicates = append(r.duplicates, verdict)
}

func (r *recordedEvents) JobResolved(job domain.UploadJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, job)
}

func (r *recordedEvents) ReadyToCompare(directoryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readyToCompare = append(r.readyToCompare, directoryID)
}

func (r *recordedEvents) ManualSelectionNeeded(documentID, _ string, _ []domain.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manualSelections = append(r.manualSelections, documentID)
}
