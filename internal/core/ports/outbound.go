package ports

import (
	"context"
	"io"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

// DocumentStore is the remote CRUD surface for filings. Create reports a
// second-writer race as a *domain.DuplicateConflictError carrying the
// existing document.
type DocumentStore interface {
	List(ctx context.Context, directoryID *string) ([]domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Create(ctx context.Context, req domain.CreateDocumentRequest) (*domain.Document, error)
	Update(ctx context.Context, id string, patch domain.DocumentPatch) error
	Delete(ctx context.Context, id string) error
	CheckDuplicate(ctx context.Context, namespace string) (*domain.Document, error)
	LinkForCompare(ctx context.Context, drhpID, rhpID string) error
	GetAvailableForCompare(ctx context.Context, id string) ([]domain.Document, error)
}

// DirectoryEntry is one row of a paginated children listing.
type DirectoryEntry struct {
	Kind      string
	Directory domain.Directory
}

// DirectoryStore reads and mutates the directory tree. ListChildren returns
// the page plus the total row count so callers can paginate transparently.
type DirectoryStore interface {
	ListChildren(ctx context.Context, parentID *string, page, pageSize int) ([]DirectoryEntry, int, error)
	Create(ctx context.Context, name string, parentID *string) (*domain.Directory, error)
	Update(ctx context.Context, id string, patch domain.DirectoryPatch) error
	Delete(ctx context.Context, id string) error
	CheckDuplicate(ctx context.Context, name string) (*domain.Directory, error)
	Search(ctx context.Context, query string, limit int) ([]domain.DirectorySuggestion, error)
}

// SummaryStore exposes summaries globally; directory scoping is the
// registry's responsibility.
type SummaryStore interface {
	GetAll(ctx context.Context) ([]domain.Summary, error)
	Update(ctx context.Context, id string, title string) error
	Delete(ctx context.Context, id string) error
}

// ReportStore exposes comparison reports globally, unscoped.
type ReportStore interface {
	GetAll(ctx context.Context) ([]domain.Report, error)
	Update(ctx context.Context, id string, title string) error
	Delete(ctx context.Context, id string) error
}

// BlobStorage stores raw filing bodies. Remove is idempotent: deleting a key
// that was never saved is not an error.
type BlobStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// PushChannel is the best-effort upload_status socket. Subscribers get the
// same terminal signal the poll loop would eventually produce.
type PushChannel interface {
	PublishUploadStatus(ctx context.Context, event domain.UploadStatusEvent) error
	SubscribeUploadStatus(ctx context.Context, handler func(context.Context, domain.UploadStatusEvent) error) error
}

// FileInspector validates an upload body before any network write.
type FileInspector interface {
	Inspect(filename string, content domain.FileContent, size int64) error
}

// EventSink receives engine signals that a UI or sidebar would subscribe to.
// It replaces ad-hoc global events with an explicit, typed interface.
type EventSink interface {
	DuplicateFound(jobID string, verdict domain.DuplicateVerdict)
	JobResolved(job domain.UploadJob)
	ReadyToCompare(directoryID string)
	ManualSelectionNeeded(documentID, directoryName string, candidates []domain.Document)
}

// NopEventSink discards all signals.
type NopEventSink struct{}

func (NopEventSink) DuplicateFound(string, domain.DuplicateVerdict)          {}
func (NopEventSink) JobResolved(domain.UploadJob)                            {}
func (NopEventSink) ReadyToCompare(string)                                   {}
func (NopEventSink) ManualSelectionNeeded(string, string, []domain.Document) {}
