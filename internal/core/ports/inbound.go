package ports

import (
	"context"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

// CatalogView is the read side of the directory catalog: a consistent
// snapshot of root directories plus derived aggregates.
type CatalogView interface {
	Snapshot() ([]domain.Directory, map[string]domain.DirectoryAggregate)
	Aggregate(directoryID string) (domain.DirectoryAggregate, bool)
	DirectoryName(directoryID string) string
}

// CatalogRefresher is the write side: full refreshes plus the one sanctioned
// provisional patch, which must always be followed by a reconciling refresh.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
	RefreshDirectory(ctx context.Context, directoryID string) error
	BumpLastUpload(directoryID string, at time.Time)
}

// RegistryView exposes the per-directory item cache to collaborators that may
// only read already-loaded documents.
type RegistryView interface {
	CachedDocuments(directoryID string) ([]domain.Document, bool)
}

// RegistryRefresher re-pulls one directory's contents after a mutation.
type RegistryRefresher interface {
	Reload(ctx context.Context, directoryID string) error
}
