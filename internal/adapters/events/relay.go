package events

import (
	"context"
	"log/slog"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

// JobResolver is the tracker-side entry point for push-channel signals.
type JobResolver interface {
	HandlePushEvent(ctx context.Context, event domain.UploadStatusEvent)
}

// JobRelay adapts push-channel events into tracker resolutions. The api
// process subscribes with it so its in-flight jobs resolve on the push signal
// instead of waiting out the next poll tick.
func JobRelay(resolver JobResolver) func(context.Context, domain.UploadStatusEvent) error {
	return func(ctx context.Context, event domain.UploadStatusEvent) error {
		resolver.HandlePushEvent(ctx, event)
		return nil
	}
}

// CatalogRelay refreshes the read models when a terminal status arrives. The
// watcher process owns no jobs; its interest in the stream is keeping its
// catalog and registry views current.
func CatalogRelay(catalog ports.CatalogRefresher, registry ports.RegistryRefresher) func(context.Context, domain.UploadStatusEvent) error {
	return func(ctx context.Context, event domain.UploadStatusEvent) error {
		if !event.Status.Succeeded() && !event.Status.Failed() {
			return nil
		}

		if event.DirectoryID == "" {
			// Older producers omit the directory; fall back to a full sweep.
			return catalog.Refresh(ctx)
		}
		if err := registry.Reload(ctx, event.DirectoryID); err != nil {
			slog.Warn("registry reload from push event failed", "directory_id", event.DirectoryID, "error", err)
		}
		return catalog.RefreshDirectory(ctx, event.DirectoryID)
	}
}
