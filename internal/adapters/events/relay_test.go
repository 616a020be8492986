package events

import (
	"context"
	"testing"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

type resolverSpy struct {
	events []domain.UploadStatusEvent
}

func (r *resolverSpy) HandlePushEvent(_ context.Context, event domain.UploadStatusEvent) {
	r.events = append(r.events, event)
}

type refresherSpy struct {
	fullRefreshes int
	directories   []string
	reloads       []string
}

func (r *refresherSpy) Refresh(context.Context) error {
	r.fullRefreshes++
	return nil
}

func (r *refresherSpy) RefreshDirectory(_ context.Context, directoryID string) error {
	r.directories = append(r.directories, directoryID)
	return nil
}

func (r *refresherSpy) BumpLastUpload(string, time.Time) {}

func (r *refresherSpy) Reload(_ context.Context, directoryID string) error {
	r.reloads = append(r.reloads, directoryID)
	return nil
}

func TestJobRelayForwardsEventsToTheResolver(t *testing.T) {
	resolver := &resolverSpy{}
	relay := JobRelay(resolver)

	event := domain.UploadStatusEvent{JobID: "job-1", Status: domain.StatusCompleted}
	if err := relay(context.Background(), event); err != nil {
		t.Fatalf("relay error = %v", err)
	}
	if len(resolver.events) != 1 || resolver.events[0].JobID != "job-1" {
		t.Fatalf("resolver did not receive the event: %+v", resolver.events)
	}
}

func TestCatalogRelayRefreshesTargetDirectoryOnTerminalStatus(t *testing.T) {
	spy := &refresherSpy{}
	relay := CatalogRelay(spy, spy)

	err := relay(context.Background(), domain.UploadStatusEvent{
		JobID:       "job-1",
		DirectoryID: "dir-1",
		Status:      domain.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("relay error = %v", err)
	}
	if len(spy.reloads) != 1 || spy.reloads[0] != "dir-1" {
		t.Fatalf("expected registry reload for dir-1, got %v", spy.reloads)
	}
	if len(spy.directories) != 1 || spy.directories[0] != "dir-1" {
		t.Fatalf("expected aggregate refresh for dir-1, got %v", spy.directories)
	}
	if spy.fullRefreshes != 0 {
		t.Fatalf("a targeted event must not trigger a full sweep")
	}
}

func TestCatalogRelayFallsBackToFullRefreshWithoutDirectory(t *testing.T) {
	spy := &refresherSpy{}
	relay := CatalogRelay(spy, spy)

	err := relay(context.Background(), domain.UploadStatusEvent{
		JobID:  "job-1",
		Status: domain.StatusFailed,
	})
	if err != nil {
		t.Fatalf("relay error = %v", err)
	}
	if spy.fullRefreshes != 1 {
		t.Fatalf("expected one full refresh, got %d", spy.fullRefreshes)
	}
}

func TestCatalogRelayIgnoresNonTerminalStatuses(t *testing.T) {
	spy := &refresherSpy{}
	relay := CatalogRelay(spy, spy)

	err := relay(context.Background(), domain.UploadStatusEvent{
		JobID:       "job-1",
		DirectoryID: "dir-1",
		Status:      domain.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("relay error = %v", err)
	}
	if spy.fullRefreshes != 0 || len(spy.directories) != 0 || len(spy.reloads) != 0 {
		t.Fatalf("non-terminal status must not touch the views: %+v", spy)
	}
}
