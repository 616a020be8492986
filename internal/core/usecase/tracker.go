package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

type TrackerConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	// JobRetention is how long a resolved job stays queryable by id before it
	// is dropped from the tracker. Handles keep working after the drop.
	JobRetention time.Duration
}

func (c TrackerConfig) normalize() TrackerConfig {
	out := c
	if out.PollInterval <= 0 {
		out.PollInterval = 5 * time.Second
	}
	if out.PollMaxAttempts <= 0 {
		out.PollMaxAttempts = 120
	}
	if out.JobRetention <= 0 {
		out.JobRetention = 5 * time.Minute
	}
	return out
}

// JobMetrics observes job lifecycle for instrumentation.
type JobMetrics interface {
	Started()
	Finished(outcome domain.JobPhase, polls int, duration time.Duration)
}

type nopJobMetrics struct{}

func (nopJobMetrics) Started()                                     {}
func (nopJobMetrics) Finished(domain.JobPhase, int, time.Duration) {}

type UploadRequest struct {
	Filename    string
	DirectoryID string
	Type        domain.DocumentType
	Size        int64
	Body        domain.FileContent
}

type trackedJob struct {
	job      domain.UploadJob
	verdict  domain.DuplicateVerdict
	resolved bool
	done     chan struct{}
}

// JobHandle lets a caller observe one job without reaching into tracker state.
// It holds the job record directly, so reads keep working after the tracker
// evicts the resolved job from its index.
type JobHandle struct {
	tracker *Tracker
	tj      *trackedJob
	done    <-chan struct{}
}

// Done is closed when the job reaches a terminal phase.
func (h *JobHandle) Done() <-chan struct{} { return h.done }

// Job returns a snapshot of the job's current state.
func (h *JobHandle) Job() domain.UploadJob {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()
	return h.tj.job
}

// Verdict returns the duplicate verdict, meaningful when the phase is duplicate.
func (h *JobHandle) Verdict() domain.DuplicateVerdict {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()
	return h.tj.verdict
}

// Tracker drives a file from "selected" through uploading and processing to a
// terminal phase. Poll loops are deliberately detached from request contexts:
// navigating away must not abort them, because their terminal side effects
// feed views other than the one that started the upload.
type Tracker struct {
	cfg   TrackerConfig
	docs  ports.DocumentStore
	guard *Guard
	catalog interface {
		ports.CatalogView
		ports.CatalogRefresher
	}
	registry  ports.RegistryRefresher
	inspector ports.FileInspector
	events    ports.EventSink
	metrics   JobMetrics

	mu       sync.Mutex
	inflight bool
	jobs     map[string]*trackedJob
}

func NewTracker(
	cfg TrackerConfig,
	docs ports.DocumentStore,
	guard *Guard,
	catalog interface {
		ports.CatalogView
		ports.CatalogRefresher
	},
	registry ports.RegistryRefresher,
	inspector ports.FileInspector,
	events ports.EventSink,
	metrics JobMetrics,
) *Tracker {
	if events == nil {
		events = ports.NopEventSink{}
	}
	if metrics == nil {
		metrics = nopJobMetrics{}
	}
	return &Tracker{
		cfg:       cfg.normalize(),
		docs:      docs,
		guard:     guard,
		catalog:   catalog,
		registry:  registry,
		inspector: inspector,
		events:    events,
		metrics:   metrics,
		jobs:      map[string]*trackedJob{},
	}
}

// IsUploading reports whether a job is in flight; the upload affordance is a
// single slot and stays disabled while this is true.
func (t *Tracker) IsUploading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight
}

// Upload runs the checking and uploading phases synchronously, then hands the
// processing phase to a background poll loop and returns immediately.
func (t *Tracker) Upload(ctx context.Context, req UploadRequest) (*JobHandle, error) {
	if req.DirectoryID == "" {
		// No default directory; the caller must prompt for one.
		return nil, domain.WrapError(domain.ErrDirectoryRequired, "upload", errors.New("no directory resolved"))
	}
	if req.Type != domain.TypeDRHP && req.Type != domain.TypeRHP {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("unknown document type %q", req.Type))
	}

	t.mu.Lock()
	if t.inflight {
		t.mu.Unlock()
		return nil, domain.WrapError(domain.ErrUploadInFlight, "upload", errors.New("another upload is running"))
	}
	t.inflight = true
	tj := &trackedJob{
		job: domain.UploadJob{
			ID:          uuid.NewString(),
			Filename:    req.Filename,
			Namespace:   domain.NamespaceFromFilename(req.Filename),
			DirectoryID: req.DirectoryID,
			Type:        req.Type,
			Phase:       domain.PhaseChecking,
			StartedAt:   time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
	t.jobs[tj.job.ID] = tj
	t.mu.Unlock()

	t.metrics.Started()
	handle := &JobHandle{tracker: t, tj: tj, done: tj.done}

	existing, err := t.docs.List(ctx, &req.DirectoryID)
	if err != nil {
		// The local precheck is advisory; the remote check and the create
		// call's conflict answer still guard correctness.
		slog.Warn("precheck list failed, continuing", "directory_id", req.DirectoryID, "error", err)
		existing = nil
	}
	if verdict := t.guard.Precheck(req.Filename, existing); verdict.IsDuplicate {
		t.finishDuplicate(tj, verdict)
		return handle, nil
	}
	if verdict := t.guard.RemoteCheck(ctx, req.Filename); verdict.IsDuplicate {
		t.finishDuplicate(tj, verdict)
		return handle, nil
	}

	if t.inspector != nil {
		if err := t.inspector.Inspect(req.Filename, req.Body, req.Size); err != nil {
			wrapped := domain.WrapError(domain.ErrInvalidInput, "inspect upload", err)
			t.resolve(tj, domain.PhaseFailed, wrapped.Error(), false)
			return handle, wrapped
		}
		if _, err := req.Body.Seek(0, io.SeekStart); err != nil {
			wrapped := fmt.Errorf("rewind upload body: %w", err)
			t.resolve(tj, domain.PhaseFailed, wrapped.Error(), false)
			return handle, wrapped
		}
	}

	t.setPhase(tj, domain.PhaseUploading)
	doc, err := t.docs.Create(ctx, domain.CreateDocumentRequest{
		Filename:    req.Filename,
		Namespace:   tj.job.Namespace,
		Type:        req.Type,
		DirectoryID: req.DirectoryID,
		Body:        req.Body,
	})
	if err != nil {
		if conflict, ok := domain.AsDuplicateConflict(err); ok {
			// Second-writer race: same treatment as a precheck hit.
			t.finishDuplicate(tj, domain.DuplicateVerdict{IsDuplicate: true, ExactMatch: &conflict.Existing})
			return handle, nil
		}
		wrapped := fmt.Errorf("create document: %w", err)
		t.resolve(tj, domain.PhaseFailed, wrapped.Error(), false)
		return handle, wrapped
	}

	t.mu.Lock()
	tj.job.DocumentID = doc.ID
	t.mu.Unlock()

	t.catalog.BumpLastUpload(req.DirectoryID, time.Now().UTC())
	t.setPhase(tj, domain.PhaseProcessing)

	go t.poll(tj)
	return handle, nil
}

// HandlePushEvent applies a socket completion signal. It shares the terminal
// path with the poll loop; whichever arrives first wins and the other becomes
// a no-op.
func (t *Tracker) HandlePushEvent(_ context.Context, event domain.UploadStatusEvent) {
	t.mu.Lock()
	tj, known := t.jobs[event.JobID]
	t.mu.Unlock()
	if !known {
		return
	}

	switch {
	case event.Status.Succeeded():
		t.resolve(tj, domain.PhaseCompleted, "", true)
	case event.Status.Failed():
		t.resolve(tj, domain.PhaseFailed, event.Error, true)
	}
}

// poll re-fetches the document on a fixed interval, bounded by the attempt
// budget. Transient fetch errors are retried, never treated as failure.
func (t *Tracker) poll(tj *trackedJob) {
	ctx := context.Background()
	timer := time.NewTimer(t.cfg.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= t.cfg.PollMaxAttempts; attempt++ {
		select {
		case <-timer.C:
		case <-tj.done:
			// The push channel resolved the job first.
			return
		}
		timer.Reset(t.cfg.PollInterval)

		t.mu.Lock()
		if tj.resolved {
			t.mu.Unlock()
			return
		}
		tj.job.PollCount = attempt
		documentID := tj.job.DocumentID
		t.mu.Unlock()

		doc, err := t.docs.GetByID(ctx, documentID)
		if err != nil {
			continue
		}
		switch {
		case doc.Status.Succeeded():
			t.resolve(tj, domain.PhaseCompleted, "", true)
			return
		case doc.Status.Failed():
			t.resolve(tj, domain.PhaseFailed, doc.Error, true)
			return
		}
	}

	// Budget exhausted: a distinct outcome, neither success nor failure.
	// The refresh still runs so the user can discover the document later.
	t.resolve(tj, domain.PhaseTimeout, "", true)
}

func (t *Tracker) setPhase(tj *trackedJob, phase domain.JobPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tj.job.Phase = phase
}

func (t *Tracker) finishDuplicate(tj *trackedJob, verdict domain.DuplicateVerdict) {
	t.mu.Lock()
	if tj.resolved {
		t.mu.Unlock()
		return
	}
	tj.resolved = true
	tj.job.Phase = domain.PhaseDuplicate
	tj.verdict = verdict
	job := tj.job
	t.inflight = false
	t.mu.Unlock()

	t.events.DuplicateFound(job.ID, verdict)
	t.metrics.Finished(domain.PhaseDuplicate, job.PollCount, time.Since(job.StartedAt))
	close(tj.done)
	t.evictLater(job.ID)
}

// resolve applies terminal side effects exactly once, against the job's own
// captured directory id, never the currently displayed directory.
func (t *Tracker) resolve(tj *trackedJob, phase domain.JobPhase, errMessage string, refresh bool) {
	t.mu.Lock()
	if tj.resolved {
		t.mu.Unlock()
		return
	}
	tj.resolved = true
	tj.job.Phase = phase
	tj.job.Error = errMessage
	job := tj.job
	t.inflight = false
	t.mu.Unlock()

	if refresh {
		ctx := context.Background()
		if err := t.registry.Reload(ctx, job.DirectoryID); err != nil {
			slog.Warn("registry reload after job failed", "job_id", job.ID, "error", err)
		}
		if err := t.catalog.RefreshDirectory(ctx, job.DirectoryID); err != nil {
			slog.Warn("aggregate refresh after job failed", "job_id", job.ID, "error", err)
		}
		if phase == domain.PhaseCompleted {
			if agg, ok := t.catalog.Aggregate(job.DirectoryID); ok && agg.HasDrhp && agg.HasRhp {
				t.events.ReadyToCompare(job.DirectoryID)
			}
		}
	}

	t.events.JobResolved(job)
	t.metrics.Finished(phase, job.PollCount, time.Since(job.StartedAt))
	close(tj.done)
	t.evictLater(job.ID)
}

// evictLater drops a terminal job from the index after the retention window.
// Push events for the id become no-ops and handles read their own record.
func (t *Tracker) evictLater(jobID string) {
	time.AfterFunc(t.cfg.JobRetention, func() {
		t.mu.Lock()
		delete(t.jobs, jobID)
		t.mu.Unlock()
	})
}
