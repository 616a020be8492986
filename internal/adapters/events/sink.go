// Package events bridges engine signals to structured logs and the push
// channel so sidebars and other processes can follow job lifecycle without
// polling the API.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

const publishTimeout = 3 * time.Second

// Sink logs every signal and mirrors terminal job resolutions onto the push
// channel. Publishing is best effort; a failed publish never fails the job.
type Sink struct {
	push ports.PushChannel
}

func NewSink(push ports.PushChannel) *Sink {
	return &Sink{push: push}
}

func (s *Sink) DuplicateFound(jobID string, verdict domain.DuplicateVerdict) {
	attrs := []any{"job_id", jobID}
	if verdict.ExactMatch != nil {
		attrs = append(attrs, "existing_id", verdict.ExactMatch.ID)
	}
	slog.Info("duplicate_found", attrs...)
}

func (s *Sink) JobResolved(job domain.UploadJob) {
	slog.Info("job_resolved",
		"job_id", job.ID,
		"phase", string(job.Phase),
		"document_id", job.DocumentID,
		"poll_count", job.PollCount,
		"duration_ms", time.Since(job.StartedAt).Milliseconds(),
	)

	if s.push == nil {
		return
	}
	status, ok := statusForPhase(job.Phase)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := s.push.PublishUploadStatus(ctx, domain.UploadStatusEvent{
		JobID:       job.ID,
		DocumentID:  job.DocumentID,
		DirectoryID: job.DirectoryID,
		Status:      status,
		Error:       job.Error,
	})
	if err != nil {
		slog.Warn("publish_upload_status_failed", "job_id", job.ID, "error", err)
	}
}

func (s *Sink) ReadyToCompare(directoryID string) {
	slog.Info("ready_to_compare", "directory_id", directoryID)
}

func (s *Sink) ManualSelectionNeeded(documentID, directoryName string, candidates []domain.Document) {
	slog.Info("manual_selection_needed",
		"document_id", documentID,
		"directory_name", directoryName,
		"candidates", len(candidates),
	)
}

// statusForPhase maps terminal job phases to document statuses. Timeout and
// duplicate have no document-side status and are not broadcast.
func statusForPhase(phase domain.JobPhase) (domain.DocumentStatus, bool) {
	switch phase {
	case domain.PhaseCompleted:
		return domain.StatusCompleted, true
	case domain.PhaseFailed:
		return domain.StatusFailed, true
	default:
		return "", false
	}
}
