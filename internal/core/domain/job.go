package domain

import "time"

type JobPhase string

const (
	PhaseSelecting  JobPhase = "selecting"
	PhaseChecking   JobPhase = "checking"
	PhaseUploading  JobPhase = "uploading"
	PhaseProcessing JobPhase = "processing"
	PhaseCompleted  JobPhase = "completed"
	PhaseFailed     JobPhase = "failed"
	PhaseTimeout    JobPhase = "timeout"
	PhaseDuplicate  JobPhase = "duplicate"
)

// Terminal reports whether the phase ends a job. Timeout is terminal but is
// neither success nor failure: the document may still complete server-side.
func (p JobPhase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseTimeout, PhaseDuplicate:
		return true
	}
	return false
}

// UploadJob tracks one upload-through-processing attempt. It is transient,
// owned by the tracker, and never persisted.
type UploadJob struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	Namespace   string       `json:"namespace"`
	DirectoryID string       `json:"directory_id"`
	Type        DocumentType `json:"type"`
	Phase       JobPhase     `json:"phase"`
	DocumentID  string       `json:"document_id,omitempty"`
	PollCount   int          `json:"poll_count"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
}

// UploadStatusEvent is the optional push-channel completion signal. It is an
// optimization only; the poll loop must reach the same terminal state without it.
type UploadStatusEvent struct {
	JobID       string         `json:"job_id"`
	DocumentID  string         `json:"document_id,omitempty"`
	DirectoryID string         `json:"directory_id,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
}
