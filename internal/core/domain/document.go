package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type DocumentType string

const (
	TypeDRHP DocumentType = "DRHP"
	TypeRHP  DocumentType = "RHP"
)

// Opposite returns the complementary filing type of a comparison pair.
func (t DocumentType) Opposite() DocumentType {
	if t == TypeDRHP {
		return TypeRHP
	}
	return TypeDRHP
}

func ParseDocumentType(raw string) (DocumentType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(TypeDRHP):
		return TypeDRHP, true
	case string(TypeRHP):
		return TypeRHP, true
	default:
		return "", false
	}
}

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
	StatusError      DocumentStatus = "error"
)

// Succeeded reports whether the status is a terminal success.
func (s DocumentStatus) Succeeded() bool {
	return s == StatusCompleted || s == StatusReady
}

// Failed reports whether the status is a terminal failure.
func (s DocumentStatus) Failed() bool {
	return s == StatusFailed || s == StatusError
}

type Document struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Namespace     string         `json:"namespace"`
	Type          DocumentType   `json:"type"`
	DirectoryID   *string        `json:"directory_id,omitempty"`
	RelatedDrhpID string         `json:"related_drhp_id,omitempty"`
	RelatedRhpID  string         `json:"related_rhp_id,omitempty"`
	Status        DocumentStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	UploadedAt    time.Time      `json:"uploaded_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RelatedID returns the counterpart id recorded on this document, if any.
func (d Document) RelatedID() string {
	if d.Type == TypeDRHP {
		return d.RelatedRhpID
	}
	return d.RelatedDrhpID
}

// InDirectory reports whether the document belongs to the given directory.
func (d Document) InDirectory(directoryID string) bool {
	return d.DirectoryID != nil && *d.DirectoryID == directoryID
}

// SameNamespace compares namespaces case-insensitively; namespace is the
// identity key for duplicate detection.
func (d Document) SameNamespace(namespace string) bool {
	return strings.EqualFold(d.Namespace, namespace)
}

// NamespaceFromFilename derives the stable identity key for a filing from its
// original filename. Display name may be edited later; the namespace never is.
func NamespaceFromFilename(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.pdf"
	}
	return base
}

type SimilarCandidate struct {
	Document          Document `json:"document"`
	SimilarityPercent int      `json:"similarity_percent"`
}

// DuplicateVerdict is computed fresh per check and never cached: directory
// contents can change between two checks.
type DuplicateVerdict struct {
	IsDuplicate       bool               `json:"is_duplicate"`
	ExactMatch        *Document          `json:"exact_match,omitempty"`
	SimilarCandidates []SimilarCandidate `json:"similar_candidates,omitempty"`
}

type CreateDocumentRequest struct {
	Filename    string
	Namespace   string
	Type        DocumentType
	DirectoryID string
	Body        FileContent
}

// FileContent is what an uploaded filing body must support: sequential reads
// for the store, random access for the pre-upload PDF sniff.
type FileContent interface {
	Read(p []byte) (int, error)
	ReadAt(p []byte, off int64) (int, error)
	Seek(offset int64, whence int) (int64, error)
}

type DocumentPatch struct {
	Name        *string
	DirectoryID *string
}

type Summary struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Report is a generated DRHP/RHP comparison artifact. Depending on when it was
// generated it is keyed by document ids or by namespaces, so consumers must
// try both.
type Report struct {
	ID            string    `json:"id"`
	DrhpID        string    `json:"drhp_id,omitempty"`
	RhpID         string    `json:"rhp_id,omitempty"`
	DrhpNamespace string    `json:"drhp_namespace,omitempty"`
	RhpNamespace  string    `json:"rhp_namespace,omitempty"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
