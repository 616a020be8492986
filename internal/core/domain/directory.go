package domain

import (
	"strings"
	"time"
)

type Directory struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	ParentID           *string    `json:"parent_id,omitempty"`
	IsShared           bool       `json:"is_shared"`
	LastDocumentUpload *time.Time `json:"last_document_upload,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsRoot reports whether the directory sits at the top of the tree.
func (d Directory) IsRoot() bool {
	return d.ParentID == nil
}

// MostRecentActivity is the max of last upload, update and creation times.
// Nil means none of the three is set, which excludes the directory from
// date-filtered views but never from alphabetical ones.
func (d Directory) MostRecentActivity() *time.Time {
	var best time.Time
	if d.LastDocumentUpload != nil && d.LastDocumentUpload.After(best) {
		best = *d.LastDocumentUpload
	}
	if d.UpdatedAt.After(best) {
		best = d.UpdatedAt
	}
	if d.CreatedAt.After(best) {
		best = d.CreatedAt
	}
	if best.IsZero() {
		return nil
	}
	return &best
}

type DirectoryPatch struct {
	Name *string
}

type DirectorySuggestion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DirectoryAggregate is derived from the directory's document/summary/report
// lists. It is always rebuilt from source lists, never patched in place.
type DirectoryAggregate struct {
	HasDrhp            bool       `json:"has_drhp"`
	HasRhp             bool       `json:"has_rhp"`
	IsLinked           bool       `json:"is_linked"`
	ReportCount        int        `json:"report_count"`
	SummaryCount       int        `json:"summary_count"`
	MostRecentActivity *time.Time `json:"most_recent_activity,omitempty"`
}

// LinkedPair finds a DRHP/RHP pair in docs whose related ids point at each
// other. One-sided references do not count as linked.
func LinkedPair(docs []Document) (drhp, rhp *Document, ok bool) {
	byID := make(map[string]*Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}
	for i := range docs {
		d := &docs[i]
		if d.Type != TypeDRHP || d.RelatedRhpID == "" {
			continue
		}
		counterpart, found := byID[d.RelatedRhpID]
		if !found || counterpart.Type != TypeRHP {
			continue
		}
		if counterpart.RelatedDrhpID == d.ID {
			return d, counterpart, true
		}
	}
	return nil, nil, false
}

// MatchesName reports a case-insensitive substring match on the directory name.
func (d Directory) MatchesName(query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Name), strings.ToLower(query))
}
