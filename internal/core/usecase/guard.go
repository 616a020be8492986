package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

// Guard decides, before and during upload, whether an incoming file is a
// duplicate of an existing filing. The local precheck is advisory and free;
// the remote check is authoritative but degrades optimistically: an
// unreachable duplicate endpoint must never block an upload indefinitely.
type Guard struct {
	docs                ports.DocumentStore
	similarityThreshold int
}

func NewGuard(docs ports.DocumentStore, similarityThreshold int) *Guard {
	if similarityThreshold <= 0 || similarityThreshold > 100 {
		similarityThreshold = 70
	}
	return &Guard{docs: docs, similarityThreshold: similarityThreshold}
}

// Precheck is the local-only verdict against already-loaded documents: a
// case-insensitive exact namespace hit short-circuits the upload with no
// network call. Near-miss names are reported as advisory candidates.
func (g *Guard) Precheck(filename string, existing []domain.Document) domain.DuplicateVerdict {
	namespace := domain.NamespaceFromFilename(filename)

	for i := range existing {
		if existing[i].SameNamespace(namespace) {
			match := existing[i]
			return domain.DuplicateVerdict{IsDuplicate: true, ExactMatch: &match}
		}
	}

	verdict := domain.DuplicateVerdict{}
	for i := range existing {
		percent := similarityPercent(namespace, existing[i].Namespace)
		if percent >= g.similarityThreshold {
			verdict.SimilarCandidates = append(verdict.SimilarCandidates, domain.SimilarCandidate{
				Document:          existing[i],
				SimilarityPercent: percent,
			})
		}
	}
	sort.SliceStable(verdict.SimilarCandidates, func(i, j int) bool {
		return verdict.SimilarCandidates[i].SimilarityPercent > verdict.SimilarCandidates[j].SimilarityPercent
	})
	return verdict
}

// RemoteCheck asks the store for documents the local cache has not seen yet.
// It runs even after a clean precheck, right before the upload request, to
// close the race window. A failed check is treated as "not a duplicate".
func (g *Guard) RemoteCheck(ctx context.Context, filename string) domain.DuplicateVerdict {
	namespace := domain.NamespaceFromFilename(filename)

	existing, err := g.docs.CheckDuplicate(ctx, namespace)
	if err != nil {
		slog.Warn("remote duplicate check failed, proceeding optimistically",
			"namespace", namespace,
			"error", err,
		)
		return domain.DuplicateVerdict{}
	}
	if existing == nil {
		return domain.DuplicateVerdict{}
	}
	return domain.DuplicateVerdict{IsDuplicate: true, ExactMatch: existing}
}

// SuggestType offers a filing type when the directory already holds exactly
// one of the pair. The caller still chooses explicitly; content is never
// inspected for classification.
func SuggestType(agg domain.DirectoryAggregate) (domain.DocumentType, bool) {
	switch {
	case agg.HasDrhp && !agg.HasRhp:
		return domain.TypeRHP, true
	case agg.HasRhp && !agg.HasDrhp:
		return domain.TypeDRHP, true
	default:
		return "", false
	}
}

func similarityPercent(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return (longest - distance) * 100 / longest
}
