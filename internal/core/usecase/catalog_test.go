package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

func day(offset int) time.Time {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func TestListRootDirectoriesPaginatesTransparently(t *testing.T) {
	store := &fakeDirectoryStore{}
	for i := 0; i < 25; i++ {
		store.roots = append(store.roots, domain.Directory{ID: string(rune('a' + i)), Name: "dir"})
	}
	catalog := NewCatalog(store, &fakeDocumentStore{}, &fakeSummaryStore{}, &fakeReportStore{}, 10)

	dirs, err := catalog.ListRootDirectories(context.Background())
	if err != nil {
		t.Fatalf("ListRootDirectories() error = %v", err)
	}
	if len(dirs) != 25 {
		t.Fatalf("expected 25 directories across 3 pages, got %d", len(dirs))
	}
}

func TestComputeAggregatesTypePresence(t *testing.T) {
	dir := domain.Directory{ID: "d1", Name: "Acme Corp"}
	docs := []domain.Document{
		{ID: "doc1", Type: domain.TypeDRHP, DirectoryID: strPtr("d1"), Namespace: "acme-drhp.pdf"},
		{ID: "doc2", Type: domain.TypeRHP, DirectoryID: strPtr("d2"), Namespace: "other-rhp.pdf"},
	}

	aggs := ComputeAggregates([]domain.Directory{dir}, docs, nil, nil)
	agg := aggs["d1"]
	if !agg.HasDrhp || agg.HasRhp {
		t.Fatalf("expected hasDrhp only, got %+v", agg)
	}

	// Moving the RHP into d1 must flip hasRhp on the next recomputation.
	docs[1].DirectoryID = strPtr("d1")
	agg = ComputeAggregates([]domain.Directory{dir}, docs, nil, nil)["d1"]
	if !agg.HasDrhp || !agg.HasRhp {
		t.Fatalf("expected both types after move, got %+v", agg)
	}

	// Deleting both must clear both flags.
	agg = ComputeAggregates([]domain.Directory{dir}, nil, nil, nil)["d1"]
	if agg.HasDrhp || agg.HasRhp {
		t.Fatalf("expected no types after delete, got %+v", agg)
	}
}

func TestComputeAggregatesLinkSymmetry(t *testing.T) {
	dir := domain.Directory{ID: "d1"}
	oneSided := []domain.Document{
		{ID: "drhp", Type: domain.TypeDRHP, DirectoryID: strPtr("d1"), RelatedRhpID: "rhp"},
		{ID: "rhp", Type: domain.TypeRHP, DirectoryID: strPtr("d1")},
	}
	if agg := ComputeAggregates([]domain.Directory{dir}, oneSided, nil, nil)["d1"]; agg.IsLinked {
		t.Fatalf("one-sided reference must not count as linked")
	}

	oneSided[1].RelatedDrhpID = "drhp"
	if agg := ComputeAggregates([]domain.Directory{dir}, oneSided, nil, nil)["d1"]; !agg.IsLinked {
		t.Fatalf("reciprocal pair must count as linked")
	}
}

func TestMostRecentActivityIsMaxOfSourceDates(t *testing.T) {
	upload := day(-1)
	dir := domain.Directory{CreatedAt: day(-10), UpdatedAt: day(-5), LastDocumentUpload: &upload}
	if at := dir.MostRecentActivity(); at == nil || !at.Equal(upload) {
		t.Fatalf("expected last upload to win, got %v", at)
	}

	dir = domain.Directory{CreatedAt: day(-10), UpdatedAt: day(-2)}
	if at := dir.MostRecentActivity(); at == nil || !at.Equal(day(-2)) {
		t.Fatalf("expected updatedAt to win, got %v", at)
	}

	if at := (domain.Directory{}).MostRecentActivity(); at != nil {
		t.Fatalf("expected nil activity when no date is set, got %v", at)
	}
}

func TestSortDirectoriesLastModifiedStableDescending(t *testing.T) {
	dirs := []domain.Directory{
		{ID: "old", Name: "old", UpdatedAt: day(-9)},
		{ID: "none-a", Name: "none-a"},
		{ID: "new", Name: "new", UpdatedAt: day(0)},
		{ID: "none-b", Name: "none-b"},
		{ID: "mid", Name: "mid", UpdatedAt: day(-4)},
	}

	sorted := SortDirectories(dirs, SortLastModified)
	wantOrder := []string{"new", "mid", "old", "none-a", "none-b"}
	for i, want := range wantOrder {
		if sorted[i].ID != want {
			t.Fatalf("position %d: want %s, got %s (full: %v)", i, want, sorted[i].ID, ids(sorted))
		}
	}
}

func TestSortDirectoriesAlphabeticalIgnoresCase(t *testing.T) {
	dirs := []domain.Directory{
		{ID: "1", Name: "beta"},
		{ID: "2", Name: "Alpha"},
		{ID: "3", Name: "ALPINE"},
	}
	sorted := SortDirectories(dirs, SortAlphabetical)
	if sorted[0].Name != "Alpha" || sorted[1].Name != "ALPINE" || sorted[2].Name != "beta" {
		t.Fatalf("unexpected alphabetical order: %v", names(sorted))
	}
}

func TestFilterDirectoriesNameAndBucket(t *testing.T) {
	now := day(0)
	recent := day(-2)
	stale := day(-45)
	dirs := []domain.Directory{
		{ID: "recent", Name: "Acme Corp", UpdatedAt: recent},
		{ID: "stale", Name: "Acme Holdings", UpdatedAt: stale},
		{ID: "shared", Name: "Acme Shared", IsShared: true, UpdatedAt: stale},
		{ID: "other", Name: "Globex", UpdatedAt: recent},
		{ID: "undated", Name: "Acme Undated"},
	}

	got := FilterDirectories(dirs, CatalogFilter{NameQuery: "acme", Bucket: BucketLast7}, now)
	wantIDs := map[string]bool{"recent": true, "shared": true}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d directories, got %v", len(wantIDs), ids(got))
	}
	for _, dir := range got {
		if !wantIDs[dir.ID] {
			t.Fatalf("unexpected directory %s in filtered view", dir.ID)
		}
	}

	// Without a bucket, undated directories are included.
	got = FilterDirectories(dirs, CatalogFilter{NameQuery: "acme"}, now)
	if len(got) != 4 {
		t.Fatalf("expected 4 acme directories unfiltered by time, got %v", ids(got))
	}
}

func TestFilterDirectoriesTodayBucketStripsTimeOfDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)
	lateYesterday := time.Date(2026, 3, 9, 23, 45, 0, 0, time.UTC)
	earlierToday := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)

	dirs := []domain.Directory{
		{ID: "yesterday", Name: "a", UpdatedAt: lateYesterday},
		{ID: "today", Name: "b", UpdatedAt: earlierToday},
	}
	got := FilterDirectories(dirs, CatalogFilter{Bucket: BucketToday}, now)
	if len(got) != 1 || got[0].ID != "today" {
		t.Fatalf("expected only today's directory, got %v", ids(got))
	}
}

func TestRefreshBuildsSnapshotAndAggregates(t *testing.T) {
	dirStore := &fakeDirectoryStore{roots: []domain.Directory{{ID: "d1", Name: "Acme", UpdatedAt: day(-1)}}}
	docStore := &fakeDocumentStore{docs: []domain.Document{
		{ID: "drhp", Type: domain.TypeDRHP, DirectoryID: strPtr("d1"), Namespace: "acme-drhp.pdf"},
	}}
	summaryStore := &fakeSummaryStore{summaries: []domain.Summary{{ID: "s1", DocumentID: "drhp"}}}
	catalog := NewCatalog(dirStore, docStore, summaryStore, &fakeReportStore{}, 0)

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	dirs, aggs := catalog.Snapshot()
	if len(dirs) != 1 {
		t.Fatalf("expected 1 directory in snapshot, got %d", len(dirs))
	}
	agg := aggs["d1"]
	if !agg.HasDrhp || agg.HasRhp || agg.SummaryCount != 1 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
}

func TestBumpLastUploadIsProvisionalUntilRefresh(t *testing.T) {
	dirStore := &fakeDirectoryStore{roots: []domain.Directory{{ID: "d1", Name: "Acme", UpdatedAt: day(-30)}}}
	catalog := NewCatalog(dirStore, &fakeDocumentStore{}, &fakeSummaryStore{}, &fakeReportStore{}, 0)
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	bump := day(0)
	catalog.BumpLastUpload("d1", bump)

	_, aggs := catalog.Snapshot()
	if at := aggs["d1"].MostRecentActivity; at == nil || !at.Equal(bump) {
		t.Fatalf("expected provisional activity %v, got %v", bump, at)
	}

	// The reconciling refresh rebuilds from the store and wins.
	if err := catalog.RefreshDirectory(context.Background(), "d1"); err != nil {
		t.Fatalf("RefreshDirectory() error = %v", err)
	}
}

func ids(dirs []domain.Directory) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.ID
	}
	return out
}

func names(dirs []domain.Directory) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.Name
	}
	return out
}
