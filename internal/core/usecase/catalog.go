package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

type SortMode string

const (
	SortAlphabetical SortMode = "alphabetical"
	SortLastModified SortMode = "lastModified"
)

type ActivityBucket string

const (
	BucketNone   ActivityBucket = ""
	BucketToday  ActivityBucket = "today"
	BucketLast7  ActivityBucket = "last7"
	BucketLast15 ActivityBucket = "last15"
	BucketLast30 ActivityBucket = "last30"
	BucketLast60 ActivityBucket = "last60"
)

func ParseActivityBucket(raw string) (ActivityBucket, bool) {
	switch ActivityBucket(raw) {
	case BucketNone, BucketToday, BucketLast7, BucketLast15, BucketLast30, BucketLast60:
		return ActivityBucket(raw), true
	default:
		return BucketNone, false
	}
}

func (b ActivityBucket) days() int {
	switch b {
	case BucketToday:
		return 0
	case BucketLast7:
		return 7
	case BucketLast15:
		return 15
	case BucketLast30:
		return 30
	case BucketLast60:
		return 60
	default:
		return -1
	}
}

type CatalogFilter struct {
	NameQuery string
	Bucket    ActivityBucket
}

// Catalog is the single source of truth for root directories and their
// derived aggregates. Consumers read snapshots; only the refresh operations
// mutate state, and a stale refresh never overwrites a newer one.
type Catalog struct {
	dirs      ports.DirectoryStore
	docs      ports.DocumentStore
	summaries ports.SummaryStore
	reports   ports.ReportStore
	pageSize  int

	mu         sync.Mutex
	generation uint64
	applied    uint64
	snapshot   []domain.Directory
	aggregates map[string]domain.DirectoryAggregate
}

func NewCatalog(
	dirs ports.DirectoryStore,
	docs ports.DocumentStore,
	summaries ports.SummaryStore,
	reports ports.ReportStore,
	pageSize int,
) *Catalog {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Catalog{
		dirs:       dirs,
		docs:       docs,
		summaries:  summaries,
		reports:    reports,
		pageSize:   pageSize,
		aggregates: map[string]domain.DirectoryAggregate{},
	}
}

// ListRootDirectories pages through the store until every root directory is
// collected. Callers never see pagination.
func (c *Catalog) ListRootDirectories(ctx context.Context) ([]domain.Directory, error) {
	entries, total, err := c.dirs.ListChildren(ctx, nil, 1, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list root directories page 1: %w", err)
	}

	collected := directoriesOf(entries)
	fetched := len(entries)
	for page := 2; fetched < total; page++ {
		more, _, err := c.dirs.ListChildren(ctx, nil, page, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list root directories page %d: %w", page, err)
		}
		if len(more) == 0 {
			break
		}
		collected = append(collected, directoriesOf(more)...)
		fetched += len(more)
	}
	return collected, nil
}

func directoriesOf(entries []ports.DirectoryEntry) []domain.Directory {
	out := make([]domain.Directory, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Directory)
	}
	return out
}

// Refresh re-pulls directories, documents, summaries and reports and rebuilds
// every aggregate. Out-of-order resolutions are dropped by generation token so
// the freshest data always wins.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	var (
		directories []domain.Directory
		documents   []domain.Document
		summaries   []domain.Summary
		reports     []domain.Report
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		directories, err = c.ListRootDirectories(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		documents, err = c.docs.List(groupCtx, nil)
		return err
	})
	group.Go(func() error {
		var err error
		summaries, err = c.summaries.GetAll(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		reports, err = c.reports.GetAll(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}

	aggregates := ComputeAggregates(directories, documents, summaries, reports)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.applied {
		return nil
	}
	c.applied = gen
	c.snapshot = directories
	c.aggregates = aggregates
	return nil
}

// RefreshDirectory rebuilds a single directory's aggregate from fresh lists.
func (c *Catalog) RefreshDirectory(ctx context.Context, directoryID string) error {
	var (
		documents []domain.Document
		summaries []domain.Summary
		reports   []domain.Report
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		documents, err = c.docs.List(groupCtx, &directoryID)
		return err
	})
	group.Go(func() error {
		var err error
		summaries, err = c.summaries.GetAll(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		reports, err = c.reports.GetAll(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return fmt.Errorf("refresh directory %s: %w", directoryID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	dir, found := c.findLocked(directoryID)
	if !found {
		// Deleted concurrently; drop whatever we knew about it.
		delete(c.aggregates, directoryID)
		return nil
	}
	c.aggregates[directoryID] = aggregateFor(*dir, documents, summaries, reports)
	return nil
}

// BumpLastUpload is the provisional half of "provisional patch, then
// reconciling refresh": it advances the directory's recency immediately so
// views sort correctly while the corrective refresh is in flight.
func (c *Catalog) BumpLastUpload(directoryID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dir, found := c.findLocked(directoryID)
	if !found {
		return
	}
	if dir.LastDocumentUpload == nil || at.After(*dir.LastDocumentUpload) {
		stamp := at
		dir.LastDocumentUpload = &stamp
	}
	agg := c.aggregates[directoryID]
	agg.MostRecentActivity = dir.MostRecentActivity()
	c.aggregates[directoryID] = agg
}

func (c *Catalog) findLocked(directoryID string) (*domain.Directory, bool) {
	for i := range c.snapshot {
		if c.snapshot[i].ID == directoryID {
			return &c.snapshot[i], true
		}
	}
	return nil, false
}

// Snapshot returns copies of the current directory list and aggregate map.
func (c *Catalog) Snapshot() ([]domain.Directory, map[string]domain.DirectoryAggregate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dirs := make([]domain.Directory, len(c.snapshot))
	copy(dirs, c.snapshot)
	aggregates := make(map[string]domain.DirectoryAggregate, len(c.aggregates))
	for id, agg := range c.aggregates {
		aggregates[id] = agg
	}
	return dirs, aggregates
}

func (c *Catalog) Aggregate(directoryID string) (domain.DirectoryAggregate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	agg, ok := c.aggregates[directoryID]
	return agg, ok
}

func (c *Catalog) DirectoryName(directoryID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dir, found := c.findLocked(directoryID); found {
		return dir.Name
	}
	return ""
}

// ComputeAggregates rebuilds every directory's aggregate from the raw lists.
func ComputeAggregates(
	directories []domain.Directory,
	documents []domain.Document,
	summaries []domain.Summary,
	reports []domain.Report,
) map[string]domain.DirectoryAggregate {
	byDirectory := make(map[string][]domain.Document)
	for _, doc := range documents {
		if doc.DirectoryID == nil {
			continue
		}
		byDirectory[*doc.DirectoryID] = append(byDirectory[*doc.DirectoryID], doc)
	}

	out := make(map[string]domain.DirectoryAggregate, len(directories))
	for _, dir := range directories {
		out[dir.ID] = aggregateFor(dir, byDirectory[dir.ID], summaries, reports)
	}
	return out
}

func aggregateFor(
	dir domain.Directory,
	docs []domain.Document,
	summaries []domain.Summary,
	reports []domain.Report,
) domain.DirectoryAggregate {
	agg := domain.DirectoryAggregate{MostRecentActivity: dir.MostRecentActivity()}

	docIDs := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		docIDs[doc.ID] = struct{}{}
		switch doc.Type {
		case domain.TypeDRHP:
			agg.HasDrhp = true
		case domain.TypeRHP:
			agg.HasRhp = true
		}
	}
	_, _, agg.IsLinked = domain.LinkedPair(docs)

	for _, summary := range summaries {
		if _, ok := docIDs[summary.DocumentID]; ok {
			agg.SummaryCount++
		}
	}
	for _, report := range reports {
		if reportBelongsToDirectory(report, docs) {
			agg.ReportCount++
		}
	}
	return agg
}

// SortDirectories orders a copy of dirs by the given mode. Alphabetical uses
// locale-aware case-insensitive collation; lastModified sorts activity
// descending with missing dates treated as epoch zero, so they land last.
// Both sorts are stable.
func SortDirectories(dirs []domain.Directory, mode SortMode) []domain.Directory {
	sorted := make([]domain.Directory, len(dirs))
	copy(sorted, dirs)

	switch mode {
	case SortLastModified:
		sort.SliceStable(sorted, func(i, j int) bool {
			return activityOrEpoch(sorted[i]).After(activityOrEpoch(sorted[j]))
		})
	default:
		collator := collate.New(language.Und, collate.IgnoreCase)
		sort.SliceStable(sorted, func(i, j int) bool {
			return collator.CompareString(sorted[i].Name, sorted[j].Name) < 0
		})
	}
	return sorted
}

func activityOrEpoch(dir domain.Directory) time.Time {
	if at := dir.MostRecentActivity(); at != nil {
		return *at
	}
	return time.Unix(0, 0)
}

// FilterDirectories applies the name and time-bucket filters. Shared
// directories are exempt from time filtering and always shown.
func FilterDirectories(dirs []domain.Directory, filter CatalogFilter, now time.Time) []domain.Directory {
	out := make([]domain.Directory, 0, len(dirs))
	for _, dir := range dirs {
		if !dir.MatchesName(filter.NameQuery) {
			continue
		}
		if !inBucket(dir, filter.Bucket, now) {
			continue
		}
		out = append(out, dir)
	}
	return out
}

func inBucket(dir domain.Directory, bucket ActivityBucket, now time.Time) bool {
	days := bucket.days()
	if days < 0 {
		return true
	}
	if dir.IsShared {
		return true
	}
	at := dir.MostRecentActivity()
	if at == nil {
		return false
	}
	// Time-of-day is stripped on both sides before comparing.
	activityDay := dateOnly(*at)
	bucketStart := dateOnly(now).AddDate(0, 0, -days)
	return !activityDay.Before(bucketStart)
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
