package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/filingdesk/internal/adapters/events"
	"github.com/avolkov/filingdesk/internal/config"
	"github.com/avolkov/filingdesk/internal/core/ports"
	"github.com/avolkov/filingdesk/internal/core/usecase"
	"github.com/avolkov/filingdesk/internal/infrastructure/inspect/pdfcheck"
	"github.com/avolkov/filingdesk/internal/infrastructure/queue/nats"
	"github.com/avolkov/filingdesk/internal/infrastructure/repository/postgres"
	"github.com/avolkov/filingdesk/internal/infrastructure/resilience"
	"github.com/avolkov/filingdesk/internal/infrastructure/storage/localfs"
	"github.com/avolkov/filingdesk/internal/observability/logging"
	"github.com/avolkov/filingdesk/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Push ports.PushChannel

	Documents   ports.DocumentStore
	Directories ports.DirectoryStore
	Summaries   ports.SummaryStore
	Reports     ports.ReportStore

	Catalog  *usecase.Catalog
	Registry *usecase.Registry
	Linker   *usecase.Linker
	Tracker  *usecase.Tracker

	HTTPMetrics *metrics.HTTPServerMetrics
	JobMetrics  *metrics.JobMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	blobs, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	docRepo := postgres.NewDocumentRepository(db, blobs)
	dirs := postgres.NewDirectoryRepository(db, blobs)
	summaries := postgres.NewSummaryRepository(db)
	reports := postgres.NewReportRepository(db)

	if err := docRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	if err := dirs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure directories schema: %w", err)
	}
	if err := summaries.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure artifacts schema: %w", err)
	}

	docs := resilience.NewGuardedDocumentStore(docRepo, resilience.NewExecutor(resilience.StorePolicy()))

	push, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.PushPolicy()),
		// api and watcher each need the full stream; a shared group would
		// load-balance it between them.
		QueueGroup: service,
	})
	if err != nil {
		return nil, fmt.Errorf("init push channel: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	jobMetrics := metrics.NewJobMetrics(service)
	sink := events.NewSink(push)

	catalog := usecase.NewCatalog(dirs, docs, summaries, reports, cfg.CatalogPageSize)
	registry := usecase.NewRegistry(docs, summaries, reports)
	guard := usecase.NewGuard(docs, cfg.SimilarityThreshold)
	inspector := pdfcheck.New(cfg.MaxUploadBytes)
	tracker := usecase.NewTracker(
		usecase.TrackerConfig{
			PollInterval:    time.Duration(cfg.PollIntervalSeconds) * time.Second,
			PollMaxAttempts: cfg.PollMaxAttempts,
		},
		docs, guard, catalog, registry, inspector, sink, jobMetrics,
	)
	linker := usecase.NewLinker(docs, registry, catalog, sink)

	return &App{
		Config: cfg,

		Push: push,

		Documents:   docs,
		Directories: dirs,
		Summaries:   summaries,
		Reports:     reports,

		Catalog:  catalog,
		Registry: registry,
		Linker:   linker,
		Tracker:  tracker,

		HTTPMetrics: httpMetrics,
		JobMetrics:  jobMetrics,

		closeFn: func() {
			push.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
