package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
	"github.com/avolkov/filingdesk/internal/core/usecase"
	"github.com/avolkov/filingdesk/internal/infrastructure/export"
)

// Config carries the traffic-control knobs of the HTTP surface.
type Config struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	MaxUploadBytes   int64
}

type Router struct {
	cfg       Config
	catalog   *usecase.Catalog
	registry  *usecase.Registry
	linker    *usecase.Linker
	tracker   *usecase.Tracker
	docs      ports.DocumentStore
	dirs      ports.DirectoryStore
	summaries ports.SummaryStore
	reports   ports.ReportStore
}

func NewRouter(
	cfg Config,
	catalog *usecase.Catalog,
	registry *usecase.Registry,
	linker *usecase.Linker,
	tracker *usecase.Tracker,
	docs ports.DocumentStore,
	dirs ports.DirectoryStore,
	summaries ports.SummaryStore,
	reports ports.ReportStore,
) *Router {
	return &Router{
		cfg:       cfg,
		catalog:   catalog,
		registry:  registry,
		linker:    linker,
		tracker:   tracker,
		docs:      docs,
		dirs:      dirs,
		summaries: summaries,
		reports:   reports,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/directories", rt.directories)
	mux.HandleFunc("/v1/directories/export", rt.exportCatalog)
	mux.HandleFunc("/v1/directories/search", rt.searchDirectories)
	mux.HandleFunc("/v1/directories/", rt.directoryByID)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/summaries/", rt.summaryByID)
	mux.HandleFunc("/v1/reports/", rt.reportByID)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// directories serves the catalog view (GET) and creation (POST).
func (rt *Router) directories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.listDirectories(w, r)
	case http.MethodPost:
		rt.createDirectory(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) listDirectories(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := rt.catalog.Refresh(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}

	bucket, ok := usecase.ParseActivityBucket(r.URL.Query().Get("bucket"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown bucket"})
		return
	}
	sortMode := usecase.SortMode(r.URL.Query().Get("sort"))
	if sortMode == "" {
		sortMode = usecase.SortAlphabetical
	}

	dirs, aggs := rt.catalog.Snapshot()
	dirs = usecase.FilterDirectories(dirs, usecase.CatalogFilter{
		NameQuery: r.URL.Query().Get("q"),
		Bucket:    bucket,
	}, time.Now())
	dirs = usecase.SortDirectories(dirs, sortMode)

	type row struct {
		Directory domain.Directory          `json:"directory"`
		Aggregate domain.DirectoryAggregate `json:"aggregate"`
	}
	rows := make([]row, 0, len(dirs))
	for _, dir := range dirs {
		rows = append(rows, row{Directory: dir, Aggregate: aggs[dir.ID]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"directories": rows})
}

func (rt *Router) createDirectory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string  `json:"name"`
		ParentID *string `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if existing, err := rt.dirs.CheckDuplicate(r.Context(), req.Name); err == nil && existing != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "directory name already taken",
			"existing": existing,
		})
		return
	}

	dir, err := rt.dirs.Create(r.Context(), req.Name, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.catalog.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dir)
}

func (rt *Router) exportCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	dirs, aggs := rt.catalog.Snapshot()
	dirs = usecase.SortDirectories(dirs, usecase.SortAlphabetical)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="directories.xlsx"`)
	if err := export.WriteCatalog(w, dirs, aggs); err != nil {
		// Headers are out; all we can do is log through the access log status.
		writeError(w, err)
	}
}

func (rt *Router) searchDirectories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	suggestions, err := rt.dirs.Search(r.Context(), r.URL.Query().Get("q"), 10)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// directoryByID routes /v1/directories/{id}[/items|/compare].
func (rt *Router) directoryByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/directories/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "directory id is required"})
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodPatch:
			rt.renameDirectory(w, r, id)
		case http.MethodDelete:
			rt.deleteDirectory(w, r, id)
		default:
			writeMethodNotAllowed(w)
		}
	case "items":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		rt.directoryItems(w, r, id)
	case "compare":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		rt.compareDirectory(w, r, id)
	case "suggest-type":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		rt.suggestType(w, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown directory action"})
	}
}

// suggestType offers the filing type a directory is still missing. Advisory
// only; the upload call always names its type explicitly.
func (rt *Router) suggestType(w http.ResponseWriter, id string) {
	agg, _ := rt.catalog.Aggregate(id)
	suggested, ok := usecase.SuggestType(agg)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"suggested": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggested": suggested})
}

func (rt *Router) renameDirectory(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if err := rt.dirs.Update(r.Context(), id, domain.DirectoryPatch{Name: &req.Name}); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.catalog.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (rt *Router) deleteDirectory(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.dirs.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	rt.registry.Forget(id)
	if err := rt.catalog.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (rt *Router) directoryItems(w http.ResponseWriter, r *http.Request, id string) {
	contents, err := rt.registry.LoadDirectory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     contents.UnifiedItems(),
		"documents": contents.Documents,
		"summaries": contents.Summaries,
		"reports":   contents.Reports,
	})
}

func (rt *Router) compareDirectory(w http.ResponseWriter, r *http.Request, id string) {
	dir := domain.Directory{ID: id, Name: rt.catalog.DirectoryName(id)}
	outcome, err := rt.linker.DirectoryCompare(r.Context(), dir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// uploadDocument starts an upload job from a multipart form: file, type and
// directory_id. A duplicate verdict available at return time answers 409.
func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	maxBytes := rt.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	docType, ok := domain.ParseDocumentType(r.FormValue("type"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be DRHP or RHP"})
		return
	}

	handle, err := rt.tracker.Upload(r.Context(), usecase.UploadRequest{
		Filename:    fileHeader.Filename,
		DirectoryID: r.FormValue("directory_id"),
		Type:        docType,
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	select {
	case <-handle.Done():
		job := handle.Job()
		if job.Phase == domain.PhaseDuplicate {
			writeJSON(w, http.StatusConflict, map[string]any{
				"job":     job,
				"verdict": handle.Verdict(),
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"job": handle.Job()})
	}
}

// documentByID routes /v1/documents/{id}[/compare|/link].
func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			rt.getDocument(w, r, id)
		case http.MethodDelete:
			rt.deleteDocument(w, r, id)
		default:
			writeMethodNotAllowed(w)
		}
	case "compare":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		rt.compareDocument(w, r, id)
	case "link":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		rt.linkDocument(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown document action"})
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.docs.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if doc.DirectoryID != nil {
		if err := rt.registry.Reload(r.Context(), *doc.DirectoryID); err == nil {
			_ = rt.catalog.RefreshDirectory(r.Context(), *doc.DirectoryID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (rt *Router) compareDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	outcome, err := rt.linker.FindAndLink(r.Context(), *doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) linkDocument(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		RelatedID string `json:"related_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RelatedID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "related_id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	selected, err := rt.docs.GetByID(r.Context(), req.RelatedID)
	if err != nil {
		writeError(w, err)
		return
	}
	if selected.Type != doc.Type.Opposite() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "selected document has the same filing type"})
		return
	}

	outcome, err := rt.linker.ManualLink(r.Context(), *doc, *selected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) summaryByID(w http.ResponseWriter, r *http.Request) {
	rt.artifactByID(w, r, "/v1/summaries/", rt.summaries.Update, rt.summaries.Delete)
}

func (rt *Router) reportByID(w http.ResponseWriter, r *http.Request) {
	rt.artifactByID(w, r, "/v1/reports/", rt.reports.Update, rt.reports.Delete)
}

func (rt *Router) artifactByID(
	w http.ResponseWriter,
	r *http.Request,
	prefix string,
	update func(ctx context.Context, id, title string) error,
	remove func(ctx context.Context, id string) error,
) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "artifact id is required"})
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
			return
		}
		if err := update(r.Context(), id, req.Title); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
	case http.MethodDelete:
		if err := remove(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeMethodNotAllowed(w)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if conflict, ok := domain.AsDuplicateConflict(err); ok {
		writeJSON(w, status, map[string]any{"error": err.Error(), "existing": conflict.Existing})
		return
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
