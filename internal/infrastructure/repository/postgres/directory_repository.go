package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

type DirectoryRepository struct {
	db    *sql.DB
	blobs ports.BlobStorage
}

func NewDirectoryRepository(db *sql.DB, blobs ports.BlobStorage) *DirectoryRepository {
	return &DirectoryRepository{db: db, blobs: blobs}
}

func (r *DirectoryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS directories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	parent_id TEXT,
	is_shared BOOLEAN NOT NULL DEFAULT FALSE,
	last_document_upload TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_directories_parent ON directories(parent_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_directories_sibling_name ON directories((COALESCE(parent_id, '')), LOWER(name));
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const directoryColumns = `id, name, parent_id, is_shared, last_document_upload, created_at, updated_at`

// ListChildren returns one page of a parent's children plus the total row
// count, so the catalog can keep requesting pages until it has them all.
func (r *DirectoryRepository) ListChildren(ctx context.Context, parentID *string, page, pageSize int) ([]ports.DirectoryEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 200
	}

	query := `SELECT ` + directoryColumns + `, COUNT(*) OVER() AS total FROM directories `
	args := []any{}
	if parentID == nil {
		query += `WHERE parent_id IS NULL `
	} else {
		query += `WHERE parent_id = $1 `
		args = append(args, *parentID)
	}
	query += fmt.Sprintf(`ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list directories: %w", err)
	}
	defer rows.Close()

	entries := make([]ports.DirectoryEntry, 0)
	total := 0
	for rows.Next() {
		var dir domain.Directory
		var parent sql.NullString
		var lastUpload sql.NullTime
		if err := rows.Scan(&dir.ID, &dir.Name, &parent, &dir.IsShared, &lastUpload, &dir.CreatedAt, &dir.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan directory: %w", err)
		}
		if parent.Valid {
			dir.ParentID = &parent.String
		}
		if lastUpload.Valid {
			dir.LastDocumentUpload = &lastUpload.Time
		}
		entries = append(entries, ports.DirectoryEntry{Kind: "directory", Directory: dir})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate directories: %w", err)
	}
	return entries, total, nil
}

func (r *DirectoryRepository) Create(ctx context.Context, name string, parentID *string) (*domain.Directory, error) {
	now := time.Now().UTC()
	dir := domain.Directory{
		ID:        uuid.NewString(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO directories (`+directoryColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, dir.ID, dir.Name, dir.ParentID, dir.IsShared, dir.LastDocumentUpload, dir.CreatedAt, dir.UpdatedAt)
	if err != nil {
		// The sibling-name index is the authority; the advisory CheckDuplicate
		// call cannot close the race between two writers.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.WrapError(domain.ErrDuplicateDirectory, "insert directory", fmt.Errorf("name %q already taken", name))
		}
		return nil, fmt.Errorf("insert directory: %w", err)
	}
	return &dir, nil
}

func (r *DirectoryRepository) Update(ctx context.Context, id string, patch domain.DirectoryPatch) error {
	if patch.Name == nil {
		return nil
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE directories
SET name = $2, updated_at = $3
WHERE id = $1
`, id, *patch.Name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update directory: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update directory rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDirectoryNotFound, "update directory", fmt.Errorf("id=%s", id))
	}
	return nil
}

// Delete removes the directory and every document it contains in one
// transaction, freeing their namespaces. Stored bodies are removed after
// commit; a leftover file is recoverable noise, a dangling row is not.
func (r *DirectoryRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `DELETE FROM documents WHERE directory_id = $1 RETURNING id`, id)
	if err != nil {
		return fmt.Errorf("delete contained documents: %w", err)
	}
	docIDs := make([]string, 0)
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			rows.Close()
			return fmt.Errorf("scan deleted document id: %w", err)
		}
		docIDs = append(docIDs, docID)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close deleted document rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate deleted document ids: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM directories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete directory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete directory rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDirectoryNotFound, "delete directory", fmt.Errorf("id=%s", id))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}

	if r.blobs != nil {
		for _, docID := range docIDs {
			if err := r.blobs.Remove(ctx, docID); err != nil {
				slog.Warn("remove document body failed", "document_id", docID, "error", err)
			}
		}
	}
	return nil
}

func (r *DirectoryRepository) CheckDuplicate(ctx context.Context, name string) (*domain.Directory, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+directoryColumns+`
FROM directories
WHERE LOWER(name) = LOWER($1)
`, name)

	var dir domain.Directory
	var parent sql.NullString
	var lastUpload sql.NullTime
	err := row.Scan(&dir.ID, &dir.Name, &parent, &dir.IsShared, &lastUpload, &dir.CreatedAt, &dir.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check directory duplicate: %w", err)
	}
	if parent.Valid {
		dir.ParentID = &parent.String
	}
	if lastUpload.Valid {
		dir.LastDocumentUpload = &lastUpload.Time
	}
	return &dir, nil
}

func (r *DirectoryRepository) Search(ctx context.Context, query string, limit int) ([]domain.DirectorySuggestion, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name
FROM directories
WHERE name ILIKE '%' || $1 || '%'
ORDER BY name
LIMIT $2
`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search directories: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DirectorySuggestion, 0)
	for rows.Next() {
		var s domain.DirectorySuggestion
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan directory suggestion: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directory suggestions: %w", err)
	}
	return out, nil
}
