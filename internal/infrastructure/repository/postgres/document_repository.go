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
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avolkov/filingdesk/internal/core/domain"
	"github.com/avolkov/filingdesk/internal/core/ports"
)

// schemaLockKey serializes bootstrap DDL across api/watcher startups.
const schemaLockKey = int64(2026061501)

const uniqueViolation = "23505"

type DocumentRepository struct {
	db    *sql.DB
	blobs ports.BlobStorage
}

func NewDocumentRepository(db *sql.DB, blobs ports.BlobStorage) *DocumentRepository {
	return &DocumentRepository{db: db, blobs: blobs}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
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
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	namespace TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	directory_id TEXT,
	related_drhp_id TEXT NOT NULL DEFAULT '',
	related_rhp_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_namespace ON documents(LOWER(namespace));
CREATE INDEX IF NOT EXISTS idx_documents_directory ON documents(directory_id);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `id, name, namespace, doc_type, directory_id, related_drhp_id, related_rhp_id, status, error_message, uploaded_at, updated_at`

func (r *DocumentRepository) List(ctx context.Context, directoryID *string) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	if directoryID != nil {
		query += ` WHERE directory_id = $1`
		args = append(args, *directoryID)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get document by id: %w", err)
	}
	return &doc, nil
}

// Create persists the body first, then the metadata row. A unique-violation on
// the namespace index is the second-writer race: the existing row is fetched
// and handed back as a conflict, not an opaque failure.
func (r *DocumentRepository) Create(ctx context.Context, req domain.CreateDocumentRequest) (*domain.Document, error) {
	now := time.Now().UTC()
	doc := domain.Document{
		ID:          uuid.NewString(),
		Name:        req.Filename,
		Namespace:   req.Namespace,
		Type:        req.Type,
		DirectoryID: &req.DirectoryID,
		Status:      domain.StatusProcessing,
		UploadedAt:  now,
		UpdatedAt:   now,
	}

	if r.blobs != nil && req.Body != nil {
		if err := r.blobs.Save(ctx, doc.ID, req.Body); err != nil {
			return nil, fmt.Errorf("save document body: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		doc.ID, doc.Name, doc.Namespace, string(doc.Type), doc.DirectoryID,
		doc.RelatedDrhpID, doc.RelatedRhpID, string(doc.Status), doc.Error,
		doc.UploadedAt, doc.UpdatedAt,
	)
	if err != nil {
		// The body was written before the row; without the row it is
		// unreachable, so take it back out.
		r.removeBlob(ctx, doc.ID)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, lookupErr := r.CheckDuplicate(ctx, doc.Namespace)
			if lookupErr == nil && existing != nil {
				return nil, &domain.DuplicateConflictError{Existing: *existing}
			}
			return nil, &domain.DuplicateConflictError{Existing: domain.Document{Namespace: doc.Namespace}}
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) removeBlob(ctx context.Context, id string) {
	if r.blobs == nil {
		return
	}
	if err := r.blobs.Remove(ctx, id); err != nil {
		slog.Warn("remove document body failed", "document_id", id, "error", err)
	}
}

func (r *DocumentRepository) Update(ctx context.Context, id string, patch domain.DocumentPatch) error {
	query := `UPDATE documents SET updated_at = $2`
	args := []any{id, time.Now().UTC()}
	if patch.Name != nil {
		args = append(args, *patch.Name)
		query += fmt.Sprintf(", name = $%d", len(args))
	}
	if patch.DirectoryID != nil {
		args = append(args, *patch.DirectoryID)
		query += fmt.Sprintf(", directory_id = $%d", len(args))
	}
	query += ` WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
	}
	r.removeBlob(ctx, id)
	return nil
}

func (r *DocumentRepository) CheckDuplicate(ctx context.Context, namespace string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE LOWER(namespace) = LOWER($1)
`, namespace)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	return &doc, nil
}

// LinkForCompare records the pair on both rows in one transaction; a partial
// link would make one side invisible to the symmetry check.
func (r *DocumentRepository) LinkForCompare(ctx context.Context, drhpID, rhpID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if err := linkSide(ctx, tx, `UPDATE documents SET related_rhp_id = $2, updated_at = $3 WHERE id = $1 AND doc_type = 'DRHP'`, drhpID, rhpID, now); err != nil {
		return err
	}
	if err := linkSide(ctx, tx, `UPDATE documents SET related_drhp_id = $2, updated_at = $3 WHERE id = $1 AND doc_type = 'RHP'`, rhpID, drhpID, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit link tx: %w", err)
	}
	return nil
}

func linkSide(ctx context.Context, tx *sql.Tx, query, id, relatedID string, now time.Time) error {
	result, err := tx.ExecContext(ctx, query, id, relatedID, now)
	if err != nil {
		return fmt.Errorf("link document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "link document", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) GetAvailableForCompare(ctx context.Context, id string) ([]domain.Document, error) {
	doc, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE doc_type = $1 AND related_drhp_id = '' AND related_rhp_id = '' AND id <> $2
ORDER BY uploaded_at DESC
`, string(doc.Type.Opposite()), id)
	if err != nil {
		return nil, fmt.Errorf("list available for compare: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		candidate, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available for compare: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var docType, status string
	var directoryID sql.NullString

	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Namespace,
		&docType,
		&directoryID,
		&doc.RelatedDrhpID,
		&doc.RelatedRhpID,
		&status,
		&doc.Error,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	if directoryID.Valid {
		doc.DirectoryID = &directoryID.String
	}
	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	return doc, nil
}
