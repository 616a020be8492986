package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

// SummaryRepository stores per-document summary artifacts. The listing is
// global; scoping to a directory happens in the registry.
type SummaryRepository struct {
	db *sql.DB
}

func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) EnsureSchema(ctx context.Context) error {
	return ensureArtifactSchema(ctx, r.db)
}

func (r *SummaryRepository) GetAll(ctx context.Context) ([]domain.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, title, created_at, updated_at
FROM summaries
ORDER BY updated_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Summary, 0)
	for rows.Next() {
		var s domain.Summary
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

func (r *SummaryRepository) Update(ctx context.Context, id string, title string) error {
	return renameArtifact(ctx, r.db, "summaries", "update summary", id, title)
}

func (r *SummaryRepository) Delete(ctx context.Context, id string) error {
	return deleteArtifact(ctx, r.db, "summaries", "delete summary", id)
}

// ReportRepository stores DRHP/RHP comparison reports. Older rows carry only
// namespace keys, newer ones document ids; both column sets are kept.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	return ensureArtifactSchema(ctx, r.db)
}

func (r *ReportRepository) GetAll(ctx context.Context) ([]domain.Report, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, drhp_id, rhp_id, drhp_namespace, rhp_namespace, title, created_at, updated_at
FROM reports
ORDER BY updated_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Report, 0)
	for rows.Next() {
		var rep domain.Report
		if err := rows.Scan(&rep.ID, &rep.DrhpID, &rep.RhpID, &rep.DrhpNamespace, &rep.RhpNamespace, &rep.Title, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) Update(ctx context.Context, id string, title string) error {
	return renameArtifact(ctx, r.db, "reports", "update report", id, title)
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	return deleteArtifact(ctx, r.db, "reports", "delete report", id)
}

func ensureArtifactSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
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
CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	title TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_document ON summaries(document_id);

CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	drhp_id TEXT NOT NULL DEFAULT '',
	rhp_id TEXT NOT NULL DEFAULT '',
	drhp_namespace TEXT NOT NULL DEFAULT '',
	rhp_namespace TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func renameArtifact(ctx context.Context, db *sql.DB, table, op, id, title string) error {
	result, err := db.ExecContext(ctx, `UPDATE `+table+` SET title = $2, updated_at = $3 WHERE id = $1`, id, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}

func deleteArtifact(ctx context.Context, db *sql.DB, table, op, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
