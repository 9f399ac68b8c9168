package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
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

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS fiscal_documents (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	phase SMALLINT NOT NULL DEFAULT 1,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	document_type TEXT,
	document_hash TEXT,
	record JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fiscal_documents_client ON fiscal_documents(client_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fiscal_documents_hash ON fiscal_documents(client_id, document_hash);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO fiscal_documents (
	id, client_id, filename, mime_type, storage_path, phase, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.ClientID, doc.Filename, doc.MimeType, doc.StoragePath, int(doc.Phase),
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, client_id, filename, mime_type, storage_path, phase, status, error_message, record, created_at, updated_at
FROM fiscal_documents
WHERE id = $1
`, id)

	var doc domain.Document
	var phase int
	var status string
	var recordRaw []byte

	err := row.Scan(
		&doc.ID, &doc.ClientID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &phase,
		&status, &doc.Error, &recordRaw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if len(recordRaw) > 0 {
		rec, err := decodeRecord(recordRaw)
		if err != nil {
			return nil, err
		}
		doc.Record = rec
	}
	doc.Phase = domain.Phase(phase)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE fiscal_documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res, "update document status", id)
}

// SaveRecord stores the pipeline record as JSONB and denormalizes its type and hash.
func (r *DocumentRepository) SaveRecord(ctx context.Context, id string, record domain.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE fiscal_documents
SET record = $2, document_type = $3, document_hash = $4, updated_at = $5
WHERE id = $1
`, id, raw, string(record.DocumentType()), record.String(domain.FieldDocumentHash), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return requireAffected(res, "save record", id)
}

// ListRecords returns the client's most recent records, newest first, for duplicate
// detection. Records get the row id under "id" when they carry none.
func (r *DocumentRepository) ListRecords(ctx context.Context, clientID, excludeID string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, record
FROM fiscal_documents
WHERE client_id = $1 AND id <> $2 AND record IS NOT NULL
ORDER BY created_at DESC
LIMIT $3
`, clientID, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Record, 0, limit)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		if rec.ID() == "" {
			rec["id"] = id
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func decodeRecord(raw []byte) (domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec domain.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec == nil {
		rec = domain.Record{}
	}
	return rec, nil
}

func requireAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
