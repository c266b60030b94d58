package editions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id, edition_id, number, year, label, detail_url, download_url, storage_provider,
       pdf_key, text_key, sha256, size_bytes, pages, text_chars, status, has_opportunities,
       summary, model, error, notified_at, created_at, updated_at`

// Upsert inserts the record or updates the existing row for the same edition.
func (r *PGRepo) Upsert(ctx context.Context, rec Record) (Record, error) {
	const query = `
INSERT INTO editions (
	id, edition_id, number, year, label, detail_url, download_url, storage_provider,
	pdf_key, text_key, sha256, size_bytes, pages, text_chars, status, has_opportunities,
	summary, model, error, notified_at, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $21)
ON CONFLICT (edition_id) DO UPDATE SET
	number = EXCLUDED.number,
	year = EXCLUDED.year,
	label = EXCLUDED.label,
	detail_url = EXCLUDED.detail_url,
	download_url = EXCLUDED.download_url,
	storage_provider = EXCLUDED.storage_provider,
	pdf_key = EXCLUDED.pdf_key,
	text_key = EXCLUDED.text_key,
	sha256 = EXCLUDED.sha256,
	size_bytes = EXCLUDED.size_bytes,
	pages = EXCLUDED.pages,
	text_chars = EXCLUDED.text_chars,
	status = EXCLUDED.status,
	has_opportunities = EXCLUDED.has_opportunities,
	summary = EXCLUDED.summary,
	model = EXCLUDED.model,
	error = EXCLUDED.error,
	notified_at = COALESCE(EXCLUDED.notified_at, editions.notified_at),
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	err := r.DB.QueryRowContext(ctx, query,
		rec.ID,
		rec.EditionID,
		rec.Number,
		rec.Year,
		rec.Label,
		rec.DetailURL,
		rec.DownloadURL,
		rec.StorageProvider,
		nullString(rec.PDFKey),
		nullString(rec.TextKey),
		nullString(rec.SHA256),
		rec.SizeBytes,
		rec.Pages,
		rec.TextChars,
		rec.Status,
		rec.HasOpportunities,
		nullString(rec.Summary),
		nullString(rec.Model),
		nullString(rec.Error),
		nullTime(rec.NotifiedAt),
		now,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// GetByEditionID returns the record for a portal edition id.
func (r *PGRepo) GetByEditionID(ctx context.Context, editionID string) (Record, error) {
	query := `SELECT ` + recordColumns + `
FROM editions
WHERE edition_id = $1
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, editionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns records newest edition first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	query := `SELECT ` + recordColumns + `
FROM editions
ORDER BY number DESC, created_at DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var pdfKey, textKey, sha, summary, model, errMsg sql.NullString
	var notifiedAt sql.NullTime
	err := row.Scan(
		&rec.ID,
		&rec.EditionID,
		&rec.Number,
		&rec.Year,
		&rec.Label,
		&rec.DetailURL,
		&rec.DownloadURL,
		&rec.StorageProvider,
		&pdfKey,
		&textKey,
		&sha,
		&rec.SizeBytes,
		&rec.Pages,
		&rec.TextChars,
		&rec.Status,
		&rec.HasOpportunities,
		&summary,
		&model,
		&errMsg,
		&notifiedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.PDFKey = pdfKey.String
	rec.TextKey = textKey.String
	rec.SHA256 = sha.String
	rec.Summary = summary.String
	rec.Model = model.String
	rec.Error = errMsg.String
	if notifiedAt.Valid {
		t := notifiedAt.Time
		rec.NotifiedAt = &t
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
