package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks reportchat/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Insert records a newly ingested document. A UUID is generated when doc.ID is empty.
	Insert(ctx context.Context, doc *DocumentRecord) error
	// GetByID gets a document by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// ListBySourceRef returns every document ingested under sourceRef, oldest first.
	ListBySourceRef(ctx context.Context, sourceRef string) ([]DocumentRecord, error)
	// ListSources returns one summary per source ref, ordered by source ref.
	ListSources(ctx context.Context) ([]SourceSummary, error)
	// RefByURL returns the source ref of the most recently ingested document
	// fetched from url. Returns ErrNotFound if no document has that URL.
	RefByURL(ctx context.Context, url string) (string, error)
	// Delete removes a document and, through the foreign key, its chunks.
	Delete(ctx context.Context, id string) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db, now: time.Now}
}

// Insert records a newly ingested document.
// If doc.ID is empty a UUID is generated. IngestedAt is set to the current time (UTC, second precision).
func (r *DocumentRepo) Insert(ctx context.Context, doc *DocumentRecord) error {
	if doc.SourceRef == "" {
		return errors.New("document source ref is required")
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.IngestedAt = r.now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO documents (id, source_ref, url, title, ingested_at) VALUES (?, ?, ?, ?, ?)",
		doc.ID, doc.SourceRef, doc.URL, doc.Title, doc.IngestedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	var doc DocumentRecord
	var title sql.NullString
	var ingestedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, source_ref, url, title, ingested_at FROM documents WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.SourceRef, &doc.URL, &title, &ingestedAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.Title = title.String
	if doc.IngestedAt, err = parseTimestamp(ingestedAtStr); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListBySourceRef returns every document ingested under sourceRef, oldest first.
// Returns an empty slice if none exist (not an error).
func (r *DocumentRepo) ListBySourceRef(ctx context.Context, sourceRef string) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, source_ref, url, title, ingested_at FROM documents WHERE source_ref = ? ORDER BY ingested_at, id",
		sourceRef,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []DocumentRecord
	for rows.Next() {
		var doc DocumentRecord
		var title sql.NullString
		var ingestedAtStr string
		if err := rows.Scan(&doc.ID, &doc.SourceRef, &doc.URL, &title, &ingestedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Title = title.String
		if doc.IngestedAt, err = parseTimestamp(ingestedAtStr); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// ListSources returns one summary per source ref, ordered by source ref.
func (r *DocumentRepo) ListSources(ctx context.Context) ([]SourceSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.source_ref, COALESCE(MAX(d.title), ''), COUNT(DISTINCT d.id), COUNT(c.id), MAX(d.ingested_at)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.source_ref
		ORDER BY d.source_ref`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sources []SourceSummary
	for rows.Next() {
		var s SourceSummary
		var lastStr string
		if err := rows.Scan(&s.SourceRef, &s.Title, &s.Documents, &s.Chunks, &lastStr); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if s.LastIngestedAt, err = parseTimestamp(lastStr); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sources, nil
}

// RefByURL returns the source ref of the most recently ingested document
// fetched from url. Returns ErrNotFound if no document has that URL.
func (r *DocumentRepo) RefByURL(ctx context.Context, url string) (string, error) {
	var ref string
	err := r.db.QueryRowContext(ctx,
		"SELECT source_ref FROM documents WHERE url = ? ORDER BY ingested_at DESC, id LIMIT 1",
		url,
	).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query document by url: %w", err)
	}
	return ref, nil
}

// Delete removes a document and, through the foreign key, its chunks.
// Returns ErrNotFound if no document has the given ID.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
