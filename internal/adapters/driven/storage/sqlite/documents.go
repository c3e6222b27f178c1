package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, owner_id, title, storage_locator, mime_type, status,
	page_count, chunk_count, error_reason, created_at, updated_at`

// CreateDocument stores a newly registered document.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.OwnerID, doc.Title, doc.StorageLocator, doc.MIMEType, string(doc.Status),
		nullInt(doc.PageCount), doc.ChunkCount, doc.ErrorReason, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document owned by ownerID.
func (s *documentStore) GetDocument(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListDocuments returns the owner's documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// RenameDocument changes the title.
func (s *documentStore) RenameDocument(ctx context.Context, ownerID, id, title string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET title = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, title, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("renaming document: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus applies an ingestion status transition.
func (s *documentStore) UpdateStatus(ctx context.Context, ownerID, id string, u driven.StatusUpdate) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET
			status = ?,
			error_reason = ?,
			page_count = COALESCE(?, page_count),
			chunk_count = CASE WHEN ? >= 0 THEN ? ELSE chunk_count END,
			updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, string(u.Status), u.ErrorReason, nullInt(u.PageCount), u.ChunkCount, u.ChunkCount,
		time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return requireAffected(res)
}

// DeleteDocument removes a document. Chunks, embeddings and jobs cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, ownerID, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res)
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc       domain.Document
		status    string
		pageCount sql.NullInt64
	)
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.StorageLocator, &doc.MIMEType, &status,
		&pageCount, &doc.ChunkCount, &doc.ErrorReason, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	if pageCount.Valid {
		n := int(pageCount.Int64)
		doc.PageCount = &n
	}
	return &doc, nil
}

// requireAffected maps a zero-row update to domain.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
