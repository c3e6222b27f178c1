package memory

import (
	"context"
	"sort"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

type documentStore struct{ s *Store }

var _ driven.DocumentStore = (*documentStore)(nil)

func (d *documentStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if _, ok := d.s.documents[doc.ID]; ok {
		return domain.ErrInvalidInput
	}
	d.s.documents[doc.ID] = *doc
	return nil
}

func (d *documentStore) GetDocument(_ context.Context, ownerID, id string) (*domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	doc, ok := d.s.owned(ownerID, id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (d *documentStore) ListDocuments(_ context.Context, ownerID string) ([]domain.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range d.s.documents {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (d *documentStore) RenameDocument(_ context.Context, ownerID, id, title string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	doc, ok := d.s.owned(ownerID, id)
	if !ok {
		return domain.ErrNotFound
	}
	doc.Title = title
	doc.UpdatedAt = time.Now()
	d.s.documents[id] = doc
	return nil
}

func (d *documentStore) UpdateStatus(_ context.Context, ownerID, id string, u driven.StatusUpdate) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	doc, ok := d.s.owned(ownerID, id)
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = u.Status
	doc.ErrorReason = u.ErrorReason
	if u.PageCount != nil {
		pages := *u.PageCount
		doc.PageCount = &pages
	}
	if u.ChunkCount >= 0 {
		doc.ChunkCount = u.ChunkCount
	}
	doc.UpdatedAt = time.Now()
	d.s.documents[id] = doc
	return nil
}

// DeleteDocument removes the document with its chunks, vectors and jobs.
func (d *documentStore) DeleteDocument(ctx context.Context, ownerID, id string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if _, ok := d.s.owned(ownerID, id); !ok {
		return domain.ErrNotFound
	}
	if err := d.s.dropChunks(ctx, id); err != nil {
		return err
	}
	delete(d.s.documents, id)
	for jobID, job := range d.s.jobs {
		if job.DocumentID == id {
			delete(d.s.jobs, jobID)
			delete(d.s.jobSeq, jobID)
		}
	}
	return nil
}

// owned returns the document if it belongs to ownerID. Callers hold the lock.
func (s *Store) owned(ownerID, id string) (domain.Document, bool) {
	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return domain.Document{}, false
	}
	return doc, true
}
