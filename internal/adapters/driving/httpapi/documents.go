package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

type registerRequest struct {
	Title          string `json:"title"`
	StorageLocator string `json:"storageLocator"`
	MIMEType       string `json:"mimeType"`

	// Ingest starts ingestion right after registration.
	Ingest bool `json:"ingest"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type documentResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	MIMEType    string                `json:"mimeType,omitempty"`
	Status      domain.DocumentStatus `json:"status"`
	PageCount   *int                  `json:"pageCount,omitempty"`
	ChunkCount  int                   `json:"chunkCount"`
	ErrorReason string                `json:"errorReason,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`

	Job *domain.IngestionHandle `json:"job,omitempty"`
}

func toDocumentResponse(d *domain.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		Title:       d.Title,
		MIMEType:    d.MIMEType,
		Status:      d.Status,
		PageCount:   d.PageCount,
		ChunkCount:  d.ChunkCount,
		ErrorReason: d.ErrorReason,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	owner := ownerFrom(r.Context())
	doc, err := s.svc.Documents.Register(r.Context(), driving.RegisterRequest{
		OwnerID:        owner,
		Title:          req.Title,
		StorageLocator: req.StorageLocator,
		MIMEType:       req.MIMEType,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := toDocumentResponse(doc)
	if req.Ingest {
		handle, err := s.svc.Ingestion.Ingest(r.Context(), domain.IngestionTrigger{
			DocumentID: doc.ID,
			OwnerID:    owner,
			MIMEType:   doc.MIMEType,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Job = handle
		resp.Status = domain.StatusProcessing
	}

	w.Header().Set("Location", "/v1/documents/"+doc.ID)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Documents.List(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]documentResponse, len(docs))
	for i := range docs {
		out[i] = toDocumentResponse(&docs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out, "count": len(out)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Documents.Get(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, fmt.Errorf("%w: title is required", domain.ErrInvalidInput))
		return
	}

	owner, id := ownerFrom(r.Context()), chi.URLParam(r, "id")
	if err := s.svc.Documents.Rename(r.Context(), owner, id, req.Title); err != nil {
		writeError(w, err)
		return
	}
	s.handleGet(w, r)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Documents.Delete(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	handle, err := s.svc.Ingestion.Ingest(r.Context(), domain.IngestionTrigger{
		DocumentID: chi.URLParam(r, "id"),
		OwnerID:    ownerFrom(r.Context()),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Ingestion.Status(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
