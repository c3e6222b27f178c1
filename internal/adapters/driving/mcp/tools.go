package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// AskInput is the input schema for the ask_document tool.
type AskInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of a ready document, see list_documents"`
	Question   string `json:"question" jsonschema:"the question to answer from the document"`
}

// AskOutput is the output schema for the ask_document tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	Grounded  bool             `json:"grounded"`
	TraceID   string           `json:"trace_id"`
	Citations []CitationOutput `json:"citations"`
}

// CitationOutput is one source passage backing an answer.
type CitationOutput struct {
	Number    int     `json:"number"`
	ChunkID   string  `json:"chunk_id"`
	Page      int     `json:"page,omitempty"`
	Section   string  `json:"section,omitempty"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// DocumentInput selects one document.
type DocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document id"`
}

// StatusOutput is the output schema for the ingestion_status tool.
type StatusOutput struct {
	DocumentID      string `json:"document_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	ChunkCount      int    `json:"chunk_count"`
	EmbeddingCount  int    `json:"embedding_count"`
	ErrorReason     string `json:"error_reason,omitempty"`
}

// ListInput is the (empty) input schema for list_documents.
type ListInput struct{}

// ListOutput is the output schema for the list_documents tool.
type ListOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput summarises a document.
type DocumentOutput struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	PageCount  int       `json:"page_count,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_document",
		Description: "Answer a question using only the passages of one study document, with citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the user's documents and their ingestion state",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingestion_status",
		Description: "Report ingestion progress for a document",
	}, s.handleStatus)

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_document",
			Description: "Start (or restart) ingestion of a registered document",
		}, s.handleIngest)
	}
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	res, err := s.ports.Query.Answer(ctx, domain.Query{
		DocumentID: input.DocumentID,
		OwnerID:    s.ports.Owner,
		Question:   input.Question,
	})
	if err != nil {
		return nil, AskOutput{}, toolError(err)
	}

	out := AskOutput{
		Answer:    res.Answer,
		Grounded:  res.Grounded,
		TraceID:   res.TraceID,
		Citations: make([]CitationOutput, len(res.Citations)),
	}
	for i, c := range res.Citations {
		out.Citations[i] = CitationOutput{
			Number:    c.Number,
			ChunkID:   c.ChunkID,
			Page:      c.Page,
			Section:   c.Section,
			Snippet:   c.Snippet,
			Relevance: c.Relevance,
		}
	}
	return nil, out, nil
}

func (s *Server) handleList(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	docs, err := s.ports.Document.List(ctx, s.ports.Owner)
	if err != nil {
		return nil, ListOutput{}, toolError(err)
	}

	out := ListOutput{Documents: make([]DocumentOutput, len(docs)), Count: len(docs)}
	for i := range docs {
		out.Documents[i] = documentOutput(&docs[i])
	}
	return nil, out, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Ingestion == nil {
		doc, err := s.ports.Document.Get(ctx, s.ports.Owner, input.DocumentID)
		if err != nil {
			return nil, StatusOutput{}, toolError(err)
		}
		return nil, StatusOutput{
			DocumentID:  doc.ID,
			Status:      doc.Status.String(),
			ChunkCount:  doc.ChunkCount,
			ErrorReason: doc.ErrorReason,
		}, nil
	}

	st, err := s.ports.Ingestion.Status(ctx, s.ports.Owner, input.DocumentID)
	if err != nil {
		return nil, StatusOutput{}, toolError(err)
	}
	return nil, StatusOutput{
		DocumentID:      st.DocumentID,
		Status:          st.Status.String(),
		ProgressPercent: st.ProgressPercent,
		ChunkCount:      st.ChunkCount,
		EmbeddingCount:  st.EmbeddingCount,
		ErrorReason:     st.ErrorReason,
	}, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	h, err := s.ports.Ingestion.Ingest(ctx, domain.IngestionTrigger{
		DocumentID: input.DocumentID,
		OwnerID:    s.ports.Owner,
	})
	if err != nil {
		return nil, IngestOutput{}, toolError(err)
	}
	return nil, IngestOutput{Status: h.Status, DocumentID: h.DocumentID, JobID: h.JobID}, nil
}

func documentOutput(d *domain.Document) DocumentOutput {
	out := DocumentOutput{
		ID:         d.ID,
		Title:      d.Title,
		Status:     d.Status.String(),
		ChunkCount: d.ChunkCount,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.PageCount != nil {
		out.PageCount = *d.PageCount
	}
	return out
}
