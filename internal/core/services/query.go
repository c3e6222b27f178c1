package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers questions about one ready document: hybrid
// retrieval, citation extraction, then grounded generation.
type QueryService struct {
	docStore  driven.DocumentStore
	lexical   *LexicalRetriever
	vector    *VectorRetriever
	ranker    *HybridRanker
	citations *CitationExtractor
	generator *AnswerGenerator
	timeout   time.Duration
}

// NewQueryService wires the query pipeline from its parts.
func NewQueryService(
	docStore driven.DocumentStore,
	lexical *LexicalRetriever,
	vector *VectorRetriever,
	ranker *HybridRanker,
	citations *CitationExtractor,
	generator *AnswerGenerator,
	timeout time.Duration,
) *QueryService {
	if timeout <= 0 {
		timeout = domain.DefaultRetrievalSettings().Timeout
	}
	return &QueryService{
		docStore:  docStore,
		lexical:   lexical,
		vector:    vector,
		ranker:    ranker,
		citations: citations,
		generator: generator,
		timeout:   timeout,
	}
}

// NewQueryServiceFromSettings builds the whole pipeline from settings.
func NewQueryServiceFromSettings(
	docStore driven.DocumentStore,
	chunks driven.ChunkStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	retrieval domain.RetrievalSettings,
	llmSettings domain.LLMSettings,
) *QueryService {
	return NewQueryService(
		docStore,
		NewLexicalRetriever(chunks, retrieval.LexicalK),
		NewVectorRetriever(chunks, embedder, retrieval.VectorK),
		NewHybridRanker(retrieval.LexicalWeight, retrieval.VectorWeight, retrieval.MaxContextChunks),
		NewCitationExtractor(retrieval),
		NewAnswerGenerator(llm, prompts, llmSettings),
		retrieval.Timeout,
	)
}

// Retrieve runs hybrid retrieval and returns the diversified candidates.
func (s *QueryService) Retrieve(ctx context.Context, q domain.Query) ([]domain.RetrievalCandidate, error) {
	if _, err := s.readyDocument(ctx, q); err != nil {
		return nil, err
	}
	return s.retrieve(ctx, q)
}

// Answer returns a complete grounded answer.
func (s *QueryService) Answer(ctx context.Context, q domain.Query) (*domain.AnswerResult, error) {
	ctx, span := tracer.Start(ctx, "query.answer", trace.WithAttributes(
		attribute.String("document.id", q.DocumentID),
	))
	defer span.End()

	result, err := s.answer(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		count(ctx, queries, attribute.String("outcome", "error"))
		return nil, err
	}
	count(ctx, queries, attribute.String("outcome", outcome(result.Grounded)))
	return result, nil
}

func (s *QueryService) answer(ctx context.Context, q domain.Query) (*domain.AnswerResult, error) {
	doc, err := s.readyDocument(ctx, q)
	if err != nil {
		return nil, err
	}
	candidates, err := s.retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	result := &domain.AnswerResult{TraceID: traceID(ctx), Citations: []domain.Citation{}}
	citations := s.citations.Extract(q.Question, candidates)
	if len(citations) == 0 {
		logger.Debug("query on %s: no candidate met the relevance threshold", q.DocumentID)
		result.Answer = domain.InsufficientGroundingAnswer
		return result, nil
	}

	answer, err := s.generator.Generate(ctx, doc.Title, q.Question, excerpts(citations, candidates))
	if err != nil {
		return nil, err
	}
	result.Answer = answer
	result.Citations = citations
	result.Grounded = true
	return result, nil
}

// Stream answers incrementally. Validation and the readiness check happen
// before the channel is returned; later failures arrive as an error event.
// Every stream ends with exactly one done or error event unless ctx is
// cancelled, in which case generation stops and the channel closes.
func (s *QueryService) Stream(ctx context.Context, q domain.Query) (<-chan domain.AnswerEvent, error) {
	doc, err := s.readyDocument(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.AnswerEvent)
	go func() {
		defer close(out)

		ctx, span := tracer.Start(ctx, "query.stream", trace.WithAttributes(
			attribute.String("document.id", q.DocumentID),
		))
		defer span.End()
		tid := traceID(ctx)

		send := func(ev domain.AnswerEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		fail := func(err error) {
			logger.Warn("query stream on %s failed: %v", q.DocumentID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "query failed")
			count(ctx, queries, attribute.String("outcome", "error"))
			send(domain.AnswerEvent{Type: domain.EventError, Error: err.Error(), Err: err, TraceID: tid})
		}

		if !send(domain.AnswerEvent{Type: domain.EventStatus, Status: domain.StatusSearching}) {
			return
		}
		candidates, err := s.retrieve(ctx, q)
		if err != nil {
			fail(err)
			return
		}

		citations := s.citations.Extract(q.Question, candidates)
		if len(citations) == 0 {
			count(ctx, queries, attribute.String("outcome", outcome(false)))
			_ = send(domain.AnswerEvent{Type: domain.EventFragment, Text: domain.InsufficientGroundingAnswer}) &&
				send(domain.AnswerEvent{Type: domain.EventCitations, Citations: []domain.Citation{}}) &&
				send(domain.AnswerEvent{Type: domain.EventDone, TraceID: tid})
			return
		}

		if !send(domain.AnswerEvent{Type: domain.EventStatus, Status: domain.StatusGenerating}) {
			return
		}
		stream, err := s.generator.Stream(ctx, doc.Title, q.Question, excerpts(citations, candidates))
		if err != nil {
			fail(err)
			return
		}
		defer stream.Close()

		var emitted bool
		for {
			fragment, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fail(fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err))
				return
			}
			if fragment == "" {
				continue
			}
			if !send(domain.AnswerEvent{Type: domain.EventFragment, Text: fragment}) {
				return
			}
			emitted = true
		}
		if !emitted && !send(domain.AnswerEvent{Type: domain.EventFragment, Text: domain.NoAnswerFallback}) {
			return
		}

		count(ctx, queries, attribute.String("outcome", outcome(true)))
		_ = send(domain.AnswerEvent{Type: domain.EventCitations, Citations: citations}) &&
			send(domain.AnswerEvent{Type: domain.EventDone, TraceID: tid, Grounded: true})
	}()
	return out, nil
}

// readyDocument validates the query and rejects documents that are not ready.
func (s *QueryService) readyDocument(ctx context.Context, q domain.Query) (*domain.Document, error) {
	if q.OwnerID == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(q.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	doc, err := s.docStore.GetDocument(ctx, q.OwnerID, q.DocumentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsReady() {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrDocumentNotReady, doc.Status)
	}
	return doc, nil
}

type retrieved struct {
	results []domain.ScoredChunk
	err     error
}

// retrieve runs both retrievers concurrently under the retrieval timeout.
func (s *QueryService) retrieve(ctx context.Context, q domain.Query) ([]domain.RetrievalCandidate, error) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lexCh := make(chan retrieved, 1)
	vecCh := make(chan retrieved, 1)
	go func() {
		results, err := s.lexical.Retrieve(rctx, q.OwnerID, q.DocumentID, q.Question)
		lexCh <- retrieved{results, err}
	}()
	go func() {
		results, err := s.vector.Retrieve(rctx, q.OwnerID, q.DocumentID, q.Question)
		vecCh <- retrieved{results, err}
	}()

	var lex, vec retrieved
	for received := 0; received < 2; received++ {
		select {
		case lex = <-lexCh:
		case vec = <-vecCh:
		case <-rctx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: after %s", domain.ErrRetrievalTimeout, s.timeout)
		}
	}
	if err := errors.Join(lex.err, vec.err); err != nil {
		if rctx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: after %s", domain.ErrRetrievalTimeout, s.timeout)
		}
		return nil, err
	}

	candidates := s.ranker.Rank(lex.results, vec.results)
	logger.Debug("query on %s: %d lexical, %d vector, %d fused", q.DocumentID, len(lex.results), len(vec.results), len(candidates))
	return candidates, nil
}

// excerpts pairs each citation with its chunk's full content.
func excerpts(citations []domain.Citation, candidates []domain.RetrievalCandidate) []Excerpt {
	content := make(map[string]string, len(candidates))
	for _, c := range candidates {
		content[c.Chunk.ID] = c.Chunk.Content
	}
	out := make([]Excerpt, len(citations))
	for i, c := range citations {
		out[i] = Excerpt{Citation: c, Content: content[c.ChunkID]}
	}
	return out
}

func outcome(grounded bool) string {
	if grounded {
		return "grounded"
	}
	return "insufficient"
}
