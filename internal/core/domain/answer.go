package domain

// InsufficientGroundingAnswer is returned when no source meets the relevance threshold.
// The generation model is never called in that case.
const InsufficientGroundingAnswer = "I couldn't find anything in this document that answers your question. " +
	"Try rephrasing it or asking about a topic the document covers."

// NoAnswerFallback is the phrase the model is told to use when the excerpts fall short.
const NoAnswerFallback = "No answer in provided sources."

// Query is a question about a single document.
type Query struct {
	DocumentID string
	OwnerID    string
	Question   string
}

// Citation binds part of an answer to a verbatim source passage.
type Citation struct {
	// Number is the 1-based label used in the prompt, as in [Citation 1].
	Number int `json:"number"`

	ChunkID string `json:"chunkId"`
	Ordinal int    `json:"ordinal"`

	// Page is 0 when the source format has no pages.
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`

	// Snippet is a verbatim substring of the chunk content.
	Snippet string `json:"snippet"`

	// Relevance is derived from the fused score.
	Relevance float64 `json:"relevance"`
}

// AnswerResult is a complete answer.
type AnswerResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	TraceID   string     `json:"traceId"`

	// Grounded is false for the insufficient-grounding response.
	Grounded bool `json:"grounded"`
}

// AnswerEventType tags a streamed answer event.
type AnswerEventType string

// Stream event types.
const (
	EventStatus    AnswerEventType = "status"
	EventFragment  AnswerEventType = "fragment"
	EventCitations AnswerEventType = "citations"
	EventDone      AnswerEventType = "done"
	EventError     AnswerEventType = "error"
)

// Status event values.
const (
	StatusSearching  = "searching"
	StatusGenerating = "generating"
)

// AnswerEvent is one element of an answer stream.
// A stream always ends with exactly one done or error event.
type AnswerEvent struct {
	Type      AnswerEventType `json:"type"`
	Text      string          `json:"text,omitempty"`
	Status    string          `json:"status,omitempty"`
	Citations []Citation      `json:"citations,omitempty"`
	TraceID   string          `json:"traceId,omitempty"`
	Grounded  bool            `json:"grounded,omitempty"`
	// Error is the raw message for in-process consumers. Network transports
	// rewrite it from Err so internal detail stays server-side.
	Error     string          `json:"error,omitempty"`
	Err       error           `json:"-"`
}
