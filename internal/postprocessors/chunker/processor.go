// Package chunker splits extracted sections into overlapping token windows.
//
// Tokens are estimated the way model tokenizers tend to split text: each
// whitespace-delimited word costs one token per started four characters.
// Sections are read as one stream; chunks are verbatim substrings of the
// sections joined by a blank line, so citation snippets can always be found.
package chunker

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/lexical"
)

// Verify interface compliance.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = domain.DefaultChunkTokens

// DefaultOverlap is the default fraction of a chunk repeated in the next one.
const DefaultOverlap = domain.DefaultChunkOverlap

// DefaultMinTokens is the default size below which a section is merged forward.
const DefaultMinTokens = domain.DefaultMinChunkTokens

// sliverDivisor sets the slack (target/5) within which a window snaps to a
// section boundary instead of leaving a sliver behind.
const sliverDivisor = 5

// charsPerToken is the estimated number of characters per model token.
const charsPerToken = 4

// sectionSeparator joins consecutive sections in the chunk stream.
const sectionSeparator = "\n\n"

// Processor splits sections into chunks.
type Processor struct {
	chunkSize int
	overlap   float64
	minTokens int
	newID     func() string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap as a fraction of the chunk size.
func WithOverlap(ratio float64) Option {
	return func(p *Processor) {
		if ratio >= 0 && ratio < 1 {
			p.overlap = ratio
		}
	}
}

// WithMinTokens sets the size below which a section is merged into the next one.
func WithMinTokens(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.minTokens = n
		}
	}
}

// WithSettings applies chunking settings.
func WithSettings(s domain.ChunkingSettings) Option {
	return func(p *Processor) {
		WithChunkSize(s.TargetTokens)(p)
		WithOverlap(s.Overlap)(p)
		WithMinTokens(s.MinTokens)(p)
	}
}

// WithIDFunc overrides chunk ID generation.
func WithIDFunc(fn func() string) Option {
	return func(p *Processor) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		minTokens: DefaultMinTokens,
		newID:     func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.minTokens > p.chunkSize {
		p.minTokens = p.chunkSize
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// overlapTokens is the number of tokens shared by consecutive chunks.
func (p *Processor) overlapTokens() int {
	o := int(math.Round(float64(p.chunkSize) * p.overlap))
	if o >= p.chunkSize {
		o = p.chunkSize - 1
	}
	return o
}

// Chunk splits sections into chunks with contiguous ordinals starting at 0.
// A window may run on into the next section, but snaps to a section boundary
// lying within slack of the target size, so a section that fits stays whole.
// Sections shorter than the minimum are merged forward into the next one.
func (p *Processor) Chunk(ctx context.Context, documentID string, sections []domain.Section) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := newStream(coalesce(sections, p.minTokens))
	windows := p.windows(doc)
	chunks := make([]domain.Chunk, 0, len(windows))

	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content := doc.text[window.start:window.end]
		sec := doc.sections[window.section]
		chunks = append(chunks, domain.Chunk{
			ID:           p.newID(),
			DocumentID:   documentID,
			Ordinal:      len(chunks),
			Content:      content,
			TokenCount:   window.tokens,
			SectionLabel: sec.Label(),
			Page:         sec.Page,
			LexicalKey:   lexical.Key(content),
		})
	}

	return chunks, nil
}

// span is a byte range of the stream text.
type span struct {
	start, end int
	tokens     int
	section    int
}

// stream is the joined text of a document's sections with its words.
type stream struct {
	text     string
	sections []domain.Section
	words    []span
	// bounds[i] is the word index one past the end of section i.
	bounds []int
}

func newStream(sections []domain.Section) *stream {
	var b strings.Builder
	s := &stream{sections: sections}

	for i, sec := range sections {
		if i > 0 {
			b.WriteString(sectionSeparator)
		}
		offset := b.Len()
		b.WriteString(sec.Text)
		for _, w := range wordSpans(sec.Text) {
			w.start += offset
			w.end += offset
			w.section = i
			s.words = append(s.words, w)
		}
		s.bounds = append(s.bounds, len(s.words))
	}

	s.text = b.String()
	return s
}

// windows returns the chunk ranges of the stream.
func (p *Processor) windows(doc *stream) []span {
	n := len(doc.words)
	if n == 0 {
		return nil
	}

	// cum[i] is the token count of the first i words
	cum := make([]int, n+1)
	for i, w := range doc.words {
		cum[i+1] = cum[i] + w.tokens
	}

	overlap := p.overlapTokens()
	slack := p.chunkSize / sliverDivisor

	var out []span
	start := 0
	for {
		end, snapped := p.windowEnd(cum, doc.bounds, start, slack)
		out = append(out, doc.window(start, end))
		if end == n {
			return out
		}
		if snapped {
			start = end
			continue
		}
		start = overlapStart(cum, start, end, overlap)
	}
}

// windowEnd returns the word index ending the window that begins at start,
// and whether it was snapped to a section boundary. The end of the document
// is a boundary too, which folds a short tail into the last window.
func (p *Processor) windowEnd(cum, bounds []int, start, slack int) (int, bool) {
	base := cum[start]
	for _, b := range bounds {
		if b <= start {
			continue
		}
		size := cum[b] - base
		if size > p.chunkSize+slack {
			break
		}
		if size >= p.chunkSize-slack {
			return b, true
		}
	}

	n := len(cum) - 1
	end := start + 1
	for end < n && cum[end+1]-base <= p.chunkSize {
		end++
	}
	return end, false
}

// overlapStart steps back from end until at least overlap tokens are
// repeated, always leaving the next window ahead of start.
func overlapStart(cum []int, start, end, overlap int) int {
	next := end
	for next > start+1 && cum[end]-cum[next] < overlap {
		next--
	}
	return next
}

// window builds the span of words [start, end), labelled with the section
// contributing most of its tokens. Ties go to the earlier section.
func (s *stream) window(start, end int) span {
	out := span{start: s.words[start].start, end: s.words[end-1].end}

	best, current, count := 0, -1, 0
	for _, w := range s.words[start:end] {
		out.tokens += w.tokens
		if w.section != current {
			current, count = w.section, 0
		}
		count += w.tokens
		if count > best {
			best, out.section = count, current
		}
	}
	return out
}

// wordSpans returns the byte ranges of whitespace-delimited words.
func wordSpans(text string) []span {
	var spans []span
	inWord := false
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if inWord {
				spans = append(spans, span{start: start, end: i, tokens: wordTokens(text[start:i])})
				inWord = false
			}
		} else if !inWord {
			start = i
			inWord = true
		}
		i += size
	}
	if inWord {
		spans = append(spans, span{start: start, end: len(text), tokens: wordTokens(text[start:])})
	}
	return spans
}

// wordTokens estimates the model tokens of a single word.
func wordTokens(word string) int {
	return (utf8.RuneCountInString(word) + charsPerToken - 1) / charsPerToken
}

// CountTokens returns the estimated number of model tokens in text.
func CountTokens(text string) int {
	total := 0
	for _, word := range strings.Fields(text) {
		total += wordTokens(word)
	}
	return total
}

// coalesce merges sections with fewer than minTokens tokens into the following
// section. The merged section keeps the first section's label and page.
// A short final section stays on its own.
func coalesce(sections []domain.Section, minTokens int) []domain.Section {
	out := make([]domain.Section, 0, len(sections))
	var pending *domain.Section

	for _, sec := range sections {
		if strings.TrimSpace(sec.Text) == "" {
			continue
		}
		if pending != nil {
			sec.Title, sec.Page, sec.Index = pending.Title, pending.Page, pending.Index
			sec.Text = pending.Text + "\n\n" + sec.Text
			pending = nil
		}
		if CountTokens(sec.Text) < minTokens {
			s := sec
			pending = &s
			continue
		}
		out = append(out, sec)
	}
	if pending != nil {
		out = append(out, *pending)
	}
	return out
}
