package extractors

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/extractors/docx"
	"github.com/custodia-labs/studyrag/internal/extractors/eml"
	"github.com/custodia-labs/studyrag/internal/extractors/html"
	"github.com/custodia-labs/studyrag/internal/extractors/markdown"
	"github.com/custodia-labs/studyrag/internal/extractors/pdf"
	"github.com/custodia-labs/studyrag/internal/extractors/plaintext"
	"github.com/custodia-labs/studyrag/internal/extractors/xlsx"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Verify interface compliance.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// extensionTypes covers extensions the mime package may not know.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".pdf":      pdf.MIMEType,
	".docx":     docx.MIMEType,
	".xlsx":     xlsx.MIMEType,
	".html":     "text/html",
	".htm":      "text/html",
	".eml":      eml.MIMEType,
}

// Registry dispatches files to extraction strategies by MIME type.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.Extractor
	timeout    time.Duration
	maxBytes   int64
}

// Option configures the registry.
type Option func(*Registry)

// WithTimeout bounds a whole extraction, across all strategies tried.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxBytes rejects files larger than n bytes.
func WithMaxBytes(n int64) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		timeout:  domain.DefaultIngestionSettings().ExtractionTimeout,
		maxBytes: domain.DefaultMaxFileBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry creates a registry with every built-in strategy.
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
	r.Register(pdf.NewCLI())
	r.Register(xlsx.New())
	r.Register(eml.New())
	return r
}

// Register adds an extractor to the registry.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, extractor)
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() > r.extractors[j].Priority()
	})
}

// SupportedMIMETypes returns all MIME types that can be extracted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var types []string
	for _, e := range r.extractors {
		for _, t := range e.SupportedMIMETypes() {
			if _, ok := seen[t]; ok || t == plaintext.Wildcard {
				continue
			}
			seen[t] = struct{}{}
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// candidates returns format-specific strategies followed by fallbacks.
func (r *Registry) candidates(mimeType string) (specific, fallback []driven.Extractor) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.extractors {
		for _, t := range e.SupportedMIMETypes() {
			if t == mimeType {
				specific = append(specific, e)
				break
			}
			if t == plaintext.Wildcard {
				fallback = append(fallback, e)
				break
			}
		}
	}
	return specific, fallback
}

// Extract runs matching strategies in priority order. The first strategy to
// return at least one non-blank character wins.
func (r *Registry) Extract(ctx context.Context, in *driven.ExtractInput) (*driven.ExtractResult, error) {
	if in == nil || len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrCorruptFile)
	}
	if r.maxBytes > 0 && int64(len(in.Data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: file too large (%d bytes, limit %d)", domain.ErrUnsupportedFormat, len(in.Data), r.maxBytes)
	}

	mimeType := DetectMIMEType(in.MIMEType, in.FileName, in.Data)
	specific, fallback := r.candidates(mimeType)

	strategies := specific
	if plaintext.IsPlausiblyText(in.Data) {
		strategies = append(strategies, fallback...)
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	input := *in
	input.MIMEType = mimeType

	var lastErr error
	for _, e := range strategies {
		sections, err := run(ctx, e, &input)
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: after %s", domain.ErrExtractionTimeout, r.timeout)
			}
			return nil, ctx.Err()
		}
		if err != nil {
			logger.Debug("extractor %s failed for %s: %v", e.Name(), mimeType, err)
			lastErr = err
			continue
		}
		if !hasText(sections) {
			logger.Debug("extractor %s found no text for %s", e.Name(), mimeType)
			lastErr = fmt.Errorf("%w: no extractable text", domain.ErrCorruptFile)
			continue
		}

		return &driven.ExtractResult{
			Sections:  reindex(sections),
			PageCount: pageCount(sections),
			Strategy:  e.Name(),
		}, nil
	}

	if errors.Is(lastErr, domain.ErrCorruptFile) || errors.Is(lastErr, domain.ErrUnsupportedFormat) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, lastErr)
}

type extractOutcome struct {
	sections []domain.Section
	err      error
}

// run executes one strategy, returning early when ctx expires even if
// the strategy itself ignores cancellation.
func run(ctx context.Context, e driven.Extractor, in *driven.ExtractInput) ([]domain.Section, error) {
	done := make(chan extractOutcome, 1)
	go func() {
		sections, err := e.Extract(ctx, in)
		done <- extractOutcome{sections: sections, err: err}
	}()

	select {
	case out := <-done:
		return out.sections, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func hasText(sections []domain.Section) bool {
	for _, s := range sections {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// reindex drops blank sections and renumbers the rest in reading order.
func reindex(sections []domain.Section) []domain.Section {
	out := make([]domain.Section, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		s.Index = len(out)
		out = append(out, s)
	}
	return out
}

func pageCount(sections []domain.Section) *int {
	maxPage := 0
	for _, s := range sections {
		if s.Page > maxPage {
			maxPage = s.Page
		}
	}
	if maxPage == 0 {
		return nil
	}
	return &maxPage
}

// DetectMIMEType normalises the declared type, falling back to the file
// extension and then to content sniffing when the declaration is generic.
func DetectMIMEType(declared, fileName string, data []byte) string {
	if t := normalise(declared); t != "" && t != "application/octet-stream" {
		return t
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := normalise(mime.TypeByExtension(ext)); t != "" {
		return t
	}
	return normalise(http.DetectContentType(data))
}

// normalise strips parameters and lowercases a MIME type.
func normalise(t string) string {
	if t == "" {
		return ""
	}
	if media, _, err := mime.ParseMediaType(t); err == nil {
		return media
	}
	return strings.ToLower(strings.TrimSpace(t))
}
