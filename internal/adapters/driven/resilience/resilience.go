// Package resilience wraps AI providers with a client-side rate limit and a
// circuit breaker so a failing provider is not hammered by retries.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Ensure wrappers implement the interfaces.
var (
	_ driven.EmbeddingService = (*Embedder)(nil)
	_ driven.LLMService       = (*LLM)(nil)
)

// Options configures a wrapper.
type Options struct {
	// Name labels the breaker in logs.
	Name string

	// RequestsPerSecond limits outgoing calls. Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter burst (default: 1).
	Burst int

	// OpenFor is how long the breaker stays open (default: 30s).
	OpenFor time.Duration

	// TripAfter consecutive failures opens the breaker (default: 5).
	TripAfter uint32
}

type guard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newGuard(opts Options) *guard {
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	g := &guard{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: 1,
			Timeout:     opts.OpenFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.TripAfter
			},
			// Rejected input and bad credentials say nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, domain.ErrInvalidInput) ||
					errors.Is(err, domain.ErrUnauthorized) ||
					errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
	if opts.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return g
}

func (g *guard) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	result, err := g.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s unavailable: %w", g.breaker.Name(), err)
	}
	return result, err
}

// State reports the breaker state, for status output.
func (g *guard) State() gobreaker.State {
	return g.breaker.State()
}

// Embedder guards an embedding service.
type Embedder struct {
	*guard
	next driven.EmbeddingService
}

// WrapEmbedder guards next with opts.
func WrapEmbedder(next driven.EmbeddingService, opts Options) *Embedder {
	if opts.Name == "" {
		opts.Name = "embedding:" + next.ModelName()
	}
	return &Embedder{guard: newGuard(opts), next: next}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.do(ctx, func() (interface{}, error) { return e.next.Embed(ctx, text) })
	if err != nil {
		return nil, err
	}
	vec, _ := v.([]float32)
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := e.do(ctx, func() (interface{}, error) { return e.next.EmbedBatch(ctx, texts) })
	if err != nil {
		return nil, err
	}
	vecs, _ := v.([][]float32)
	return vecs, nil
}

func (e *Embedder) Dimensions() int                { return e.next.Dimensions() }
func (e *Embedder) ModelName() string              { return e.next.ModelName() }
func (e *Embedder) Ping(ctx context.Context) error { return e.next.Ping(ctx) }
func (e *Embedder) Close() error                   { return e.next.Close() }

// LLM guards a generation service. Only stream creation passes the
// breaker; fragments of an open stream are not counted.
type LLM struct {
	*guard
	next driven.LLMService
}

// WrapLLM guards next with opts.
func WrapLLM(next driven.LLMService, opts Options) *LLM {
	if opts.Name == "" {
		opts.Name = "llm:" + next.ModelName()
	}
	return &LLM{guard: newGuard(opts), next: next}
}

func (l *LLM) Complete(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	v, err := l.do(ctx, func() (interface{}, error) { return l.next.Complete(ctx, messages, opts) })
	if err != nil {
		return "", err
	}
	answer, _ := v.(string)
	return answer, nil
}

func (l *LLM) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.TextStream, error) {
	v, err := l.do(ctx, func() (interface{}, error) { return l.next.Stream(ctx, messages, opts) })
	if err != nil {
		return nil, err
	}
	stream, _ := v.(driven.TextStream)
	return stream, nil
}

func (l *LLM) ModelName() string              { return l.next.ModelName() }
func (l *LLM) Ping(ctx context.Context) error { return l.next.Ping(ctx) }
func (l *LLM) Close() error                   { return l.next.Close() }
