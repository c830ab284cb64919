package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/models"

	"golang.org/x/sync/errgroup"
)

// Purpose tells the embedding provider whether a text is stored content or
// a search query. Both purposes must map into the same vector space; only the
// provider task hint differs.
type Purpose int

const (
	PurposeDocument Purpose = iota
	PurposeQuery
)

func (p Purpose) String() string {
	if p == PurposeQuery {
		return "query"
	}
	return "document"
}

// Embedder is the external embedding capability
type Embedder interface {
	Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error)
}

// ErrEmbedderUnavailable is reported when no embedding capability is configured
var ErrEmbedderUnavailable = errors.New("embedding capability unavailable")

// Gateway turns texts into fixed-dimension vectors. It never fails an item:
// blank text, a missing capability, a provider error or a vector of the wrong
// size all yield the zero vector, so callers always get one vector per input.
type Gateway struct {
	embedder    Embedder
	dimension   int
	concurrency int
	metrics     *telemetry.Metrics
}

type GatewayOption func(*Gateway)

// WithConcurrency bounds the number of in-flight embedding calls per batch
func WithConcurrency(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithMetrics counts fallbacks
func WithMetrics(m *telemetry.Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// NewGateway wraps an embedder. A nil embedder is allowed and makes every
// vector the zero vector.
func NewGateway(embedder Embedder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		embedder:    embedder,
		dimension:   models.EmbeddingDimension,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimension returns the vector length produced by the gateway
func (g *Gateway) Dimension() int {
	return g.dimension
}

// Embed returns one vector per text, in input order. The only error is
// context cancellation.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embedAll(ctx, texts, PurposeDocument)
}

// EmbedChunks pairs every chunk with its vector
func (g *Gateway) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := g.embedAll(ctx, texts, PurposeDocument)
	if err != nil {
		return nil, err
	}

	out := make([]models.EmbeddedChunk, len(chunks))
	for i, ch := range chunks {
		out[i] = models.EmbeddedChunk{Chunk: ch, Embedding: vectors[i]}
	}
	return out, nil
}

// EmbedQuery embeds a search query. It falls back to the zero vector like
// document embedding does, which ranks every chunk at 0.
func (g *Gateway) EmbedQuery(ctx context.Context, query string) []float32 {
	return g.embedOne(ctx, query, PurposeQuery)
}

func (g *Gateway) embedAll(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, text := range texts {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			vectors[i] = g.embedOne(egCtx, text, purpose)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (g *Gateway) embedOne(ctx context.Context, text string, purpose Purpose) []float32 {
	if strings.TrimSpace(text) == "" {
		return g.zero()
	}
	if g.embedder == nil {
		g.fallback(ctx, purpose, "unavailable", ErrEmbedderUnavailable)
		return g.zero()
	}

	vec, err := g.embedder.Embed(ctx, text, purpose)
	if err != nil {
		g.fallback(ctx, purpose, "error", err)
		return g.zero()
	}
	if len(vec) != g.dimension {
		g.fallback(ctx, purpose, "dimension", fmt.Errorf("got %d values, want %d", len(vec), g.dimension))
		return g.zero()
	}
	return vec
}

func (g *Gateway) fallback(ctx context.Context, purpose Purpose, reason string, err error) {
	logger.WarnContext(ctx, "Embedding replaced by zero vector",
		"purpose", purpose.String(),
		"reason", reason,
		"error", err,
	)
	g.metrics.RecordEmbeddingFailure(ctx, purpose.String(), reason)
}

func (g *Gateway) zero() []float32 {
	return make([]float32, g.dimension)
}
