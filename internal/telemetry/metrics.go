package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	EmbeddingFailures  metric.Int64Counter
	GenerationFailures metric.Int64Counter
	StreamTokens       metric.Int64Counter
	DocumentProcessing metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("contract-qa-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingFailures, err := meter.Int64Counter(
		"embedding.failures",
		metric.WithDescription("Embeddings replaced by the zero vector"),
	)
	if err != nil {
		return nil, err
	}

	generationFailures, err := meter.Int64Counter(
		"generation.failures",
		metric.WithDescription("Failed language model calls"),
	)
	if err != nil {
		return nil, err
	}

	streamTokens, err := meter.Int64Counter(
		"stream.tokens",
		metric.WithDescription("Text increments forwarded to streaming clients"),
	)
	if err != nil {
		return nil, err
	}

	documentProcessing, err := meter.Float64Histogram(
		"document.processing.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		EmbeddingFailures:  embeddingFailures,
		GenerationFailures: generationFailures,
		StreamTokens:       streamTokens,
		DocumentProcessing: documentProcessing,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordEmbeddingFailure counts one vector replaced by the zero fallback
func (m *Metrics) RecordEmbeddingFailure(ctx context.Context, purpose, reason string) {
	if m == nil {
		return
	}
	m.EmbeddingFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("embedding.purpose", purpose),
		attribute.String("embedding.reason", reason),
	))
}

// RecordGenerationFailure counts a failed generate call
func (m *Metrics) RecordGenerationFailure(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.GenerationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("generation.mode", mode)))
}

// RecordStreamToken counts a forwarded token event
func (m *Metrics) RecordStreamToken(ctx context.Context) {
	if m == nil {
		return
	}
	m.StreamTokens.Add(ctx, 1)
}

// RecordDocumentProcessing records ingestion duration
func (m *Metrics) RecordDocumentProcessing(duration float64, status string) {
	if m == nil {
		return
	}
	m.DocumentProcessing.Record(context.Background(), duration, metric.WithAttributes(
		attribute.String("document.status", status),
	))
}
