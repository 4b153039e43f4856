package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	TokensUsed         metric.Int64Counter
	IndexingDuration   metric.Float64Histogram
	ChunksIndexed      metric.Int64Counter
	SearchesPerformed  metric.Int64Counter
	ValidationOutcomes metric.Int64Counter
	EmbeddingFallbacks metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("course-assistant-platform")

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

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"indexing.duration",
		metric.WithDescription("Content indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"indexing.chunks.total",
		metric.WithDescription("Total chunks written to the vector index"),
	)
	if err != nil {
		return nil, err
	}

	searchesPerformed, err := meter.Int64Counter(
		"retrieval.searches.total",
		metric.WithDescription("Total similarity searches performed"),
	)
	if err != nil {
		return nil, err
	}

	validationOutcomes, err := meter.Int64Counter(
		"validation.outcomes.total",
		metric.WithDescription("Validation runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	embeddingFallbacks, err := meter.Int64Counter(
		"embeddings.fallbacks.total",
		metric.WithDescription("Batches re-embedded with the local provider"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		TokensUsed:         tokensUsed,
		IndexingDuration:   indexingDuration,
		ChunksIndexed:      chunksIndexed,
		SearchesPerformed:  searchesPerformed,
		ValidationOutcomes: validationOutcomes,
		EmbeddingFallbacks: embeddingFallbacks,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordIndexing records one indexing run
func (m *Metrics) RecordIndexing(duration float64, chunks int, provider string) {
	attrs := []attribute.KeyValue{
		attribute.String("embedding.provider", provider),
	}

	m.IndexingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.ChunksIndexed.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
}

// RecordSearch records one similarity search
func (m *Metrics) RecordSearch(found bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("retrieval.found", found),
	}

	m.SearchesPerformed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordValidation records one validation outcome
func (m *Metrics) RecordValidation(contentType string, valid bool) {
	attrs := []attribute.KeyValue{
		attribute.String("validation.content_type", contentType),
		attribute.Bool("validation.valid", valid),
	}

	m.ValidationOutcomes.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordEmbeddingFallback records a batch that fell back to the local provider
func (m *Metrics) RecordEmbeddingFallback(reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("fallback.reason", reason),
	}

	m.EmbeddingFallbacks.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
