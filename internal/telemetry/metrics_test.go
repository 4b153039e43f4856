package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectedNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestMetricsRecordPipelineOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	metrics, err := InitMetrics()
	require.NoError(t, err)

	metrics.RecordSearch(true)
	metrics.RecordSearch(false)
	metrics.RecordValidation("lab", false)
	metrics.RecordEmbeddingFallback("batch_failed")
	metrics.RecordTokensUsed(128, "gemini-2.0-flash")

	names := collectedNames(t, reader)
	assert.True(t, names["retrieval.searches.total"])
	assert.True(t, names["validation.outcomes.total"])
	assert.True(t, names["embeddings.fallbacks.total"])
	assert.True(t, names["gemini.tokens.used"])
}
