package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"course-assistant-platform/internal/telemetry"
	"course-assistant-platform/models"
	"course-assistant-platform/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexTexts embeds the given texts with the local provider and installs them
// as one document generation.
func indexTexts(t *testing.T, rs *RetrievalService, index *VectorIndex, contentID string, texts []string) {
	t.Helper()
	vectors, provider, err := rs.embeddings.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	records := make([]models.EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = models.EmbeddingRecord{
			ID:         fmt.Sprintf("%s:%d", contentID, i),
			ContentID:  contentID,
			ChunkText:  text,
			ChunkIndex: i,
			Vector:     vectors[i],
			Provider:   provider,
			Type:       models.ContentTheory,
		}
	}
	require.NoError(t, index.Replace(contentID, records))
}

func newTestRetrieval(t *testing.T) (*RetrievalService, *VectorIndex) {
	cfg := testConfig()
	index := NewVectorIndex(cfg.VectorDimensions, 0.1)
	rs := NewRetrievalService(localEmbeddings(cfg), index, cfg.MaxContextChunks, cfg.MaxContextLength)
	return rs, index
}

func TestSearchRecordsMetrics(t *testing.T) {
	rs, index := newTestRetrieval(t)
	metrics, err := telemetry.InitMetrics()
	require.NoError(t, err)
	rs.SetMetrics(metrics)

	indexTexts(t, rs, index, "algo", []string{
		"merge sort splits the slice recursively and merges sorted halves",
	})

	// Both the found and the no-match outcome pass through the meter
	// without altering the search contract.
	results, err := rs.Search(context.Background(), "merge sort sorted halves", models.SearchFilter{}, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	_, err = rs.Search(context.Background(), "unrelated quantum botany", models.SearchFilter{}, 3)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}

func TestSearchRequiresQuery(t *testing.T) {
	rs, _ := newTestRetrieval(t)

	_, err := rs.Search(context.Background(), "   ", models.SearchFilter{}, 5)
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))
}

func TestSearchFindsRelevantChunk(t *testing.T) {
	rs, index := newTestRetrieval(t)
	indexTexts(t, rs, index, "algo", []string{
		"merge sort splits the slice recursively and merges sorted halves",
		"binary search repeatedly halves the sorted search range",
		"http servers accept tcp connections and parse request lines",
	})

	results, err := rs.Search(context.Background(), "binary search sorted range", models.SearchFilter{}, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Record.ChunkText, "binary search")
}

func TestGetContextFoundFalseOnEmptyIndex(t *testing.T) {
	rs, _ := newTestRetrieval(t)

	retrieved, err := rs.GetContext(context.Background(), "anything at all", ContextOptions{})
	require.NoError(t, err, "empty index is an expected state, not an error")
	assert.False(t, retrieved.Found)
	assert.Empty(t, retrieved.Chunks)
	assert.Empty(t, retrieved.ContextText)
}

func TestGetContextRespectsLengthBudget(t *testing.T) {
	rs, index := newTestRetrieval(t)

	long := strings.Repeat("goroutines communicate over channels to share memory safely ", 20)
	indexTexts(t, rs, index, "go-notes", []string{
		"goroutines communicate over channels",
		long,
		"channels carry typed values between goroutines",
	})

	retrieved, err := rs.GetContext(context.Background(), "goroutines channels", ContextOptions{MaxLength: 200})
	require.NoError(t, err)
	require.True(t, retrieved.Found)
	assert.LessOrEqual(t, len(retrieved.ContextText), 200)

	// The oversized chunk is skipped whole; smaller ones after it still fit.
	for _, chunk := range retrieved.Chunks {
		assert.NotEqual(t, long, chunk.Record.ChunkText)
	}
	assert.GreaterOrEqual(t, len(retrieved.Chunks), 1)
}

func TestGetContextSeparatesChunks(t *testing.T) {
	rs, index := newTestRetrieval(t)
	indexTexts(t, rs, index, "db", []string{
		"indexes speed up lookups on large tables",
		"an index on a table column speeds up query lookups",
	})

	retrieved, err := rs.GetContext(context.Background(), "table index lookups", ContextOptions{})
	require.NoError(t, err)
	require.True(t, retrieved.Found)
	if len(retrieved.Chunks) > 1 {
		assert.Contains(t, retrieved.ContextText, "\n\n")
	}
	assert.Equal(t, len(retrieved.Chunks), strings.Count(retrieved.ContextText, "\n\n")+1)
}

func TestGetContextRequiresTopic(t *testing.T) {
	rs, _ := newTestRetrieval(t)

	_, err := rs.GetContext(context.Background(), "", ContextOptions{})
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))
}
