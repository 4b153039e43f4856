package services

import (
	"context"
	"strings"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/telemetry"
	"course-assistant-platform/models"
	"course-assistant-platform/utils"
)

// ContextOptions tunes a retrieval call.
type ContextOptions struct {
	Type      models.ContentType
	Week      int
	MaxChunks int
	MaxLength int
}

// RetrievedContext is the assembled grounding material for a topic. Found is
// false when the index yielded nothing; callers branch on it instead of
// assuming at least one chunk.
type RetrievedContext struct {
	Found       bool
	Chunks      []models.SearchResult
	ContextText string
}

// RetrievalService answers "what are the top-K passages relevant to X",
// respecting a character budget.
type RetrievalService struct {
	embeddings *ai.EmbeddingService
	index      *VectorIndex
	maxChunks  int
	maxLength  int
	metrics    *telemetry.Metrics // nil disables search metrics
}

// SetMetrics attaches the pipeline meter. Optional.
func (rs *RetrievalService) SetMetrics(m *telemetry.Metrics) {
	rs.metrics = m
}

func NewRetrievalService(embeddings *ai.EmbeddingService, index *VectorIndex, maxChunks, maxLength int) *RetrievalService {
	return &RetrievalService{
		embeddings: embeddings,
		index:      index,
		maxChunks:  maxChunks,
		maxLength:  maxLength,
	}
}

// Search embeds the query and runs a filtered similarity search. The typed
// not-found error propagates when nothing clears the threshold.
func (rs *RetrievalService) Search(ctx context.Context, query string, filter models.SearchFilter, topK int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, utils.NewInvalidInput("query is required")
	}
	if topK <= 0 {
		topK = rs.maxChunks
	}

	vector, provider, err := rs.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := rs.index.Search(vector, provider, filter, topK)
	if rs.metrics != nil && (err == nil || utils.IsKind(err, utils.KindNotFound)) {
		rs.metrics.RecordSearch(err == nil)
	}
	return results, err
}

// GetContext retrieves the passages grounding a topic and greedily packs them
// into a context string under the character budget. A chunk that would
// overflow the budget is skipped whole, never truncated mid-chunk.
func (rs *RetrievalService) GetContext(ctx context.Context, topic string, opts ContextOptions) (*RetrievedContext, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, utils.NewInvalidInput("topic is required")
	}

	maxChunks := opts.MaxChunks
	if maxChunks <= 0 {
		maxChunks = rs.maxChunks
	}
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = rs.maxLength
	}

	results, err := rs.Search(ctx, topic, models.SearchFilter{Type: opts.Type, Week: opts.Week}, maxChunks)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			logger.Debug("no supporting material found", "topic", topic)
			return &RetrievedContext{Found: false, Chunks: []models.SearchResult{}}, nil
		}
		return nil, err
	}

	builder := new(strings.Builder)
	var kept []models.SearchResult
	for _, result := range results {
		addition := len(result.Record.ChunkText)
		if builder.Len() > 0 {
			addition += 2
		}
		if builder.Len()+addition > maxLength {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(result.Record.ChunkText)
		kept = append(kept, result)
	}

	if len(kept) == 0 {
		return &RetrievedContext{Found: false, Chunks: []models.SearchResult{}}, nil
	}
	return &RetrievedContext{
		Found:       true,
		Chunks:      kept,
		ContextText: builder.String(),
	}, nil
}
