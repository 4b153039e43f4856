package services

import (
	"context"
	"time"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/config"
)

// testConfig returns a config matching the production defaults, with a small
// vector dimension to keep the local embedder fast.
func testConfig() *config.Config {
	return &config.Config{
		VectorDimensions: 64,
		EmbedBatchSize:   4,
		EmbedConcurrency: 2,
		EmbedRatePerSec:  100,
		GeminiTimeout:    time.Second,

		MaxChunkSize:  1200,
		CodeChunkSize: 2400,
		OverlapWords:  40,
		MinChunkSize:  80,

		MinSimilarity:    0.35,
		MaxContextChunks: 5,
		MaxContextLength: 6000,

		IntentRuleConfidence:     0.9,
		IntentFollowupConfidence: 0.7,
		IntentQuestionConfidence: 0.6,
		IntentUnknownConfidence:  0.3,
		IntentLowConfidence:      0.5,
		IntentShortMessageLen:    60,

		SessionMaxHistory:  20,
		SessionIdleTimeout: 30 * time.Minute,

		ValidationThreshold:   0.5,
		GroundingMaxWeight:    0.6,
		GroundingAvgWeight:    0.4,
		TheoryGroundingWeight: 0.3,
		TheoryStructureWeight: 0.4,
		TheorySelfEvalWeight:  0.3,
		LabGroundingWeight:    0.3,
		LabCodeWeight:         0.4,
		LabSelfEvalWeight:     0.3,
		SlidesGroundingWeight: 0.3,
		SlidesStructureWeight: 0.4,
		SlidesSelfEvalWeight:  0.3,

		FileContextTTL:   time.Hour,
		FileContextSweep: 10 * time.Minute,
	}
}

// localEmbeddings builds an embedding service with no API key configured, so
// every call uses the deterministic local embedder.
func localEmbeddings(cfg *config.Config) *ai.EmbeddingService {
	return ai.NewEmbeddingService(context.Background(), cfg)
}

// stubGenerator is a canned ai.Generator for orchestrator and validation
// tests.
type stubGenerator struct {
	text       string
	success    bool
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (*ai.GenerateResult, error) {
	s.lastPrompt = prompt
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResult{Success: s.success, Text: s.text}, nil
}
