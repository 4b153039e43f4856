package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/telemetry"
	"course-assistant-platform/utils"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Vector providers. Vectors from different providers are never compared
// within one similarity query, so every embedding carries its provider.
const (
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// Embedder converts text into a fixed-length numeric vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GeminiEmbedder calls the Gemini embedding model (text-embedding-004).
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, cfg *config.Config) (*GeminiEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{
		client:    client,
		model:     cfg.GeminiEmbeddingModel,
		dimension: cfg.VectorDimensions,
	}, nil
}

func (g *GeminiEmbedder) Name() string   { return ProviderGemini }
func (g *GeminiEmbedder) Dimension() int { return g.dimension }

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	model := g.client.EmbeddingModel(g.model)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	vec := make([]float64, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		vec[i] = float64(v)
	}
	if len(vec) != g.dimension {
		return nil, fmt.Errorf("embedding dimension %d does not match configured %d", len(vec), g.dimension)
	}
	return vec, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// LocalEmbedder is the deterministic degraded-mode embedder: bag of words
// hashed into D buckets, L2-normalized. Same text always yields the same
// vector, so the pipeline keeps functioning when the external model is down.
type LocalEmbedder struct {
	dimension int
}

func NewLocalEmbedder(dimension int) *LocalEmbedder {
	return &LocalEmbedder{dimension: dimension}
}

func (l *LocalEmbedder) Name() string   { return ProviderLocal }
func (l *LocalEmbedder) Dimension() int { return l.dimension }

func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, l.dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%l.dimension]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// EmbeddingService selects between the external embedder and the local
// fallback, batches with bounded fan-out, and paces calls against the
// external rate limit.
type EmbeddingService struct {
	primary     Embedder // nil when no API key is configured
	fallback    *LocalEmbedder
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
	timeout     time.Duration
	metrics     *telemetry.Metrics // nil disables fallback metrics
}

// SetMetrics attaches the pipeline meter. Optional.
func (s *EmbeddingService) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

func NewEmbeddingService(ctx context.Context, cfg *config.Config) *EmbeddingService {
	svc := &EmbeddingService{
		fallback:    NewLocalEmbedder(cfg.VectorDimensions),
		batchSize:   cfg.EmbedBatchSize,
		concurrency: cfg.EmbedConcurrency,
		limiter:     rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSec), cfg.EmbedBatchSize),
		timeout:     cfg.GeminiTimeout,
	}
	if cfg.GeminiAPIKey != "" {
		primary, err := NewGeminiEmbedder(ctx, cfg)
		if err != nil {
			logger.Warn("gemini embedder unavailable, running in degraded mode", "error", err)
		} else {
			svc.primary = primary
		}
	}
	return svc
}

func (s *EmbeddingService) Dimension() int { return s.fallback.Dimension() }

// Embed returns the vector for one text plus the provider that produced it.
// External failure falls back to the deterministic local embedder after a
// single retryable attempt.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", utils.NewInvalidInput("cannot embed empty text")
	}

	if s.primary != nil {
		if err := s.limiter.Wait(ctx); err == nil {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			vec, err := s.primary.Embed(cctx, text)
			cancel()
			if err == nil {
				return vec, s.primary.Name(), nil
			}
			logger.Warn("external embedding failed, using local fallback", "error", err)
			if s.metrics != nil {
				s.metrics.RecordEmbeddingFallback("embed_failed")
			}
		}
	}

	vec, err := s.fallback.Embed(ctx, text)
	if err != nil {
		return nil, "", utils.NewExternalUnavailable("embedding failed", err)
	}
	return vec, s.fallback.Name(), nil
}

// EmbedBatch embeds texts preserving input order. Sub-batches fan out with a
// bounded number of concurrent calls; the limiter paces individual requests.
// If any external call fails the whole batch is re-embedded locally, so one
// batch always carries exactly one provider.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float64, string, error) {
	if len(texts) == 0 {
		return nil, "", utils.NewInvalidInput("cannot embed empty batch")
	}

	if s.primary != nil {
		vectors, err := s.embedBatchExternal(ctx, texts)
		if err == nil {
			return vectors, s.primary.Name(), nil
		}
		logger.Warn("external batch embedding failed, re-embedding batch locally",
			"count", len(texts), "error", err)
		if s.metrics != nil {
			s.metrics.RecordEmbeddingFallback("batch_failed")
		}
	}

	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := s.fallback.Embed(ctx, text)
		if err != nil {
			return nil, "", utils.NewExternalUnavailable("fallback embedding failed", err)
		}
		vectors[i] = vec
	}
	return vectors, s.fallback.Name(), nil
}

func (s *EmbeddingService) embedBatchExternal(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}
				cctx, cancel := context.WithTimeout(gctx, s.timeout)
				defer cancel()
				vec, err := s.primary.Embed(cctx, texts[i])
				if err != nil {
					return fmt.Errorf("embed item %d: %w", i, err)
				}
				vectors[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// Close releases the external client, if any.
func (s *EmbeddingService) Close() error {
	if closer, ok := s.primary.(*GeminiEmbedder); ok {
		return closer.Close()
	}
	return nil
}
