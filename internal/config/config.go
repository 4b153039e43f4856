package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Caller identity token (issued by the external auth service)
	IdentitySecret string

	// Gemini
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiTier           string
	GeminiTimeout        time.Duration

	// Embeddings
	VectorDimensions int
	EmbedBatchSize   int
	EmbedConcurrency int
	EmbedRatePerSec  float64

	// Chunking
	MaxChunkSize  int
	CodeChunkSize int
	OverlapWords  int
	MinChunkSize  int

	// Retrieval
	MinSimilarity    float64
	MaxContextChunks int
	MaxContextLength int

	// Intent classification. Hand-tuned confidences carried over from the
	// original tuning runs; override via env rather than editing code.
	IntentRuleConfidence     float64
	IntentFollowupConfidence float64
	IntentQuestionConfidence float64
	IntentUnknownConfidence  float64
	IntentLowConfidence      float64
	IntentShortMessageLen    int

	// Sessions
	SessionMaxHistory  int
	SessionIdleTimeout time.Duration

	// Validation threshold and layer weights. Per content type the weights
	// of the layers actually used must sum to 1.0.
	ValidationThreshold   float64
	GroundingMaxWeight    float64
	GroundingAvgWeight    float64
	TheoryGroundingWeight float64
	TheoryStructureWeight float64
	TheorySelfEvalWeight  float64
	LabGroundingWeight    float64
	LabCodeWeight         float64
	LabSelfEvalWeight     float64
	SlidesGroundingWeight float64
	SlidesStructureWeight float64
	SlidesSelfEvalWeight  float64

	// Ephemeral file context
	FileContextTTL     time.Duration
	FileContextSweep   time.Duration
	FileContextBackend string // "memory" (default) or "redis"

	// Redis
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// HTTP rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Async indexing: documents above this size go through the worker queue
	SyncIndexLimit int

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/course_assistant"),
		DBName:      getEnv("DB_NAME", "course_assistant"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		IdentitySecret: getEnv("IDENTITY_SECRET", ""),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiTier:           getEnv("GEMINI_TIER", "free"),
		GeminiTimeout:        getEnvDuration("GEMINI_TIMEOUT", 30*time.Second),

		VectorDimensions: getEnvInt("VECTOR_DIM", 768),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 10),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 4),
		EmbedRatePerSec:  getEnvFloat64("EMBED_RATE_PER_SEC", 5.0),

		MaxChunkSize:  getEnvInt("MAX_CHUNK_SIZE", 1200),
		CodeChunkSize: getEnvInt("CODE_CHUNK_SIZE", 2400),
		OverlapWords:  getEnvInt("CHUNK_OVERLAP_WORDS", 40),
		MinChunkSize:  getEnvInt("MIN_CHUNK_SIZE", 80),

		MinSimilarity:    getEnvFloat64("MIN_SIMILARITY", 0.35),
		MaxContextChunks: getEnvInt("MAX_CONTEXT_CHUNKS", 5),
		MaxContextLength: getEnvInt("MAX_CONTEXT_LENGTH", 6000),

		IntentRuleConfidence:     getEnvFloat64("INTENT_RULE_CONFIDENCE", 0.9),
		IntentFollowupConfidence: getEnvFloat64("INTENT_FOLLOWUP_CONFIDENCE", 0.7),
		IntentQuestionConfidence: getEnvFloat64("INTENT_QUESTION_CONFIDENCE", 0.6),
		IntentUnknownConfidence:  getEnvFloat64("INTENT_UNKNOWN_CONFIDENCE", 0.3),
		IntentLowConfidence:      getEnvFloat64("INTENT_LOW_CONFIDENCE", 0.5),
		IntentShortMessageLen:    getEnvInt("INTENT_SHORT_MESSAGE_LEN", 60),

		SessionMaxHistory:  getEnvInt("SESSION_MAX_HISTORY", 20),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		ValidationThreshold:   getEnvFloat64("VALIDATION_THRESHOLD", 0.5),
		GroundingMaxWeight:    getEnvFloat64("GROUNDING_MAX_WEIGHT", 0.6),
		GroundingAvgWeight:    getEnvFloat64("GROUNDING_AVG_WEIGHT", 0.4),
		TheoryGroundingWeight: getEnvFloat64("THEORY_GROUNDING_WEIGHT", 0.3),
		TheoryStructureWeight: getEnvFloat64("THEORY_STRUCTURE_WEIGHT", 0.4),
		TheorySelfEvalWeight:  getEnvFloat64("THEORY_SELFEVAL_WEIGHT", 0.3),
		LabGroundingWeight:    getEnvFloat64("LAB_GROUNDING_WEIGHT", 0.3),
		LabCodeWeight:         getEnvFloat64("LAB_CODE_WEIGHT", 0.4),
		LabSelfEvalWeight:     getEnvFloat64("LAB_SELFEVAL_WEIGHT", 0.3),
		SlidesGroundingWeight: getEnvFloat64("SLIDES_GROUNDING_WEIGHT", 0.3),
		SlidesStructureWeight: getEnvFloat64("SLIDES_STRUCTURE_WEIGHT", 0.4),
		SlidesSelfEvalWeight:  getEnvFloat64("SLIDES_SELFEVAL_WEIGHT", 0.3),

		FileContextTTL:     getEnvDuration("FILE_CONTEXT_TTL", time.Hour),
		FileContextSweep:   getEnvDuration("FILE_CONTEXT_SWEEP", 10*time.Minute),
		FileContextBackend: getEnv("FILE_CONTEXT_BACKEND", "memory"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		SyncIndexLimit: getEnvInt("SYNC_INDEX_LIMIT", 50000),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnv("TRACING_ENABLED", "false") == "true",
	}

	if cfg.IdentitySecret == "" {
		return nil, fmt.Errorf("IDENTITY_SECRET is required - set it in .env file")
	}

	if cfg.FileContextSweep >= cfg.FileContextTTL {
		return nil, fmt.Errorf("FILE_CONTEXT_SWEEP must be shorter than FILE_CONTEXT_TTL")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
