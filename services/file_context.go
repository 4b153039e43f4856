package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
	"course-assistant-platform/utils"
)

// FileContextStore maps an uploaded-file handle to its extracted context for
// the lifetime of a TTL. Implementations are swappable behind this interface.
type FileContextStore interface {
	Put(ctx context.Context, fileID string, entry models.FileContextEntry) error
	// Get returns the entry, or the typed not-found error when the id is
	// unknown or expired - an expired-but-unswept entry is never returned.
	Get(ctx context.Context, fileID string) (*models.FileContextEntry, error)
	Delete(ctx context.Context, fileID string) error
	// Sweep removes expired entries and returns the count removed.
	Sweep(ctx context.Context) int
}

// MemoryFileContextStore is the default in-process implementation. Expiry is
// checked on read, independent of sweep timing.
type MemoryFileContextStore struct {
	mu      sync.RWMutex
	entries map[string]models.FileContextEntry
	ttl     time.Duration
}

func NewMemoryFileContextStore(ttl time.Duration) *MemoryFileContextStore {
	return &MemoryFileContextStore{
		entries: make(map[string]models.FileContextEntry),
		ttl:     ttl,
	}
}

func (m *MemoryFileContextStore) Put(ctx context.Context, fileID string, entry models.FileContextEntry) error {
	if fileID == "" {
		return utils.NewInvalidInput("fileID is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.mu.Lock()
	m.entries[fileID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryFileContextStore) Get(ctx context.Context, fileID string) (*models.FileContextEntry, error) {
	m.mu.RLock()
	entry, ok := m.entries[fileID]
	m.mu.RUnlock()
	if !ok || time.Since(entry.Timestamp) > m.ttl {
		return nil, utils.NewNotFound("file context not found")
	}
	return &entry, nil
}

func (m *MemoryFileContextStore) Delete(ctx context.Context, fileID string) error {
	m.mu.Lock()
	delete(m.entries, fileID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryFileContextStore) Sweep(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	swept := 0
	for fileID, entry := range m.entries {
		if time.Since(entry.Timestamp) > m.ttl {
			delete(m.entries, fileID)
			swept++
		}
	}
	if swept > 0 {
		logger.Debug("file context sweep removed entries", "count", swept)
	}
	return swept
}

// RedisFileContextStore keeps entries in Redis with native TTL expiry.
// Payloads above the compression floor are stored brotli-compressed.
type RedisFileContextStore struct {
	rdb *redis.Client
	ttl time.Duration
}

const fileContextKeyPrefix = "filectx:"

type redisFileContextPayload struct {
	Compression utils.CompressionAlgorithm `json:"compression"`
	Data        []byte                     `json:"data"`
}

func NewRedisFileContextStore(rdb *redis.Client, ttl time.Duration) *RedisFileContextStore {
	return &RedisFileContextStore{rdb: rdb, ttl: ttl}
}

func (r *RedisFileContextStore) Put(ctx context.Context, fileID string, entry models.FileContextEntry) error {
	if fileID == "" {
		return utils.NewInvalidInput("fileID is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return utils.NewServiceError(utils.KindInvalidInput, "file context entry not serializable", err)
	}
	compressed, algorithm, err := utils.CompressText(string(raw))
	if err != nil {
		return utils.NewServiceError(utils.KindExternalUnavailable, "compression failed", err)
	}
	payload, err := json.Marshal(redisFileContextPayload{Compression: algorithm, Data: compressed})
	if err != nil {
		return utils.NewServiceError(utils.KindInvalidInput, "payload not serializable", err)
	}

	if err := r.rdb.Set(ctx, fileContextKeyPrefix+fileID, payload, r.ttl).Err(); err != nil {
		return utils.NewExternalUnavailable("redis write failed", err)
	}
	return nil
}

func (r *RedisFileContextStore) Get(ctx context.Context, fileID string) (*models.FileContextEntry, error) {
	raw, err := r.rdb.Get(ctx, fileContextKeyPrefix+fileID).Bytes()
	if err == redis.Nil {
		return nil, utils.NewNotFound("file context not found")
	}
	if err != nil {
		return nil, utils.NewExternalUnavailable("redis read failed", err)
	}

	var payload redisFileContextPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, utils.NewMalformedResponse("stored file context is corrupt", err)
	}
	decompressed, err := utils.DecompressText(payload.Data, payload.Compression)
	if err != nil {
		return nil, utils.NewMalformedResponse("stored file context is corrupt", err)
	}

	var entry models.FileContextEntry
	if err := json.Unmarshal([]byte(decompressed), &entry); err != nil {
		return nil, utils.NewMalformedResponse("stored file context is corrupt", err)
	}
	// Redis TTL should have expired the key already; the read-time check
	// still applies so a clock-skewed entry is never served stale.
	if time.Since(entry.Timestamp) > r.ttl {
		return nil, utils.NewNotFound("file context not found")
	}
	return &entry, nil
}

func (r *RedisFileContextStore) Delete(ctx context.Context, fileID string) error {
	if err := r.rdb.Del(ctx, fileContextKeyPrefix+fileID).Err(); err != nil {
		return utils.NewExternalUnavailable("redis delete failed", err)
	}
	return nil
}

// Sweep is a no-op for Redis; key expiry is native.
func (r *RedisFileContextStore) Sweep(ctx context.Context) int { return 0 }
