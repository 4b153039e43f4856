package services

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"course-assistant-platform/models"
	"course-assistant-platform/utils"
)

// VectorIndex is the in-memory store of (vector, chunk, metadata) records.
// Records live in per-contentId generations replaced wholesale on reindex;
// queries are brute-force cosine similarity, linear in index size.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	minScore  float64
	order     []string // contentIds in first-insert order, for stable ties
	records   map[string][]models.EmbeddingRecord
}

func NewVectorIndex(dimension int, minScore float64) *VectorIndex {
	return &VectorIndex{
		dimension: dimension,
		minScore:  minScore,
		records:   make(map[string][]models.EmbeddingRecord),
	}
}

// Replace atomically swaps in a new record generation for contentID. A
// concurrent search never observes a mix of old and new records: the new
// slice is validated off to the side and installed under the write lock.
func (vi *VectorIndex) Replace(contentID string, records []models.EmbeddingRecord) error {
	if contentID == "" {
		return utils.NewInvalidInput("contentID is required")
	}
	seen := make(map[int]bool, len(records))
	for _, record := range records {
		if len(record.Vector) != vi.dimension {
			return utils.NewInvalidInput(fmt.Sprintf(
				"record %s has dimension %d, index requires %d",
				record.ID, len(record.Vector), vi.dimension))
		}
		if record.ContentID != contentID {
			return utils.NewInvalidInput("record contentId does not match replacement target")
		}
		if seen[record.ChunkIndex] {
			return utils.NewInvalidInput(fmt.Sprintf(
				"duplicate chunk index %d for content %s", record.ChunkIndex, contentID))
		}
		seen[record.ChunkIndex] = true
	}

	vi.mu.Lock()
	defer vi.mu.Unlock()
	if _, exists := vi.records[contentID]; !exists {
		vi.order = append(vi.order, contentID)
	}
	vi.records[contentID] = records
	return nil
}

// Delete removes all records for contentID. Missing content is not an error.
func (vi *VectorIndex) Delete(contentID string) {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	if _, exists := vi.records[contentID]; !exists {
		return
	}
	delete(vi.records, contentID)
	for i, id := range vi.order {
		if id == contentID {
			vi.order = append(vi.order[:i], vi.order[i+1:]...)
			break
		}
	}
}

// Size returns the total record count.
func (vi *VectorIndex) Size() int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	n := 0
	for _, recs := range vi.records {
		n += len(recs)
	}
	return n
}

// Search returns up to topK records sorted by descending cosine similarity,
// ties broken by insertion/document order. Only records whose provider
// matches the query vector's provider are scanned; results below the
// minimum-similarity threshold are discarded before truncation. When nothing
// clears the threshold the typed not-found error is returned, never an
// ambiguous empty list.
func (vi *VectorIndex) Search(queryVector []float64, provider string, filter models.SearchFilter, topK int) ([]models.SearchResult, error) {
	if len(queryVector) != vi.dimension {
		return nil, utils.NewInvalidInput(fmt.Sprintf(
			"query dimension %d does not match index dimension %d",
			len(queryVector), vi.dimension))
	}
	if topK <= 0 {
		return nil, utils.NewInvalidInput("topK must be positive")
	}

	vi.mu.RLock()
	var results []models.SearchResult
	for _, contentID := range vi.order {
		for _, record := range vi.records[contentID] {
			if record.Provider != provider {
				continue
			}
			if !matchesFilter(record, filter) {
				continue
			}
			score := CosineSimilarity(queryVector, record.Vector)
			if score < vi.minScore {
				continue
			}
			results = append(results, models.SearchResult{Record: record, Score: score})
		}
	}
	vi.mu.RUnlock()

	if len(results) == 0 {
		return nil, utils.NewNotFound("no records cleared the similarity threshold")
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func matchesFilter(record models.EmbeddingRecord, filter models.SearchFilter) bool {
	if filter.Type != "" && record.Type != filter.Type {
		return false
	}
	if filter.Week != 0 && record.Metadata.Week != filter.Week {
		return false
	}
	if filter.Topic != "" && record.Metadata.Topic != filter.Topic {
		return false
	}
	return true
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// A zero vector has similarity 0 with anything; the denominator is guarded.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
