package models

// ChunkType separates prose passages from code snippets at chunking time.
type ChunkType string

const (
	ChunkProse ChunkType = "prose"
	ChunkCode  ChunkType = "code"
)

// Chunk is a bounded span of source text treated as one retrievable unit.
// Immutable once produced; owned by the indexing run that created it.
type Chunk struct {
	Text               string    `json:"text"`
	Type               ChunkType `json:"type"`
	Language           string    `json:"language,omitempty"`
	SourceSectionIndex int       `json:"source_section_index"`
}

// ContentType classifies indexed course material.
type ContentType string

const (
	ContentTheory ContentType = "theory"
	ContentLab    ContentType = "lab"
	ContentCode   ContentType = "code"
)

// ChunkMetadata carries the filterable attributes of an embedding record.
type ChunkMetadata struct {
	Week        int    `json:"week,omitempty" bson:"week,omitempty"`
	Topic       string `json:"topic,omitempty" bson:"topic,omitempty"`
	Language    string `json:"language,omitempty" bson:"language,omitempty"`
	Keywords    []string `json:"keywords,omitempty" bson:"keywords,omitempty"`
	TotalChunks int    `json:"total_chunks" bson:"total_chunks"`
}

// EmbeddingRecord is one (vector, chunk, metadata) entry of the vector index.
// Provider records which embedder produced the vector; vectors from different
// providers are never compared within one similarity query.
type EmbeddingRecord struct {
	ID         string        `json:"id" bson:"_id"`
	ContentID  string        `json:"content_id" bson:"content_id"`
	ChunkText  string        `json:"chunk_text" bson:"chunk_text"`
	ChunkIndex int           `json:"chunk_index" bson:"chunk_index"`
	Vector     []float64     `json:"vector" bson:"vector"`
	Provider   string        `json:"provider" bson:"provider"`
	Type       ContentType   `json:"type" bson:"type"`
	Metadata   ChunkMetadata `json:"metadata" bson:"metadata"`
}

// SearchResult pairs a record with its cosine similarity to the query.
type SearchResult struct {
	Record EmbeddingRecord `json:"record"`
	Score  float64         `json:"score"`
}

// SearchFilter narrows a similarity query by record metadata.
type SearchFilter struct {
	Type  ContentType `json:"type,omitempty"`
	Week  int         `json:"week,omitempty"`
	Topic string      `json:"topic,omitempty"`
}
