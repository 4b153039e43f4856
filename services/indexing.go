package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
	"course-assistant-platform/utils"
)

// ContentSource supplies the extracted text for a content id. The web layer
// owns writes; this service only reads.
type ContentSource interface {
	GetContent(ctx context.Context, contentID string) (*models.CourseContent, error)
}

// MongoContentSource reads course content from the course_contents collection.
type MongoContentSource struct {
	collection *mongo.Collection
}

func NewMongoContentSource(db *mongo.Database) *MongoContentSource {
	return &MongoContentSource{collection: db.Collection("course_contents")}
}

func (m *MongoContentSource) GetContent(ctx context.Context, contentID string) (*models.CourseContent, error) {
	var content models.CourseContent
	err := m.collection.FindOne(ctx, bson.M{"content_id": contentID}).Decode(&content)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFound(fmt.Sprintf("content %s not found", contentID))
	}
	if err != nil {
		return nil, utils.NewExternalUnavailable("content lookup failed", err)
	}
	return &content, nil
}

// IndexingService turns a content item into an index generation:
// load text, chunk, batch-embed, replace the generation atomically.
type IndexingService struct {
	source     ContentSource
	chunker    *ChunkingService
	embeddings *ai.EmbeddingService
	index      *VectorIndex
}

func NewIndexingService(source ContentSource, chunker *ChunkingService, embeddings *ai.EmbeddingService, index *VectorIndex) *IndexingService {
	return &IndexingService{
		source:     source,
		chunker:    chunker,
		embeddings: embeddings,
		index:      index,
	}
}

// IndexContent (re)indexes one content item and returns the number of chunks
// indexed. All previous records for the contentId are replaced in the same
// operation; no partial old+new state is ever queryable.
func (is *IndexingService) IndexContent(ctx context.Context, contentID string) (int, error) {
	if contentID == "" {
		return 0, utils.NewInvalidInput("contentID is required")
	}

	content, err := is.source.GetContent(ctx, contentID)
	if err != nil {
		return 0, err
	}

	started := time.Now()
	chunks := is.chunker.ChunkText(content.Text)
	if len(chunks) == 0 {
		// Empty documents simply clear any previous generation.
		is.index.Delete(contentID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, provider, err := is.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	records := make([]models.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		contentType := content.Type
		if chunk.Type == models.ChunkCode {
			contentType = models.ContentCode
		}
		language := chunk.Language
		if language == "" {
			language = content.Language
		}
		records[i] = models.EmbeddingRecord{
			ID:         fmt.Sprintf("%s:%d", contentID, i),
			ContentID:  contentID,
			ChunkText:  chunk.Text,
			ChunkIndex: i,
			Vector:     vectors[i],
			Provider:   provider,
			Type:       contentType,
			Metadata: models.ChunkMetadata{
				Week:        content.Week,
				Topic:       content.Topic,
				Language:    language,
				Keywords:    ExtractKeywords(chunk.Text, 5),
				TotalChunks: len(chunks),
			},
		}
	}

	if err := is.index.Replace(contentID, records); err != nil {
		return 0, err
	}

	logger.Info("content indexed",
		"content_id", contentID,
		"chunks", len(records),
		"provider", provider,
		"took", time.Since(started).String())
	return len(records), nil
}

// Reindex is IndexContent by another name; the replace semantics already
// guarantee delete+insert as one logical step.
func (is *IndexingService) Reindex(ctx context.Context, contentID string) (int, error) {
	return is.IndexContent(ctx, contentID)
}

// DeleteIndex removes the index generation for a content item.
func (is *IndexingService) DeleteIndex(contentID string) {
	is.index.Delete(contentID)
}
