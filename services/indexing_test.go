package services

import (
	"context"
	"strings"
	"testing"

	"course-assistant-platform/models"
	"course-assistant-platform/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapContentSource serves course content from a map, standing in for Mongo.
type mapContentSource struct {
	contents map[string]*models.CourseContent
}

func (m *mapContentSource) GetContent(ctx context.Context, contentID string) (*models.CourseContent, error) {
	content, ok := m.contents[contentID]
	if !ok {
		return nil, utils.NewNotFound("content " + contentID + " not found")
	}
	return content, nil
}

func newTestIndexing(contents map[string]*models.CourseContent) (*IndexingService, *VectorIndex) {
	cfg := testConfig()
	index := NewVectorIndex(cfg.VectorDimensions, 0.1)
	chunker := NewChunkingService(cfg.MaxChunkSize, cfg.CodeChunkSize, cfg.OverlapWords, cfg.MinChunkSize)
	indexing := NewIndexingService(&mapContentSource{contents: contents}, chunker, localEmbeddings(cfg), index)
	return indexing, index
}

func theoryDoc(contentID, topic string, week int, text string) *models.CourseContent {
	return &models.CourseContent{
		ContentID: contentID,
		Title:     topic,
		Text:      text,
		Type:      models.ContentTheory,
		Week:      week,
		Topic:     topic,
	}
}

func TestIndexContentBuildsRecords(t *testing.T) {
	text := "# Sorting\n\n" + strings.Repeat("Merge sort is a divide and conquer algorithm that merges sorted halves into one ordered slice. ", 20)
	indexing, index := newTestIndexing(map[string]*models.CourseContent{
		"sorting-notes": theoryDoc("sorting-notes", "sorting", 2, text),
	})

	count, err := indexing.IndexContent(context.Background(), "sorting-notes")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
	assert.Equal(t, count, index.Size())
}

func TestIndexContentAttachesMetadata(t *testing.T) {
	text := strings.Repeat("Binary trees keep keys ordered so binary lookups stay logarithmic in tree height. ", 10)
	indexing, index := newTestIndexing(map[string]*models.CourseContent{
		"trees": theoryDoc("trees", "binary trees", 4, text),
	})

	_, err := indexing.IndexContent(context.Background(), "trees")
	require.NoError(t, err)

	results, serr := index.Search(mustEmbed(t, "binary trees ordered keys"), "local", models.SearchFilter{}, 1)
	require.NoError(t, serr)
	record := results[0].Record
	assert.Equal(t, 4, record.Metadata.Week)
	assert.Equal(t, "binary trees", record.Metadata.Topic)
	assert.Contains(t, record.Metadata.Keywords, "binary")
	assert.Equal(t, "trees:0", record.ID)
}

func TestIndexContentCodeChunksTypedAsCode(t *testing.T) {
	text := "The lab walks through slices and how append grows the backing array when capacity runs out.\n\n" +
		"```go\n// append grows the backing array when capacity runs out\nfunc grow(s []int) []int {\n\tfor i := 0; i < 100; i++ {\n\t\ts = append(s, i)\n\t}\n\treturn s\n}\n```\n"
	doc := theoryDoc("slices-lab", "slices", 1, text)
	doc.Type = models.ContentLab
	indexing, index := newTestIndexing(map[string]*models.CourseContent{"slices-lab": doc})

	_, err := indexing.IndexContent(context.Background(), "slices-lab")
	require.NoError(t, err)

	results, serr := index.Search(mustEmbed(t, "append grows the backing array capacity"), "local", models.SearchFilter{}, 10)
	require.NoError(t, serr)

	var sawCode, sawLab bool
	for _, result := range results {
		switch result.Record.Type {
		case models.ContentCode:
			sawCode = true
			assert.Equal(t, "go", result.Record.Metadata.Language)
		case models.ContentLab:
			sawLab = true
		}
	}
	assert.True(t, sawCode, "fenced code is indexed as code")
	assert.True(t, sawLab, "surrounding prose keeps the document type")
}

func TestIndexContentMissingDocument(t *testing.T) {
	indexing, _ := newTestIndexing(map[string]*models.CourseContent{})

	_, err := indexing.IndexContent(context.Background(), "ghost")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	_, err = indexing.IndexContent(context.Background(), "")
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))
}

func TestIndexContentEmptyTextClearsGeneration(t *testing.T) {
	contents := map[string]*models.CourseContent{
		"doc": theoryDoc("doc", "topic", 1, strings.Repeat("Stacks push and pop elements in last-in first-out order. ", 10)),
	}
	indexing, index := newTestIndexing(contents)

	_, err := indexing.IndexContent(context.Background(), "doc")
	require.NoError(t, err)
	require.Greater(t, index.Size(), 0)

	contents["doc"].Text = "   "
	count, err := indexing.IndexContent(context.Background(), "doc")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, index.Size(), "an emptied document clears its old records")
}

func TestReindexReplacesInsteadOfAccumulating(t *testing.T) {
	contents := map[string]*models.CourseContent{
		"doc": theoryDoc("doc", "queues", 1, strings.Repeat("Queues release elements in first-in first-out arrival order. ", 10)),
	}
	indexing, index := newTestIndexing(contents)

	_, err := indexing.IndexContent(context.Background(), "doc")
	require.NoError(t, err)
	before := index.Size()

	_, err = indexing.Reindex(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, before, index.Size())
}

func TestDeleteIndexRemovesRecords(t *testing.T) {
	indexing, index := newTestIndexing(map[string]*models.CourseContent{
		"doc": theoryDoc("doc", "heaps", 1, strings.Repeat("Heaps keep the smallest element at the root for constant-time peeks. ", 10)),
	})

	_, err := indexing.IndexContent(context.Background(), "doc")
	require.NoError(t, err)

	indexing.DeleteIndex("doc")
	assert.Zero(t, index.Size())
}

// mustEmbed produces a local-provider query vector for index assertions.
func mustEmbed(t *testing.T, text string) []float64 {
	t.Helper()
	vec, provider, err := localEmbeddings(testConfig()).Embed(context.Background(), text)
	require.NoError(t, err)
	require.Equal(t, "local", provider)
	return vec
}
