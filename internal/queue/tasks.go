package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/telemetry"
	"course-assistant-platform/services"
	"course-assistant-platform/utils"
)

const (
	TaskIndexContent = "index:content"
	TaskDeleteIndex  = "index:delete"
)

type IndexContentPayload struct {
	ContentID string `json:"content_id"`
}

type DeleteIndexPayload struct {
	ContentID string `json:"content_id"`
}

// NewIndexContentTask enqueues a full chunk-embed-index pass for one
// document. Used for documents too large to index inside the request.
func NewIndexContentTask(contentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexContentPayload{ContentID: contentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexContent,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("indexing"),
	), nil
}

func NewDeleteIndexTask(contentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DeleteIndexPayload{ContentID: contentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDeleteIndex,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(time.Minute),
		asynq.Queue("indexing"),
	), nil
}

// TaskProcessor runs queued indexing work against the shared vector index.
type TaskProcessor struct {
	indexing *services.IndexingService
	metrics  *telemetry.Metrics
}

func NewTaskProcessor(indexing *services.IndexingService, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{indexing: indexing, metrics: metrics}
}

func (p *TaskProcessor) ProcessIndexContent(ctx context.Context, t *asynq.Task) error {
	var payload IndexContentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("indexing content", "content_id", payload.ContentID)
	start := time.Now()

	chunks, err := p.indexing.IndexContent(ctx, payload.ContentID)
	if err != nil {
		// A missing document will stay missing, retrying won't help.
		if utils.IsKind(err, utils.KindNotFound) {
			logger.Warn("content not found, dropping task", "content_id", payload.ContentID)
			return fmt.Errorf("content %s not found: %w", payload.ContentID, asynq.SkipRetry)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordIndexing(time.Since(start).Seconds(), chunks, "")
	}
	logger.Info("content indexed", "content_id", payload.ContentID,
		"chunks", chunks, "duration", time.Since(start).String())
	return nil
}

func (p *TaskProcessor) ProcessDeleteIndex(ctx context.Context, t *asynq.Task) error {
	var payload DeleteIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	p.indexing.DeleteIndex(payload.ContentID)
	logger.Info("index deleted", "content_id", payload.ContentID)
	return nil
}
