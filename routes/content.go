package routes

import (
	"net/http"
	"strconv"
	"time"

	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/queue"
	"course-assistant-platform/middleware"
	"course-assistant-platform/models"
	"course-assistant-platform/services"
	"course-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type contentUpsertRequest struct {
	ContentID string `json:"content_id" binding:"required"`
	Title     string `json:"title" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=theory lab code"`
	Week      int    `json:"week"`
	Topic     string `json:"topic"`
	Language  string `json:"language"`
}

func SetupContentRoutes(router *gin.Engine, cfg *config.Config, db *mongo.Database,
	indexing *services.IndexingService, retrieval *services.RetrievalService,
	index *services.VectorIndex, asynqClient *asynq.Client, identity *middleware.IdentityMiddleware) {

	contents := db.Collection("course_contents")

	group := router.Group("/content")
	group.Use(identity.RequireIdentity())

	// Upsert the extracted text and (re)index it. Large documents go through
	// the worker queue and return 202.
	group.PUT("", func(c *gin.Context) {
		var req contentUpsertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		now := time.Now()
		_, err := contents.UpdateOne(ctx,
			bson.M{"content_id": req.ContentID},
			bson.M{
				"$set": bson.M{
					"title":      req.Title,
					"text":       req.Text,
					"type":       req.Type,
					"week":       req.Week,
					"topic":      req.Topic,
					"language":   req.Language,
					"updated_at": now,
				},
				"$setOnInsert": bson.M{"created_at": now},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to store content", nil)
			return
		}

		if asynqClient != nil && len(req.Text) > cfg.SyncIndexLimit {
			task, terr := queue.NewIndexContentTask(req.ContentID)
			if terr == nil {
				if _, terr = asynqClient.Enqueue(task); terr == nil {
					c.JSON(http.StatusAccepted, gin.H{
						"content_id": req.ContentID,
						"status":     "indexing_queued",
					})
					return
				}
			}
			logger.Warn("failed to enqueue indexing task, indexing inline",
				"content_id", req.ContentID, "error", terr)
		}

		chunks, err := indexing.IndexContent(ctx, req.ContentID)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"content_id": req.ContentID,
			"status":     "indexed",
			"chunks":     chunks,
		})
	})

	group.POST("/:id/reindex", func(c *gin.Context) {
		contentID := c.Param("id")

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		chunks, err := indexing.Reindex(ctx, contentID)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"content_id": contentID,
			"status":     "indexed",
			"chunks":     chunks,
		})
	})

	group.DELETE("/:id", func(c *gin.Context) {
		contentID := c.Param("id")

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		indexing.DeleteIndex(contentID)
		if _, err := contents.DeleteOne(ctx, bson.M{"content_id": contentID}); err != nil {
			logger.Error("failed to delete content document", "content_id", contentID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{"content_id": contentID, "status": "deleted"})
	})

	group.GET("/search", func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "Query parameter 'q' is required", nil)
			return
		}

		filter := models.SearchFilter{
			Type:  models.ContentType(c.Query("type")),
			Topic: c.Query("topic"),
		}
		if week := c.Query("week"); week != "" {
			if w, err := strconv.Atoi(week); err == nil {
				filter.Week = w
			}
		}
		topK := cfg.MaxContextChunks
		if limit := c.Query("limit"); limit != "" {
			if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 50 {
				topK = l
			}
		}

		results, err := retrieval.Search(c.Request.Context(), query, filter, topK)
		if err != nil {
			if utils.IsKind(err, utils.KindNotFound) {
				c.JSON(http.StatusOK, gin.H{"query": query, "results": []models.SearchResult{}})
				return
			}
			utils.RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
	})

	group.GET("/context", func(c *gin.Context) {
		topic := c.Query("topic")
		if topic == "" {
			utils.RespondWithBadRequest(c, "Query parameter 'topic' is required", nil)
			return
		}

		opts := services.ContextOptions{
			Type: models.ContentType(c.Query("type")),
		}
		if week := c.Query("week"); week != "" {
			if w, err := strconv.Atoi(week); err == nil {
				opts.Week = w
			}
		}

		retrieved, err := retrieval.GetContext(c.Request.Context(), topic, opts)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, retrieved)
	})

	group.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"indexed_chunks": index.Size()})
	})
}
