package routes

import (
	"net/http"
	"time"

	"course-assistant-platform/middleware"
	"course-assistant-platform/models"
	"course-assistant-platform/services"
	"course-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fileContextRequest struct {
	Context          string `json:"context" binding:"required"`
	FormattedContext string `json:"formatted_context"`
}

// SetupFileContextRoutes exposes the ephemeral per-upload context store.
// Entries are scoped to the caller that created them and expire on their
// own, there is no list operation.
func SetupFileContextRoutes(router *gin.Engine, store services.FileContextStore, identity *middleware.IdentityMiddleware) {
	group := router.Group("/file-context")
	group.Use(identity.RequireIdentity())

	group.POST("", func(c *gin.Context) {
		var req fileContextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		fileID := uuid.NewString()
		entry := models.FileContextEntry{
			Context:          req.Context,
			FormattedContext: req.FormattedContext,
			OwnerID:          middleware.GetUserID(c),
			Timestamp:        time.Now(),
		}

		if err := store.Put(c.Request.Context(), fileID, entry); err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"file_id": fileID})
	})

	group.GET("/:id", func(c *gin.Context) {
		entry, err := store.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		if entry.OwnerID != "" && entry.OwnerID != middleware.GetUserID(c) {
			utils.RespondWithNotFound(c, "File context not found")
			return
		}

		c.JSON(http.StatusOK, entry)
	})

	group.DELETE("/:id", func(c *gin.Context) {
		entry, err := store.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		if entry.OwnerID != "" && entry.OwnerID != middleware.GetUserID(c) {
			utils.RespondWithNotFound(c, "File context not found")
			return
		}

		if err := store.Delete(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})
}
