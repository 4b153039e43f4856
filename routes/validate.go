package routes

import (
	"net/http"

	"course-assistant-platform/middleware"
	"course-assistant-platform/models"
	"course-assistant-platform/services"
	"course-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

type validateRequest struct {
	ContentType   string   `json:"content_type" binding:"required,oneof=theory lab slides"`
	Content       string   `json:"content" binding:"required"`
	ContextChunks []string `json:"context_chunks"`
	Language      string   `json:"language"`
	SelfEval      bool     `json:"self_eval"`
}

func SetupValidationRoutes(router *gin.Engine, validator *services.ValidationEngine, identity *middleware.IdentityMiddleware) {
	group := router.Group("/validate")
	group.Use(identity.RequireIdentity())

	group.POST("", func(c *gin.Context) {
		var req validateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := validator.Validate(c.Request.Context(), req.ContentType, req.Content,
			req.ContextChunks, models.ValidationOptions{
				SelfEval: req.SelfEval,
				Language: req.Language,
			})
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	})
}
