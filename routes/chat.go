package routes

import (
	"net/http"

	"course-assistant-platform/middleware"
	"course-assistant-platform/models"
	"course-assistant-platform/services"
	"course-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

func SetupChatRoutes(router *gin.Engine, chatService *services.ChatService, identity *middleware.IdentityMiddleware) {
	chat := router.Group("/chat")
	chat.Use(identity.RequireIdentity())

	chat.POST("/send", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		userID := middleware.GetUserID(c)
		response, err := chatService.Chat(c.Request.Context(), userID, req.Message)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, response)
	})

	chat.DELETE("/session", func(c *gin.Context) {
		chatService.ClearSession(middleware.GetUserID(c))
		c.JSON(http.StatusOK, gin.H{"message": "Session cleared"})
	})
}
