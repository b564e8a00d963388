package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/docchat-api/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler) {
	router.GET("/conversations", handler.List)
	router.POST("/conversations", handler.Create)
	router.GET("/conversations/:id", handler.Get)
	router.PATCH("/conversations/:id", handler.Update)
	router.DELETE("/conversations/:id", handler.Delete)
	router.POST("/conversations/:id/messages", handler.SendMessage)
}
