package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/docchat-api/internal/interfaces/httpserver/handlers"
)

func registerDocumentRoutes(router gin.IRoutes, handler *handlers.DocumentHandler) {
	router.POST("/documents/upload", handler.Upload)
	router.GET("/documents/conversation/:id", handler.ListByConversation)
	router.PATCH("/documents/:id/status", handler.UpdateStatus)
	router.DELETE("/documents/:id", handler.Delete)
}
