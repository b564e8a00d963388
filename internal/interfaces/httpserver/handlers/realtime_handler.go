package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"jan-server/services/docchat-api/internal/infrastructure/realtime"
)

// RealtimeHandler upgrades clients onto the conversation room hub.
type RealtimeHandler struct {
	hub    *realtime.Hub
	sender MessageSender
}

// NewRealtimeHandler constructs the handler.
func NewRealtimeHandler(hub *realtime.Hub, sender MessageSender) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, sender: sender}
}

// ServeWS handles GET /ws
// @Summary Conversation room websocket
// @Description Frames are {event, data}. Clients send joinConversation, leaveConversation and sendMessage; the server sends newMessage, chatError, joined and left.
// @Tags Realtime
// @Router /ws [get]
func (h *RealtimeHandler) ServeWS(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request, socketSender{sender: h.sender})
}

// socketSender drops the exchange: both messages already reached the room through the broadcaster.
type socketSender struct {
	sender MessageSender
}

func (s socketSender) SendMessage(ctx context.Context, conversationID, content string) error {
	_, err := s.sender.SendMessage(ctx, conversationID, content)
	return err
}
