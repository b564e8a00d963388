package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/query"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/requests"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/responses"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// ConversationService is the conversation aggregate as seen by HTTP.
type ConversationService interface {
	Create(ctx context.Context, params conversation.CreateParams) (*conversation.Conversation, error)
	List(ctx context.Context) ([]*conversation.Conversation, error)
	GetDetail(ctx context.Context, conversationID string) (*conversation.Detail, error)
	Update(ctx context.Context, conversationID string, params conversation.UpdateParams) (*conversation.Conversation, error)
}

// ConversationDeleter removes a conversation with everything it owns.
type ConversationDeleter interface {
	DeleteConversation(ctx context.Context, conversationID string) error
}

// MessageSender answers one user message.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, content string) (*query.Exchange, error)
}

// ConversationHandler exposes the conversation endpoints.
type ConversationHandler struct {
	service ConversationService
	deleter ConversationDeleter
	sender  MessageSender
	log     zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(service ConversationService, deleter ConversationDeleter, sender MessageSender, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		deleter: deleter,
		sender:  sender,
		log:     log.With().Str("handler", "conversation").Logger(),
	}
}

// List handles GET /api/v1/conversations
// @Summary List conversations
// @Description Returns every conversation, most recently updated first
// @Tags Conversations
// @Produce json
// @Success 200 {array} responses.ConversationSummary
// @Failure 500 {object} responses.ErrorResponse
// @Router /api/v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, responses.MapConversations(items))
}

// Create handles POST /api/v1/conversations
// @Summary Create a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param request body requests.CreateConversationRequest false "Conversation"
// @Success 201 {object} responses.ConversationResponse
// @Failure 400 {object} responses.ErrorResponse
// @Router /api/v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req requests.CreateConversationRequest
	// an empty body creates a default conversation
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(),
			"4e6a8c0e-2b4d-4f61-a3c5-7e9b1d3f5a72")
		return
	}

	conv, err := h.service.Create(c.Request.Context(), conversation.CreateParams{
		Title:       req.Title,
		FeatureMode: worker.FeatureMode(req.FeatureMode),
	})
	if err != nil {
		responses.HandleError(c, err, "failed to create conversation")
		return
	}
	c.JSON(http.StatusCreated, responses.MapConversation(conv))
}

// Get handles GET /api/v1/conversations/:id
// @Summary Get a conversation with its documents and messages
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} responses.ConversationDetailResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /api/v1/conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	detail, err := h.service.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get conversation")
		return
	}
	c.JSON(http.StatusOK, responses.MapConversationDetail(detail))
}

// Update handles PATCH /api/v1/conversations/:id
// @Summary Rename a conversation or change its feature mode
// @Tags Conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body requests.UpdateConversationRequest true "Changes"
// @Success 200 {object} responses.ConversationResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /api/v1/conversations/{id} [patch]
func (h *ConversationHandler) Update(c *gin.Context) {
	var req requests.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(),
			"6a8c0e2a-4d6f-4183-b5e7-9b1d3f5a7c84")
		return
	}

	params := conversation.UpdateParams{Title: req.Title}
	if req.FeatureMode != nil {
		mode := worker.FeatureMode(*req.FeatureMode)
		params.FeatureMode = &mode
	}

	conv, err := h.service.Update(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		responses.HandleError(c, err, "failed to update conversation")
		return
	}
	c.JSON(http.StatusOK, responses.MapConversation(conv))
}

// Delete handles DELETE /api/v1/conversations/:id
// @Summary Delete a conversation with its documents and messages
// @Tags Conversations
// @Param id path string true "Conversation ID"
// @Success 200
// @Failure 404 {object} responses.ErrorResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /api/v1/conversations/{id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.deleter.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		responses.HandleError(c, err, "failed to delete conversation")
		return
	}
	c.Status(http.StatusOK)
}

// SendMessage handles POST /api/v1/conversations/:id/messages
// @Summary Ask a question about the conversation's documents
// @Tags Conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body requests.SendMessageRequest true "Message"
// @Success 200 {object} responses.ExchangeResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Failure 502 {object} responses.ErrorResponse
// @Router /api/v1/conversations/{id}/messages [post]
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	var req requests.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(),
			"8c0e2a4c-6f8b-4295-87f9-1d3f5a7c9e96")
		return
	}

	exchange, err := h.sender.SendMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		responses.HandleError(c, err, "failed to send message")
		return
	}
	c.JSON(http.StatusOK, responses.MapExchange(exchange))
}
