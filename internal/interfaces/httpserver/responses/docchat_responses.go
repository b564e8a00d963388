package responses

import (
	"time"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/query"
)

// ConversationSummary is one entry of the conversation list.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	FeatureMode string    `json:"featureMode"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ConversationResponse is a conversation with its document references.
type ConversationResponse struct {
	ConversationSummary
	DocumentIDs []string `json:"documentIds"`
}

// DocumentResponse summarises a document.
type DocumentResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	FileName       string    `json:"fileName"`
	MimeType       string    `json:"mimeType"`
	Size           int64     `json:"size"`
	Status         string    `json:"status"`
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ConversationDetailResponse is the body of GET /api/v1/conversations/{id}.
type ConversationDetailResponse struct {
	Conversation ConversationDetail `json:"conversation"`
	Messages     []*message.Message `json:"messages"`
}

// ConversationDetail is a conversation with its documents resolved.
type ConversationDetail struct {
	ConversationResponse
	Documents []DocumentResponse `json:"documents"`
}

// ExchangeResponse is the body of POST /api/v1/conversations/{id}/messages.
type ExchangeResponse struct {
	UserMessage      *message.Message `json:"userMessage"`
	AssistantMessage *message.Message `json:"assistantMessage"`
}

// MapConversationSummary maps a conversation to its list entry.
func MapConversationSummary(c *conversation.Conversation) ConversationSummary {
	return ConversationSummary{
		ID:          c.PublicID,
		Title:       c.Title,
		FeatureMode: string(c.FeatureMode),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// MapConversation maps a conversation to its response.
func MapConversation(c *conversation.Conversation) ConversationResponse {
	ids := c.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	return ConversationResponse{ConversationSummary: MapConversationSummary(c), DocumentIDs: ids}
}

// MapConversations maps the conversation list.
func MapConversations(items []*conversation.Conversation) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(items))
	for _, c := range items {
		out = append(out, MapConversationSummary(c))
	}
	return out
}

// MapDocument maps a document to its summary.
func MapDocument(d *document.Document) DocumentResponse {
	return DocumentResponse{
		ID:             d.PublicID,
		ConversationID: d.ConversationID,
		FileName:       d.FileName,
		MimeType:       d.MimeType,
		Size:           d.Size,
		Status:         d.Status.String(),
		ErrorMessage:   d.ErrorMessage,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MapDocuments maps a document list.
func MapDocuments(items []*document.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(items))
	for _, d := range items {
		out = append(out, MapDocument(d))
	}
	return out
}

// MapConversationDetail maps the aggregate read model.
func MapConversationDetail(d *conversation.Detail) ConversationDetailResponse {
	messages := d.Messages
	if messages == nil {
		messages = []*message.Message{}
	}
	return ConversationDetailResponse{
		Conversation: ConversationDetail{
			ConversationResponse: MapConversation(d.Conversation),
			Documents:            MapDocuments(d.Documents),
		},
		Messages: messages,
	}
}

// MapExchange maps the outcome of one answered turn.
func MapExchange(e *query.Exchange) ExchangeResponse {
	return ExchangeResponse{UserMessage: e.UserMessage, AssistantMessage: e.AssistantMessage}
}
