package requests

// CreateConversationRequest is the body of POST /api/v1/conversations.
type CreateConversationRequest struct {
	Title       string `json:"title,omitempty"`
	FeatureMode string `json:"featureMode,omitempty"`
}

// UpdateConversationRequest is the body of PATCH /api/v1/conversations/{id}.
// At least one field must be present.
type UpdateConversationRequest struct {
	Title       *string `json:"title,omitempty"`
	FeatureMode *string `json:"featureMode,omitempty"`
}

// SendMessageRequest is the body of POST /api/v1/conversations/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// UpdateDocumentStatusRequest is the worker callback body of PATCH /api/v1/documents/{id}/status.
type UpdateDocumentStatusRequest struct {
	Status       string  `json:"status" binding:"required"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}
