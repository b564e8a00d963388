package conversation

import (
	"context"
	"time"

	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/worker"
)

// DefaultTitle is used when a conversation is created without a title.
const DefaultTitle = "New Chat"

// Conversation groups the documents a user chats with and the messages exchanged about them.
type Conversation struct {
	ID          uint               `json:"-"`
	PublicID    string             `json:"id"`
	Title       string             `json:"title"`
	FeatureMode worker.FeatureMode `json:"featureMode"`
	DocumentIDs []string           `json:"documentIds"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// HasDocument reports whether the document id is attached to the conversation.
func (c *Conversation) HasDocument(documentID string) bool {
	for _, id := range c.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// Detail is a conversation with its resolved documents and ordered messages.
type Detail struct {
	Conversation *Conversation        `json:"conversation"`
	Documents    []*document.Document `json:"documents"`
	Messages     []*message.Message   `json:"messages"`
}

// Repository persists conversations.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	Exists(ctx context.Context, publicID string) (bool, error)
	// List returns every conversation, most recently updated first.
	List(ctx context.Context) ([]*Conversation, error)
	// Update writes the title and feature mode of an existing conversation.
	Update(ctx context.Context, conv *Conversation) error
	// AppendDocuments appends ids to the document list without deduplication.
	AppendDocuments(ctx context.Context, publicID string, documentIDs []string) error
	// RemoveDocument drops every occurrence of the id from the document list.
	RemoveDocument(ctx context.Context, publicID string, documentID string) error
	Delete(ctx context.Context, publicID string) error
	Touch(ctx context.Context, publicID string) error
}
