package message

import (
	"context"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Message is an append-only conversation entry.
// Ordering within a conversation is defined by CreatedAt, which the repository keeps
// non-decreasing in write order.
type Message struct {
	ID             uint      `json:"-"`
	PublicID       string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Sources        []string  `json:"sources,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Repository persists messages.
type Repository interface {
	// Create assigns CreatedAt so that it is never earlier than the newest message in the conversation.
	Create(ctx context.Context, msg *Message) error
	// ListByConversation returns every message in ascending CreatedAt order.
	ListByConversation(ctx context.Context, conversationID string) ([]*Message, error)
	// ListRecent returns the newest limit messages in ascending CreatedAt order.
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	DeleteByConversationID(ctx context.Context, conversationID string) (int64, error)
}
