package entities

import (
	"time"

	"gorm.io/datatypes"

	"jan-server/services/docchat-api/internal/domain/message"
)

// Message represents the database schema for conversation messages.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`

	PublicID       string                      `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID string                      `gorm:"type:varchar(50);index:idx_messages_conversation_created;not null"`
	Role           string                      `gorm:"type:varchar(20);not null"`
	Content        string                      `gorm:"type:text;not null"`
	Sources        datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// EtoD converts database entity to domain model.
func (m *Message) EtoD() *message.Message {
	var sources []string
	if len(m.Sources) > 0 {
		sources = []string(m.Sources)
	}
	return &message.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           message.Role(m.Role),
		Content:        m.Content,
		Sources:        sources,
		CreatedAt:      m.CreatedAt,
	}
}

// NewSchemaMessage creates a database entity from domain model.
func NewSchemaMessage(m *message.Message) *Message {
	sources := m.Sources
	if sources == nil {
		sources = []string{}
	}
	return &Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		Sources:        datatypes.JSONSlice[string](sources),
		CreatedAt:      m.CreatedAt,
	}
}
