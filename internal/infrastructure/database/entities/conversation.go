package entities

import (
	"time"

	"gorm.io/datatypes"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/worker"
)

// Conversation represents the database schema for conversations.
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID    string                      `gorm:"type:varchar(50);uniqueIndex;not null"`
	Title       string                      `gorm:"type:varchar(256);not null"`
	FeatureMode string                      `gorm:"type:varchar(40);not null"`
	DocumentIDs datatypes.JSONSlice[string] `gorm:"column:document_ids;type:jsonb;not null"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// EtoD converts database entity to domain model.
func (c *Conversation) EtoD() *conversation.Conversation {
	ids := []string(c.DocumentIDs)
	if ids == nil {
		ids = []string{}
	}
	return &conversation.Conversation{
		ID:          c.ID,
		PublicID:    c.PublicID,
		Title:       c.Title,
		FeatureMode: worker.FeatureMode(c.FeatureMode),
		DocumentIDs: ids,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// NewSchemaConversation creates a database entity from domain model.
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	ids := c.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	return &Conversation{
		ID:          c.ID,
		PublicID:    c.PublicID,
		Title:       c.Title,
		FeatureMode: string(c.FeatureMode),
		DocumentIDs: datatypes.JSONSlice[string](ids),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
