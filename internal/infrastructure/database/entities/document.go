package entities

import (
	"time"

	"jan-server/services/docchat-api/internal/domain/document"
)

// Document represents the database schema for uploaded documents.
type Document struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID        string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID  string  `gorm:"type:varchar(50);index;not null"`
	FileName        string  `gorm:"type:varchar(512);not null"`
	Location        string  `gorm:"type:text;not null"`
	MimeType        string  `gorm:"type:varchar(128);not null"`
	Size            int64   `gorm:"not null"`
	Status          string  `gorm:"type:varchar(20);index:idx_documents_status_updated_at;not null"`
	ErrorMessage    *string `gorm:"type:text"`
	VectorNamespace string  `gorm:"type:varchar(64);uniqueIndex;not null"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "documents"
}

// EtoD converts database entity to domain model.
func (d *Document) EtoD() *document.Document {
	return &document.Document{
		ID:              d.ID,
		PublicID:        d.PublicID,
		ConversationID:  d.ConversationID,
		FileName:        d.FileName,
		Location:        d.Location,
		MimeType:        d.MimeType,
		Size:            d.Size,
		Status:          document.Status(d.Status),
		ErrorMessage:    d.ErrorMessage,
		VectorNamespace: d.VectorNamespace,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// NewSchemaDocument creates a database entity from domain model.
func NewSchemaDocument(d *document.Document) *Document {
	return &Document{
		ID:              d.ID,
		PublicID:        d.PublicID,
		ConversationID:  d.ConversationID,
		FileName:        d.FileName,
		Location:        d.Location,
		MimeType:        d.MimeType,
		Size:            d.Size,
		Status:          string(d.Status),
		ErrorMessage:    d.ErrorMessage,
		VectorNamespace: d.VectorNamespace,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
