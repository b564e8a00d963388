package messagerepo

import (
	"context"

	domain "jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/infrastructure/database/entities"
	"jan-server/services/docchat-api/internal/infrastructure/database/transaction"
	"jan-server/services/docchat-api/internal/infrastructure/repository"
)

// insertMessage assigns created_at as the later of the current clock and the newest
// message of the conversation, keeping timestamps non-decreasing in write order.
const insertMessage = `
INSERT INTO messages (public_id, conversation_id, role, content, sources, created_at)
VALUES (?, ?, ?, ?, ?, GREATEST(
    clock_timestamp(),
    COALESCE((SELECT max(created_at) FROM messages WHERE conversation_id = ?), '-infinity'::timestamptz)
))
RETURNING id, created_at`

// Repository persists messages.
type Repository struct {
	db *transaction.Database
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository builds a message repository.
func NewRepository(db *transaction.Database) *Repository {
	return &Repository{db: db}
}

// Create appends a message.
func (r *Repository) Create(ctx context.Context, msg *domain.Message) error {
	entity := entities.NewSchemaMessage(msg)
	var row entities.Message
	err := r.db.GetTx(ctx).Raw(insertMessage,
		entity.PublicID, entity.ConversationID, entity.Role, entity.Content, entity.Sources, entity.ConversationID,
	).Scan(&row).Error
	if err != nil {
		return repository.DatabaseError(ctx, err, "failed to create message", "34f25a0c-5c7e-4ddf-836f-6f8a0b2c4dfa")
	}
	msg.ID = row.ID
	msg.CreatedAt = row.CreatedAt
	return nil
}

// ListByConversation returns every message oldest first.
func (r *Repository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	var rows []entities.Message
	err := r.db.GetTx(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, repository.DatabaseError(ctx, err, "failed to list messages", "45036b1d-6d8f-4ee0-9470-7a9b1c3d5e0b")
	}
	return toDomain(rows), nil
}

// ListRecent returns the newest limit messages, oldest first.
func (r *Repository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	var rows []entities.Message
	query := r.db.GetTx(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	if err != nil {
		return nil, repository.DatabaseError(ctx, err, "failed to list recent messages", "56147c2e-7e9a-4ff1-8581-8b0c2d4e6f1c")
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return toDomain(rows), nil
}

// DeleteByConversationID removes every message of the conversation.
func (r *Repository) DeleteByConversationID(ctx context.Context, conversationID string) (int64, error) {
	result := r.db.GetTx(ctx).Where("conversation_id = ?", conversationID).Delete(&entities.Message{})
	if result.Error != nil {
		return 0, repository.DatabaseError(ctx, result.Error, "failed to delete messages", "67258d3f-8fab-4002-9692-9c1d3e5f7a2d")
	}
	return result.RowsAffected, nil
}

func toDomain(rows []entities.Message) []*domain.Message {
	out := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out
}
