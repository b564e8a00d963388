package conversationrepo

import (
	"context"
	"encoding/json"
	"time"

	domain "jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/infrastructure/database/entities"
	"jan-server/services/docchat-api/internal/infrastructure/database/transaction"
	"jan-server/services/docchat-api/internal/infrastructure/repository"
)

// Repository persists conversations.
type Repository struct {
	db *transaction.Database
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository builds a conversation repository.
func NewRepository(db *transaction.Database) *Repository {
	return &Repository{db: db}
}

// Create inserts the conversation record.
func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)
	if err := r.db.GetTx(ctx).Create(entity).Error; err != nil {
		return repository.DatabaseError(ctx, err, "failed to create conversation", "a1c3e5f7-0b2d-4f46-8a9c-1e3f5a7b9c01")
	}
	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByPublicID fetches a conversation by its public ID.
func (r *Repository) FindByPublicID(ctx context.Context, publicID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	result := r.db.GetTx(ctx).Where("public_id = ?", publicID).Limit(1).Find(&entity)
	if result.Error != nil {
		return nil, repository.DatabaseError(ctx, result.Error, "failed to fetch conversation", "b2d4f6a8-1c3e-4057-9bad-2f4a6b8c0d12")
	}
	if result.RowsAffected == 0 {
		return nil, repository.NotFound(ctx, "conversation", publicID, "c3e5a7b9-2d4f-4168-8cbe-3a5b7c9d1e23")
	}
	return entity.EtoD(), nil
}

// Exists reports whether a conversation with the public ID is stored.
func (r *Repository) Exists(ctx context.Context, publicID string) (bool, error) {
	var count int64
	if err := r.db.GetTx(ctx).Model(&entities.Conversation{}).Where("public_id = ?", publicID).Count(&count).Error; err != nil {
		return false, repository.DatabaseError(ctx, err, "failed to check conversation", "d4f6b8c0-3e5a-4279-9dcf-4b6c8d0e2f34")
	}
	return count > 0, nil
}

// List returns every conversation, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]*domain.Conversation, error) {
	var rows []entities.Conversation
	if err := r.db.GetTx(ctx).Order("updated_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, repository.DatabaseError(ctx, err, "failed to list conversations", "e5a7c9d1-4f6b-438a-8ed0-5c7d9e1f3a45")
	}
	out := make([]*domain.Conversation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out, nil
}

// Update writes the mutable metadata of the conversation.
func (r *Repository) Update(ctx context.Context, conv *domain.Conversation) error {
	now := time.Now().UTC()
	result := r.db.GetTx(ctx).Model(&entities.Conversation{}).
		Where("public_id = ?", conv.PublicID).
		Updates(map[string]any{
			"title":        conv.Title,
			"feature_mode": string(conv.FeatureMode),
			"updated_at":   now,
		})
	if result.Error != nil {
		return repository.DatabaseError(ctx, result.Error, "failed to update conversation", "f6b8d0e2-5a7c-449b-9fe1-6d8e0f2a4b56")
	}
	if result.RowsAffected == 0 {
		return repository.NotFound(ctx, "conversation", conv.PublicID, "07c9e1f3-6b8d-45ac-80f2-7e9f1a3b5c67")
	}
	conv.UpdatedAt = now
	return nil
}

// AppendDocuments appends ids to the JSON document list in one statement.
func (r *Repository) AppendDocuments(ctx context.Context, publicID string, documentIDs []string) error {
	payload, err := json.Marshal(documentIDs)
	if err != nil {
		return repository.DatabaseError(ctx, err, "failed to encode document ids", "18d0f2a4-7c9e-46bd-91a3-8f0a2b4c6d78")
	}
	result := r.db.GetTx(ctx).Exec(
		"UPDATE conversations SET document_ids = document_ids || ?::jsonb, updated_at = now() WHERE public_id = ?",
		string(payload), publicID,
	)
	if result.Error != nil {
		return repository.DatabaseError(ctx, result.Error, "failed to attach documents", "29e1a3b5-8d0f-47ce-82b4-9a1b3c5d7e89")
	}
	if result.RowsAffected == 0 {
		return repository.NotFound(ctx, "conversation", publicID, "3af2b4c6-9e1a-48df-93c5-0b2c4d6e8f9a")
	}
	return nil
}

// RemoveDocument drops every occurrence of the id from the JSON document list.
func (r *Repository) RemoveDocument(ctx context.Context, publicID string, documentID string) error {
	result := r.db.GetTx(ctx).Exec(
		"UPDATE conversations SET document_ids = document_ids - ?::text, updated_at = now() WHERE public_id = ?",
		documentID, publicID,
	)
	if result.Error != nil {
		return repository.DatabaseError(ctx, result.Error, "failed to detach document", "4b03c5d7-0f2b-49e0-84d6-1c3d5e7f9a0b")
	}
	if result.RowsAffected == 0 {
		return repository.NotFound(ctx, "conversation", publicID, "5c14d6e8-1a3c-4af1-95e7-2d4e6f8a0b1c")
	}
	return nil
}

// Delete removes the conversation row.
func (r *Repository) Delete(ctx context.Context, publicID string) error {
	result := r.db.GetTx(ctx).Where("public_id = ?", publicID).Delete(&entities.Conversation{})
	if result.Error != nil {
		return repository.DatabaseError(ctx, result.Error, "failed to delete conversation", "6d25e7f9-2b4d-4b02-86f8-3e5f7a9b1c2d")
	}
	if result.RowsAffected == 0 {
		return repository.NotFound(ctx, "conversation", publicID, "7e36f8a0-3c5e-4c13-97a9-4f6a8b0c2d3e")
	}
	return nil
}

// Touch bumps the update time.
func (r *Repository) Touch(ctx context.Context, publicID string) error {
	err := r.db.GetTx(ctx).Model(&entities.Conversation{}).
		Where("public_id = ?", publicID).
		Update("updated_at", time.Now().UTC()).Error
	if err != nil {
		return repository.DatabaseError(ctx, err, "failed to touch conversation", "8f47a9b1-4d6f-4d24-88ba-5a7b9c1d3e4f")
	}
	return nil
}
