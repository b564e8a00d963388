package documentrepo

import (
	"context"
	"time"

	domain "jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/infrastructure/database/entities"
	"jan-server/services/docchat-api/internal/infrastructure/database/transaction"
	"jan-server/services/docchat-api/internal/infrastructure/metrics"
	"jan-server/services/docchat-api/internal/infrastructure/repository"
)

// Repository persists documents.
type Repository struct {
	db *transaction.Database
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository builds a document repository.
func NewRepository(db *transaction.Database) *Repository {
	return &Repository{db: db}
}

// Create inserts the document. The unique index on vector_namespace turns a collision into a conflict.
func (r *Repository) Create(ctx context.Context, doc *domain.Document) error {
	entity := entities.NewSchemaDocument(doc)
	if err := r.db.GetTx(ctx).Create(entity).Error; err != nil {
		return repository.DatabaseError(ctx, err, "failed to create document", "9a58b0c2-5e7a-4e35-89cb-6b8c0d2e4f50")
	}
	doc.ID = entity.ID
	doc.CreatedAt = entity.CreatedAt
	doc.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByPublicID fetches a document by its public ID.
func (r *Repository) FindByPublicID(ctx context.Context, publicID string) (*domain.Document, error) {
	var entity entities.Document
	result := r.db.GetTx(ctx).Where("public_id = ?", publicID).Limit(1).Find(&entity)
	if result.Error != nil {
		return nil, repository.DatabaseError(ctx, result.Error, "failed to fetch document", "ab69c1d3-6f8b-4f46-9adc-7c9d1e3f5a61")
	}
	if result.RowsAffected == 0 {
		return nil, repository.NotFound(ctx, "document", publicID, "bc7ad2e4-7a9c-4057-8bed-8d0e2f4a6b72")
	}
	return entity.EtoD(), nil
}

// FindByConversationID returns the conversation's documents oldest first.
func (r *Repository) FindByConversationID(ctx context.Context, conversationID string) ([]*domain.Document, error) {
	var rows []entities.Document
	err := r.db.GetTx(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, repository.DatabaseError(ctx, err, "failed to list documents", "cd8be3f5-8b0d-4168-9cfe-9e1f3a5b7c83")
	}
	return toDomain(rows), nil
}

// CompareAndSetStatus moves the document from one status to another only if it is still in from.
func (r *Repository) CompareAndSetStatus(ctx context.Context, publicID string, from, to domain.Status, errorMessage *string) (bool, error) {
	result := r.db.GetTx(ctx).Model(&entities.Document{}).
		Where("public_id = ? AND status = ?", publicID, string(from)).
		Updates(map[string]any{
			"status":        string(to),
			"error_message": errorMessage,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return false, repository.DatabaseError(ctx, result.Error, "failed to update document status", "de9cf4a6-9c1e-4279-8d0f-0f2a4b6c8d94")
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	metrics.RecordTransition(string(from), string(to))
	return true, nil
}

// Delete removes one document row.
func (r *Repository) Delete(ctx context.Context, publicID string) error {
	result := r.db.GetTx(ctx).Where("public_id = ?", publicID).Delete(&entities.Document{})
	if result.Error != nil {
		return repository.DatabaseError(ctx, result.Error, "failed to delete document", "efad05b7-0d2f-438a-9e1a-1a3b5c7d9ea5")
	}
	if result.RowsAffected == 0 {
		return repository.NotFound(ctx, "document", publicID, "f0be16c8-1e3a-449b-8f2b-2b4c6d8e0fb6")
	}
	return nil
}

// DeleteByConversationID removes and returns every document of the conversation.
func (r *Repository) DeleteByConversationID(ctx context.Context, conversationID string) ([]*domain.Document, error) {
	var rows []entities.Document
	err := r.db.GetTx(ctx).Raw(
		"DELETE FROM documents WHERE conversation_id = ? RETURNING *",
		conversationID,
	).Scan(&rows).Error
	if err != nil {
		return nil, repository.DatabaseError(ctx, err, "failed to delete documents", "01cf27d9-2f4b-4aac-903c-3c5d7e9f1ac7")
	}
	return toDomain(rows), nil
}

// FindStale returns documents left in status since before the cutoff, oldest first.
func (r *Repository) FindStale(ctx context.Context, status domain.Status, updatedBefore time.Time, limit int) ([]*domain.Document, error) {
	var rows []entities.Document
	query := r.db.GetTx(ctx).
		Where("status = ? AND updated_at < ?", string(status), updatedBefore).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, repository.DatabaseError(ctx, err, "failed to find stale documents", "12d038ea-3a5c-4bbd-814d-4d6e8f0a2bd8")
	}
	return toDomain(rows), nil
}

// Touch bumps the update time.
func (r *Repository) Touch(ctx context.Context, publicID string) error {
	err := r.db.GetTx(ctx).Model(&entities.Document{}).
		Where("public_id = ?", publicID).
		Update("updated_at", time.Now().UTC()).Error
	if err != nil {
		return repository.DatabaseError(ctx, err, "failed to touch document", "23e149fb-4b6d-4cce-925e-5e7f9a1b3ce9")
	}
	return nil
}

func toDomain(rows []entities.Document) []*domain.Document {
	out := make([]*domain.Document, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out
}
