// Package deletion removes conversations and documents atomically and then asks the
// worker to drop the matching files and embeddings.
package deletion

import (
	"context"

	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/dispatch"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// Transactor runs fn inside one database transaction carried by the context.
// Returning an error from fn rolls everything back.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Dispatcher is the post-commit cleanup side of the worker.
type Dispatcher interface {
	DeleteOne(ctx context.Context, target worker.DeleteTarget) *dispatch.Task
	DeleteBatch(ctx context.Context, targets []worker.DeleteTarget) *dispatch.Task
}

// Deleter owns cascading deletes.
type Deleter struct {
	tx            Transactor
	conversations conversation.Repository
	documents     document.Repository
	messages      message.Repository
	dispatcher    Dispatcher
	log           zerolog.Logger
}

// NewDeleter creates the transactional deleter.
func NewDeleter(
	tx Transactor,
	conversations conversation.Repository,
	documents document.Repository,
	messages message.Repository,
	dispatcher Dispatcher,
	log zerolog.Logger,
) *Deleter {
	return &Deleter{
		tx:            tx,
		conversations: conversations,
		documents:     documents,
		messages:      messages,
		dispatcher:    dispatcher,
		log:           log.With().Str("component", "deleter").Logger(),
	}
}

// DeleteConversation removes the conversation, its messages and its documents in one
// transaction. Worker cleanup is dispatched only after the commit.
func (d *Deleter) DeleteConversation(ctx context.Context, conversationID string) error {
	var targets []worker.DeleteTarget
	var removedMessages int64

	err := d.tx.Transaction(ctx, func(txCtx context.Context) error {
		if _, err := d.conversations.FindByPublicID(txCtx, conversationID); err != nil {
			return err
		}
		if err := d.conversations.Delete(txCtx, conversationID); err != nil {
			return err
		}
		n, err := d.messages.DeleteByConversationID(txCtx, conversationID)
		if err != nil {
			return err
		}
		removedMessages = n
		docs, err := d.documents.DeleteByConversationID(txCtx, conversationID)
		if err != nil {
			return err
		}
		targets = make([]worker.DeleteTarget, 0, len(docs))
		for _, doc := range docs {
			targets = append(targets, doc.DeleteTarget())
		}
		return nil
	})
	if err != nil {
		return failed(ctx, err, "failed to delete conversation", "2b8d4f6a-1c3e-4a57-9e0b-3d5f7a9c1e62")
	}

	d.log.Info().
		Str("conversation_id", conversationID).
		Int64("messages", removedMessages).
		Int("documents", len(targets)).
		Msg("conversation deleted")

	d.dispatcher.DeleteBatch(ctx, targets)
	return nil
}

// DeleteDocument removes one document and detaches it from its conversation.
func (d *Deleter) DeleteDocument(ctx context.Context, documentID string) error {
	var target worker.DeleteTarget
	var conversationID string

	err := d.tx.Transaction(ctx, func(txCtx context.Context) error {
		doc, err := d.documents.FindByPublicID(txCtx, documentID)
		if err != nil {
			return err
		}
		if err := d.documents.Delete(txCtx, documentID); err != nil {
			return err
		}
		if err := d.conversations.RemoveDocument(txCtx, doc.ConversationID, documentID); err != nil &&
			!platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return err
		}
		target = doc.DeleteTarget()
		conversationID = doc.ConversationID
		return nil
	})
	if err != nil {
		return failed(ctx, err, "failed to delete document", "4d0f6b8c-3e5a-4c79-8b2d-5f7b9c1e3a84")
	}

	d.log.Info().Str("document_id", documentID).Str("conversation_id", conversationID).Msg("document deleted")

	d.dispatcher.DeleteOne(ctx, target)
	return nil
}

// failed keeps NotFound visible to the caller and reports everything else as internal.
func failed(ctx context.Context, err error, message, code string) error {
	if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return err
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, message, err, code)
}
