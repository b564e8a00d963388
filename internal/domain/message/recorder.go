package message

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/realtime"
	"jan-server/services/docchat-api/internal/utils/idgen"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// Recorder persists a message and then publishes it to the conversation room.
type Recorder struct {
	repo        Repository
	broadcaster realtime.Broadcaster
	log         zerolog.Logger
}

// NewRecorder creates a message recorder.
func NewRecorder(repo Repository, broadcaster realtime.Broadcaster, log zerolog.Logger) *Recorder {
	if broadcaster == nil {
		broadcaster = realtime.NopBroadcaster{}
	}
	return &Recorder{
		repo:        repo,
		broadcaster: broadcaster,
		log:         log.With().Str("component", "message-recorder").Logger(),
	}
}

// Record appends a message to the conversation and broadcasts it as newMessage.
// A broadcast failure is logged; the message stays persisted.
func (r *Recorder) Record(ctx context.Context, conversationID string, role Role, content string, sources []string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"message content is required", nil, "5f0b7c1e-9a2d-4e63-8b15-0c7d3e2a9f41")
	}
	if !role.IsValid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid message role: "+string(role), nil, "b3e1d0a4-7c6f-4b28-9e5a-1d8f2c4b6a70")
	}

	publicID, err := idgen.NewMessageID()
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to generate message id", err, "0e9c2b7d-3f1a-4c58-a6d4-8b2e7f1c5d93")
	}

	msg := &Message{
		PublicID:       publicID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        sources,
	}
	if err := r.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := r.broadcaster.Publish(ctx, conversationID, realtime.EventNewMessage, msg); err != nil {
		r.log.Warn().Err(err).
			Str("conversation_id", conversationID).
			Str("message_id", msg.PublicID).
			Msg("broadcast new message failed")
	}
	return msg, nil
}
