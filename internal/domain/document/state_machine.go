package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/utils/idgen"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// maxTransitionAttempts bounds the re-read loop when a concurrent callback wins the status write.
const maxTransitionAttempts = 3

// ConversationReader resolves conversation existence without depending on the conversation package.
type ConversationReader interface {
	Exists(ctx context.Context, conversationID string) (bool, error)
}

// CreateParams describes a freshly stored upload.
type CreateParams struct {
	ConversationID string
	FileName       string
	Location       string
	MimeType       string
	Size           int64
}

// StateMachine owns document creation and status transitions.
type StateMachine struct {
	documents     Repository
	conversations ConversationReader
	recorder      *message.Recorder
	log           zerolog.Logger
}

// NewStateMachine creates the document state machine.
func NewStateMachine(documents Repository, conversations ConversationReader, recorder *message.Recorder, log zerolog.Logger) *StateMachine {
	return &StateMachine{
		documents:     documents,
		conversations: conversations,
		recorder:      recorder,
		log:           log.With().Str("component", "document-state-machine").Logger(),
	}
}

// Create records a document in processing status with a freshly minted vector namespace.
func (s *StateMachine) Create(ctx context.Context, params CreateParams) (*Document, error) {
	if strings.TrimSpace(params.FileName) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"file name is required", nil, "8d2f4a61-0b3e-4c7d-9f15-6e8a2b0c4d17")
	}

	exists, err := s.conversations.Exists(ctx, params.ConversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve conversation")
	}
	if !exists {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("conversation not found: %s", params.ConversationID), nil, "c41e9b07-2d5a-4f38-8a6c-3b7e1f0d9a25")
	}

	publicID, err := idgen.NewDocumentID()
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to generate document id", err, "7a3c5e90-1f2b-4d6a-8e47-0b9c3d5f1a68")
	}

	doc := &Document{
		PublicID:        publicID,
		ConversationID:  params.ConversationID,
		FileName:        params.FileName,
		Location:        params.Location,
		MimeType:        params.MimeType,
		Size:            params.Size,
		Status:          StatusProcessing,
		VectorNamespace: idgen.NewVectorNamespace(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", doc.PublicID).
		Str("conversation_id", doc.ConversationID).
		Str("vector_namespace", doc.VectorNamespace).
		Msg("document created")
	return doc, nil
}

// Transition moves a document into a terminal status.
//
// Repeating the transition the document already completed is a no-op that returns the
// document unchanged and emits nothing. Asking for the other terminal status is a conflict.
// Every applied transition appends one system message to the owning conversation.
func (s *StateMachine) Transition(ctx context.Context, documentID string, target Status, errorMessage *string) (*Document, error) {
	if !target.IsTerminal() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("invalid status %q: expected %s or %s", target, StatusProcessed, StatusFailed), nil,
			"2e6b8d1f-4a93-4c05-b7e2-9d1a3f6c8b40")
	}

	if target == StatusProcessed {
		errorMessage = nil
	} else if errorMessage != nil && strings.TrimSpace(*errorMessage) == "" {
		errorMessage = nil
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		doc, err := s.documents.FindByPublicID(ctx, documentID)
		if err != nil {
			return nil, err
		}

		if doc.Status == target {
			s.log.Debug().Str("document_id", documentID).Str("status", target.String()).Msg("duplicate status callback ignored")
			return doc, nil
		}
		if doc.Status.IsTerminal() {
			return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				fmt.Sprintf("document %s is already %s", documentID, doc.Status), nil,
				"9c0d2e4f-6b1a-4873-a5d9-1e3f7b2c8d64",
				map[string]any{"current_status": doc.Status.String(), "requested_status": target.String()})
		}
		if !doc.Status.CanTransitionTo(target) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				fmt.Sprintf("cannot move document from %s to %s", doc.Status, target), ErrInvalidTransition,
				"4b7e9a2c-0d3f-4e61-8c5b-7a2d9f1e3c06")
		}

		applied, err := s.documents.CompareAndSetStatus(ctx, documentID, doc.Status, target, errorMessage)
		if err != nil {
			return nil, err
		}
		if !applied {
			// another callback changed the row between read and write
			continue
		}

		from := doc.Status
		doc.Status = target
		doc.ErrorMessage = errorMessage

		s.log.Info().
			Str("document_id", documentID).
			Str("from", from.String()).
			Str("to", target.String()).
			Msg("document status changed")

		s.announce(ctx, doc)
		return doc, nil
	}

	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
		fmt.Sprintf("document %s is being updated concurrently", documentID), nil,
		"e5a1c7d3-8f2b-4096-b4e8-2c6d0a9f7b13")
}

// announce appends and broadcasts the system message for an applied transition.
// The status change is already committed, so a failure here is only logged.
func (s *StateMachine) announce(ctx context.Context, doc *Document) {
	content := StatusMessage(doc)
	if _, err := s.recorder.Record(ctx, doc.ConversationID, message.RoleSystem, content, []string{doc.PublicID}); err != nil {
		s.log.Error().Err(err).
			Str("document_id", doc.PublicID).
			Str("conversation_id", doc.ConversationID).
			Msg("failed to record status message")
	}
}

// StatusMessage renders the system message for a document in a terminal status.
func StatusMessage(doc *Document) string {
	if doc.Status == StatusProcessed {
		return fmt.Sprintf("File processed successfully: %s", doc.FileName)
	}
	if doc.ErrorMessage != nil {
		return fmt.Sprintf("File processing failed: %s - %s", doc.FileName, *doc.ErrorMessage)
	}
	return fmt.Sprintf("File processing failed: %s", doc.FileName)
}
