package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/utils/idgen"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

const maxTitleLength = 255

// CreateParams describes a new conversation. Empty fields take their defaults.
type CreateParams struct {
	Title       string `validate:"max=255"`
	FeatureMode worker.FeatureMode
}

// UpdateParams carries a partial update; nil fields are left unchanged.
type UpdateParams struct {
	Title       *string `validate:"omitempty,max=255"`
	FeatureMode *worker.FeatureMode
}

// DocumentLister resolves the documents of a conversation.
type DocumentLister interface {
	FindByConversationID(ctx context.Context, conversationID string) ([]*document.Document, error)
}

// MessageLister reads the message log of a conversation.
type MessageLister interface {
	ListByConversation(ctx context.Context, conversationID string) ([]*message.Message, error)
}

// Service is the conversation aggregate: metadata, the attached document list and the detail view.
type Service struct {
	repo      Repository
	documents DocumentLister
	messages  MessageLister
	validate  *validator.Validate
	log       zerolog.Logger
}

// NewService creates the conversation service.
func NewService(repo Repository, documents DocumentLister, messages MessageLister, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		documents: documents,
		messages:  messages,
		validate:  validator.New(),
		log:       log.With().Str("component", "conversation-service").Logger(),
	}
}

// Create starts a new conversation.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Conversation, error) {
	params.Title = strings.TrimSpace(params.Title)
	if err := s.validate.Struct(params); err != nil {
		return nil, invalidParams(ctx, err)
	}
	if params.Title == "" {
		params.Title = DefaultTitle
	}

	mode, err := resolveFeatureMode(ctx, params.FeatureMode)
	if err != nil {
		return nil, err
	}

	publicID, err := idgen.NewConversationID()
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to generate conversation id", err, "1a7c3e5f-8b2d-4f90-a6c4-2e8b0d6f4a13")
	}

	conv := &Conversation{
		PublicID:    publicID,
		Title:       params.Title,
		FeatureMode: mode,
		DocumentIDs: []string{},
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.log.Info().Str("conversation_id", conv.PublicID).Str("feature_mode", string(conv.FeatureMode)).Msg("conversation created")
	return conv, nil
}

// Get returns one conversation.
func (s *Service) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	return s.repo.FindByPublicID(ctx, conversationID)
}

// Exists reports whether the conversation is present.
func (s *Service) Exists(ctx context.Context, conversationID string) (bool, error) {
	if strings.TrimSpace(conversationID) == "" {
		return false, nil
	}
	return s.repo.Exists(ctx, conversationID)
}

// List returns every conversation ordered by last update, newest first.
func (s *Service) List(ctx context.Context) ([]*Conversation, error) {
	return s.repo.List(ctx)
}

// Rename replaces the conversation title.
func (s *Service) Rename(ctx context.Context, conversationID, title string) (*Conversation, error) {
	return s.Update(ctx, conversationID, UpdateParams{Title: &title})
}

// UpdateFeatureMode changes the prompt mode used for future questions.
func (s *Service) UpdateFeatureMode(ctx context.Context, conversationID string, mode worker.FeatureMode) (*Conversation, error) {
	return s.Update(ctx, conversationID, UpdateParams{FeatureMode: &mode})
}

// Update applies a partial update. A present title must not be blank.
func (s *Service) Update(ctx context.Context, conversationID string, params UpdateParams) (*Conversation, error) {
	if params.Title == nil && params.FeatureMode == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"nothing to update: provide title or featureMode", nil, "3c9e5a7b-0d4f-4a12-b8e6-4a0d2f8b6c25")
	}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				"title is required", nil, "5e1a7c9d-2f6b-4c34-9a08-6c2f4b0d8e37")
		}
		params.Title = &title
	}
	if err := s.validate.Struct(params); err != nil {
		return nil, invalidParams(ctx, err)
	}
	if params.FeatureMode != nil && !params.FeatureMode.IsValid() {
		return nil, invalidFeatureMode(ctx, *params.FeatureMode)
	}

	conv, err := s.repo.FindByPublicID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if params.Title != nil {
		conv.Title = *params.Title
	}
	if params.FeatureMode != nil {
		conv.FeatureMode = *params.FeatureMode
	}
	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// AttachDocuments appends document ids to the conversation in the given order.
func (s *Service) AttachDocuments(ctx context.Context, conversationID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	return s.repo.AppendDocuments(ctx, conversationID, documentIDs)
}

// DetachDocument removes a document id from the conversation.
func (s *Service) DetachDocument(ctx context.Context, conversationID, documentID string) error {
	return s.repo.RemoveDocument(ctx, conversationID, documentID)
}

// Touch bumps the conversation's update time so it sorts first in List.
func (s *Service) Touch(ctx context.Context, conversationID string) error {
	return s.repo.Touch(ctx, conversationID)
}

// GetDetail loads the conversation with its documents and its messages oldest first.
func (s *Service) GetDetail(ctx context.Context, conversationID string) (*Detail, error) {
	conv, err := s.repo.FindByPublicID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.FindByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &Detail{Conversation: conv, Documents: docs, Messages: msgs}, nil
}

func resolveFeatureMode(ctx context.Context, mode worker.FeatureMode) (worker.FeatureMode, error) {
	if strings.TrimSpace(string(mode)) == "" {
		return worker.DefaultFeatureMode, nil
	}
	if !mode.IsValid() {
		return "", invalidFeatureMode(ctx, mode)
	}
	return mode, nil
}

func invalidFeatureMode(ctx context.Context, mode worker.FeatureMode) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		fmt.Sprintf("invalid featureMode %q", mode), nil, "7a3c9e1f-4b8d-4e56-8c2a-8e4b6d2f0a49")
}

func invalidParams(ctx context.Context, err error) error {
	msg := "invalid conversation parameters"
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		f := verrs[0]
		if f.Tag() == "max" {
			msg = fmt.Sprintf("%s must be at most %d characters", strings.ToLower(f.Field()), maxTitleLength)
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		msg, err, "9c5e1a3b-6d0f-4078-a4e2-0a6d8f4b2c5b")
}
