// Package query answers one user turn against the conversation's processed documents.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultHistoryLimit = 20
)

// Conversations is what the orchestrator reads and bumps on a conversation.
type Conversations interface {
	Get(ctx context.Context, conversationID string) (*conversation.Conversation, error)
	Touch(ctx context.Context, conversationID string) error
}

// Documents lists a conversation's documents.
type Documents interface {
	FindByConversationID(ctx context.Context, conversationID string) ([]*document.Document, error)
}

// History reads the tail of the message log.
type History interface {
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*message.Message, error)
}

// Asker is the synchronous question endpoint of the worker.
type Asker interface {
	Query(ctx context.Context, req worker.QueryRequest) (*worker.QueryResponse, error)
}

// Options tunes the orchestrator.
type Options struct {
	Timeout      time.Duration
	HistoryLimit int
}

// Exchange is the persisted outcome of one answered turn.
type Exchange struct {
	UserMessage      *message.Message `json:"userMessage"`
	AssistantMessage *message.Message `json:"assistantMessage"`
}

// Orchestrator handles user turns.
type Orchestrator struct {
	conversations Conversations
	documents     Documents
	history       History
	recorder      *message.Recorder
	asker         Asker
	opts          Options
	log           zerolog.Logger
}

// NewOrchestrator creates a query orchestrator. Zero options take the defaults.
func NewOrchestrator(
	conversations Conversations,
	documents Documents,
	history History,
	recorder *message.Recorder,
	asker Asker,
	opts Options,
	log zerolog.Logger,
) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Orchestrator{
		conversations: conversations,
		documents:     documents,
		history:       history,
		recorder:      recorder,
		asker:         asker,
		opts:          opts,
		log:           log.With().Str("component", "query-orchestrator").Logger(),
	}
}

// SendMessage records the user's question, asks the worker and records the answer.
//
// The user message is durable as soon as it is written: a worker failure leaves it
// unanswered and returns an EXTERNAL error, a blank answer returns INTERNAL. The worker
// call runs on its own deadline and is not cancelled when the caller goes away.
func (o *Orchestrator) SendMessage(ctx context.Context, conversationID, content string) (*Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"message content is required", nil, "3a9f1c5e-7b2d-4e80-9c46-1f3b5d7e9a02")
	}

	conv, err := o.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg, err := o.recorder.Record(ctx, conv.PublicID, message.RoleUser, content, nil)
	if err != nil {
		return nil, err
	}
	o.touch(ctx, conv.PublicID)

	recent, err := o.history.ListRecent(ctx, conv.PublicID, o.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	docs, err := o.documents.FindByConversationID(ctx, conv.PublicID)
	if err != nil {
		return nil, err
	}
	ready := ProcessedDocuments(docs)

	req := worker.QueryRequest{
		Question:         content,
		ChatHistory:      ChatHistory(recent),
		VectorNamespaces: Namespaces(ready),
		FeatureMode:      conv.FeatureMode,
	}
	if !req.FeatureMode.IsValid() {
		req.FeatureMode = worker.DefaultFeatureMode
	}

	// the answer is persisted even if the caller has gone away
	detached := context.WithoutCancel(ctx)
	queryCtx, cancel := context.WithTimeout(detached, o.opts.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := o.asker.Query(queryCtx, req)
	if err != nil {
		o.log.Error().Err(err).
			Str("conversation_id", conv.PublicID).
			Dur("elapsed", time.Since(started)).
			Msg("worker query failed")
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal) {
			return nil, err
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"document worker unavailable", err, "5c1b3e7a-9d4f-4a02-8e68-3d5f7b9a1c24")
	}
	if resp == nil || strings.TrimSpace(resp.Answer) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"document worker returned an empty answer", nil, "7e3d5a9c-1f6b-4c24-a08a-5f7b9d1c3e46")
	}

	assistantMsg, err := o.recorder.Record(detached, conv.PublicID, message.RoleAssistant, resp.Answer, DocumentIDs(ready))
	if err != nil {
		return nil, err
	}
	o.touch(detached, conv.PublicID)

	o.log.Info().
		Str("conversation_id", conv.PublicID).
		Int("history", len(req.ChatHistory)).
		Int("namespaces", len(req.VectorNamespaces)).
		Dur("elapsed", time.Since(started)).
		Msg("question answered")

	return &Exchange{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (o *Orchestrator) touch(ctx context.Context, conversationID string) {
	if err := o.conversations.Touch(ctx, conversationID); err != nil {
		o.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("touch conversation failed")
	}
}

// ProcessedDocuments keeps only documents the worker has finished embedding.
func ProcessedDocuments(docs []*document.Document) []*document.Document {
	ready := make([]*document.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Status == document.StatusProcessed {
			ready = append(ready, doc)
		}
	}
	return ready
}

// Namespaces projects documents to their vector namespaces.
func Namespaces(docs []*document.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.VectorNamespace)
	}
	return out
}

// DocumentIDs projects documents to their public ids.
func DocumentIDs(docs []*document.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.PublicID)
	}
	return out
}

// ChatHistory projects messages to the role and content pairs the worker expects.
func ChatHistory(msgs []*message.Message) []worker.ChatTurn {
	out := make([]worker.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, worker.ChatTurn{Role: string(m.Role), Content: m.Content})
	}
	return out
}
