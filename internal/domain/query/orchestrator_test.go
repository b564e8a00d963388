package query_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/domaintest"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/query"
	"jan-server/services/docchat-api/internal/domain/realtime"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

type fixture struct {
	store        *domaintest.Store
	broadcaster  *domaintest.Broadcaster
	worker       *domaintest.Worker
	orchestrator *query.Orchestrator
	convID       string
}

func newFixture(t *testing.T, opts query.Options) *fixture {
	t.Helper()
	store := domaintest.NewStore()
	broadcaster := &domaintest.Broadcaster{}
	wk := &domaintest.Worker{}
	convs := conversation.NewService(store.Conversations(), store.Documents(), store.Messages(), zerolog.Nop())
	recorder := message.NewRecorder(store.Messages(), broadcaster, zerolog.Nop())
	orch := query.NewOrchestrator(convs, store.Documents(), store.Messages(), recorder, wk, opts, zerolog.Nop())

	conv, err := convs.Create(context.Background(), conversation.CreateParams{FeatureMode: worker.FeatureDocumentAnalysis})
	require.NoError(t, err)
	return &fixture{store: store, broadcaster: broadcaster, worker: wk, orchestrator: orch, convID: conv.PublicID}
}

func (f *fixture) addDocument(t *testing.T, id string, status document.Status) {
	t.Helper()
	require.NoError(t, f.store.Documents().Create(context.Background(), &document.Document{
		PublicID:        id,
		ConversationID:  f.convID,
		FileName:        id + ".pdf",
		Status:          status,
		VectorNamespace: "doc-" + id,
	}))
}

func (f *fixture) messages(t *testing.T) []*message.Message {
	t.Helper()
	msgs, err := f.store.Messages().ListByConversation(context.Background(), f.convID)
	require.NoError(t, err)
	return msgs
}

func TestOrchestrator_SendMessage(t *testing.T) {
	f := newFixture(t, query.Options{})
	f.addDocument(t, "ready", document.StatusProcessed)
	f.addDocument(t, "pending", document.StatusProcessing)
	f.addDocument(t, "broken", document.StatusFailed)
	f.worker.QueryFunc = func(_ context.Context, req worker.QueryRequest) (*worker.QueryResponse, error) {
		return &worker.QueryResponse{Answer: "Revenue grew 12%."}, nil
	}

	exchange, err := f.orchestrator.SendMessage(context.Background(), f.convID, "How did revenue change?")
	require.NoError(t, err)
	assert.Equal(t, message.RoleUser, exchange.UserMessage.Role)
	assert.Equal(t, "How did revenue change?", exchange.UserMessage.Content)
	assert.Equal(t, message.RoleAssistant, exchange.AssistantMessage.Role)
	assert.Equal(t, "Revenue grew 12%.", exchange.AssistantMessage.Content)
	assert.Equal(t, []string{"ready"}, exchange.AssistantMessage.Sources)

	_, queries, _, _ := f.worker.Snapshot()
	require.Len(t, queries, 1)
	req := queries[0]
	assert.Equal(t, "How did revenue change?", req.Question)
	assert.Equal(t, []string{"doc-ready"}, req.VectorNamespaces)
	assert.Equal(t, worker.FeatureDocumentAnalysis, req.FeatureMode)
	assert.Equal(t, []worker.ChatTurn{{Role: "user", Content: "How did revenue change?"}}, req.ChatHistory)

	events := f.broadcaster.Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, realtime.EventNewMessage, ev.Name)
		assert.Equal(t, f.convID, ev.ConversationID)
	}
	assert.Len(t, f.messages(t), 2)
}

func TestOrchestrator_NoProcessedDocuments(t *testing.T) {
	f := newFixture(t, query.Options{})
	f.addDocument(t, "pending", document.StatusProcessing)

	_, err := f.orchestrator.SendMessage(context.Background(), f.convID, "anything there?")
	require.NoError(t, err)

	_, queries, _, _ := f.worker.Snapshot()
	require.Len(t, queries, 1)
	assert.NotNil(t, queries[0].VectorNamespaces)
	assert.Empty(t, queries[0].VectorNamespaces)
}

func TestOrchestrator_HistoryWindow(t *testing.T) {
	f := newFixture(t, query.Options{HistoryLimit: 20})
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, f.store.Messages().Create(ctx, &message.Message{
			PublicID:       fmt.Sprintf("msg_%02d", i),
			ConversationID: f.convID,
			Role:           message.RoleUser,
			Content:        fmt.Sprintf("turn %02d", i),
		}))
	}

	_, err := f.orchestrator.SendMessage(ctx, f.convID, "latest")
	require.NoError(t, err)

	_, queries, _, _ := f.worker.Snapshot()
	history := queries[0].ChatHistory
	require.Len(t, history, 20)
	assert.Equal(t, "turn 06", history[0].Content)
	assert.Equal(t, "latest", history[19].Content)
}

func TestOrchestrator_Validation(t *testing.T) {
	f := newFixture(t, query.Options{})

	_, err := f.orchestrator.SendMessage(context.Background(), f.convID, "   ")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = f.orchestrator.SendMessage(context.Background(), "conv_missing", "hello")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	assert.Empty(t, f.messages(t))
	_, queries, _, _ := f.worker.Snapshot()
	assert.Empty(t, queries)
}

func TestOrchestrator_WorkerFailures(t *testing.T) {
	tests := []struct {
		name    string
		query   func(ctx context.Context, req worker.QueryRequest) (*worker.QueryResponse, error)
		wantErr platformerrors.ErrorType
	}{
		{
			name: "transport failure",
			query: func(context.Context, worker.QueryRequest) (*worker.QueryResponse, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: platformerrors.ErrorTypeExternal,
		},
		{
			name: "timeout",
			query: func(ctx context.Context, _ worker.QueryRequest) (*worker.QueryResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			wantErr: platformerrors.ErrorTypeExternal,
		},
		{
			name: "blank answer",
			query: func(context.Context, worker.QueryRequest) (*worker.QueryResponse, error) {
				return &worker.QueryResponse{Answer: "  \n"}, nil
			},
			wantErr: platformerrors.ErrorTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, query.Options{Timeout: 20 * time.Millisecond})
			f.worker.QueryFunc = tt.query

			exchange, err := f.orchestrator.SendMessage(context.Background(), f.convID, "hello?")
			require.Error(t, err)
			assert.Nil(t, exchange)
			assert.True(t, platformerrors.IsErrorType(err, tt.wantErr), "got %v", err)

			msgs := f.messages(t)
			require.Len(t, msgs, 1, "only the user turn is kept")
			assert.Equal(t, message.RoleUser, msgs[0].Role)
		})
	}
}

func TestOrchestrator_QueryOutlivesCaller(t *testing.T) {
	f := newFixture(t, query.Options{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	f.worker.QueryFunc = func(qctx context.Context, _ worker.QueryRequest) (*worker.QueryResponse, error) {
		cancel()
		time.Sleep(10 * time.Millisecond)
		if err := qctx.Err(); err != nil {
			return nil, err
		}
		return &worker.QueryResponse{Answer: "still here"}, nil
	}

	exchange, err := f.orchestrator.SendMessage(ctx, f.convID, "hello?")
	require.NoError(t, err)
	assert.Equal(t, "still here", exchange.AssistantMessage.Content)
}
