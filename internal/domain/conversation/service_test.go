package conversation_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/domaintest"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

func newService(t *testing.T) (*conversation.Service, *domaintest.Store) {
	t.Helper()
	store := domaintest.NewStore()
	return conversation.NewService(store.Conversations(), store.Documents(), store.Messages(), zerolog.Nop()), store
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name      string
		params    conversation.CreateParams
		wantTitle string
		wantMode  worker.FeatureMode
		wantErr   platformerrors.ErrorType
	}{
		{
			name:      "defaults",
			params:    conversation.CreateParams{},
			wantTitle: conversation.DefaultTitle,
			wantMode:  worker.FeatureSmartChat,
		},
		{
			name:      "blank title",
			params:    conversation.CreateParams{Title: "   "},
			wantTitle: conversation.DefaultTitle,
			wantMode:  worker.FeatureSmartChat,
		},
		{
			name:      "explicit values",
			params:    conversation.CreateParams{Title: " Q3 review ", FeatureMode: worker.FeatureDocumentAnalysis},
			wantTitle: "Q3 review",
			wantMode:  worker.FeatureDocumentAnalysis,
		},
		{
			name:    "unknown feature mode",
			params:  conversation.CreateParams{FeatureMode: "Poetry"},
			wantErr: platformerrors.ErrorTypeValidation,
		},
		{
			name:    "title too long",
			params:  conversation.CreateParams{Title: strings.Repeat("x", 256)},
			wantErr: platformerrors.ErrorTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			conv, err := svc.Create(context.Background(), tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, platformerrors.IsErrorType(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(conv.PublicID, "conv_"))
			assert.Equal(t, tt.wantTitle, conv.Title)
			assert.Equal(t, tt.wantMode, conv.FeatureMode)
			assert.Empty(t, conv.DocumentIDs)
		})
	}
}

func TestService_Rename(t *testing.T) {
	svc, _ := newService(t)
	conv, err := svc.Create(context.Background(), conversation.CreateParams{})
	require.NoError(t, err)

	renamed, err := svc.Rename(context.Background(), conv.PublicID, "Contracts")
	require.NoError(t, err)
	assert.Equal(t, "Contracts", renamed.Title)

	for _, title := range []string{"", "   "} {
		_, err = svc.Rename(context.Background(), conv.PublicID, title)
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	}

	got, err := svc.Get(context.Background(), conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "Contracts", got.Title)

	_, err = svc.Rename(context.Background(), "conv_missing", "x")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestService_UpdateFeatureMode(t *testing.T) {
	svc, _ := newService(t)
	conv, err := svc.Create(context.Background(), conversation.CreateParams{})
	require.NoError(t, err)

	updated, err := svc.UpdateFeatureMode(context.Background(), conv.PublicID, worker.FeatureAnalyticalInsights)
	require.NoError(t, err)
	assert.Equal(t, worker.FeatureAnalyticalInsights, updated.FeatureMode)
	assert.Equal(t, conversation.DefaultTitle, updated.Title)

	_, err = svc.UpdateFeatureMode(context.Background(), conv.PublicID, "nope")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = svc.Update(context.Background(), conv.PublicID, conversation.UpdateParams{})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestService_AttachAndDetach(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	conv, err := svc.Create(ctx, conversation.CreateParams{})
	require.NoError(t, err)

	require.NoError(t, svc.AttachDocuments(ctx, conv.PublicID, []string{"doc_a", "doc_b"}))
	require.NoError(t, svc.AttachDocuments(ctx, conv.PublicID, []string{"doc_a"}))

	got, err := svc.Get(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_a", "doc_b", "doc_a"}, got.DocumentIDs)

	require.NoError(t, svc.DetachDocument(ctx, conv.PublicID, "doc_a"))
	got, err = svc.Get(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_b"}, got.DocumentIDs)
	assert.False(t, got.HasDocument("doc_a"))
}

func TestService_ListOrdersByUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, conversation.CreateParams{Title: "first"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.Create(ctx, conversation.CreateParams{Title: "second"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, svc.Touch(ctx, first.PublicID))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
}

func TestService_GetDetail(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	conv, err := svc.Create(ctx, conversation.CreateParams{})
	require.NoError(t, err)

	require.NoError(t, store.Documents().Create(ctx, &document.Document{
		PublicID: "doc_1", ConversationID: conv.PublicID, FileName: "a.pdf",
		Status: document.StatusProcessing, VectorNamespace: "doc-1",
	}))
	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, store.Messages().Create(ctx, &message.Message{
			PublicID: "msg_" + content, ConversationID: conv.PublicID, Role: message.RoleUser, Content: content,
		}))
	}

	detail, err := svc.GetDetail(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, conv.PublicID, detail.Conversation.PublicID)
	require.Len(t, detail.Documents, 1)
	assert.Equal(t, "a.pdf", detail.Documents[0].FileName)
	require.Len(t, detail.Messages, 3)
	assert.Equal(t, "one", detail.Messages[0].Content)
	assert.Equal(t, "three", detail.Messages[2].Content)

	_, err = svc.GetDetail(ctx, "conv_missing")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}
