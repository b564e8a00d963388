package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/query"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/responses"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockConversationService is a mock implementation of handlers.ConversationService.
type MockConversationService struct {
	CreateFunc    func(ctx context.Context, params conversation.CreateParams) (*conversation.Conversation, error)
	ListFunc      func(ctx context.Context) ([]*conversation.Conversation, error)
	GetDetailFunc func(ctx context.Context, conversationID string) (*conversation.Detail, error)
	UpdateFunc    func(ctx context.Context, conversationID string, params conversation.UpdateParams) (*conversation.Conversation, error)
}

func (m *MockConversationService) Create(ctx context.Context, params conversation.CreateParams) (*conversation.Conversation, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockConversationService) List(ctx context.Context) ([]*conversation.Conversation, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockConversationService) GetDetail(ctx context.Context, conversationID string) (*conversation.Detail, error) {
	if m.GetDetailFunc != nil {
		return m.GetDetailFunc(ctx, conversationID)
	}
	return nil, nil
}

func (m *MockConversationService) Update(ctx context.Context, conversationID string, params conversation.UpdateParams) (*conversation.Conversation, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, conversationID, params)
	}
	return nil, nil
}

type mockConversationDeleter struct {
	err     error
	deleted []string
}

func (m *mockConversationDeleter) DeleteConversation(_ context.Context, conversationID string) error {
	m.deleted = append(m.deleted, conversationID)
	return m.err
}

type mockSender struct {
	fn func(ctx context.Context, conversationID, content string) (*query.Exchange, error)
}

func (m *mockSender) SendMessage(ctx context.Context, conversationID, content string) (*query.Exchange, error) {
	return m.fn(ctx, conversationID, content)
}

func newConversationRouter(svc handlers.ConversationService, deleter handlers.ConversationDeleter, sender handlers.MessageSender) *gin.Engine {
	h := handlers.NewConversationHandler(svc, deleter, sender, zerolog.Nop())
	router := gin.New()
	router.GET("/api/v1/conversations", h.List)
	router.POST("/api/v1/conversations", h.Create)
	router.GET("/api/v1/conversations/:id", h.Get)
	router.PATCH("/api/v1/conversations/:id", h.Update)
	router.DELETE("/api/v1/conversations/:id", h.Delete)
	router.POST("/api/v1/conversations/:id/messages", h.SendMessage)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) responses.ErrorResponse {
	t.Helper()
	var resp responses.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sampleConversation(id string) *conversation.Conversation {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &conversation.Conversation{
		PublicID:    id,
		Title:       "Quarterly report",
		FeatureMode: worker.FeatureSmartChat,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestConversationHandler_List(t *testing.T) {
	svc := &MockConversationService{
		ListFunc: func(context.Context) ([]*conversation.Conversation, error) {
			return []*conversation.Conversation{sampleConversation("conv_b"), sampleConversation("conv_a")}, nil
		},
	}
	w := doJSON(t, newConversationRouter(svc, nil, nil), http.MethodGet, "/api/v1/conversations", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got []responses.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "conv_b", got[0].ID)
	assert.Equal(t, "Smart_Chat", got[0].FeatureMode)
}

func TestConversationHandler_Create(t *testing.T) {
	var captured conversation.CreateParams
	svc := &MockConversationService{
		CreateFunc: func(_ context.Context, params conversation.CreateParams) (*conversation.Conversation, error) {
			captured = params
			conv := sampleConversation("conv_new")
			conv.Title = conversation.DefaultTitle
			return conv, nil
		},
	}
	router := newConversationRouter(svc, nil, nil)

	t.Run("empty body", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/conversations", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, conversation.CreateParams{}, captured)
		assert.JSONEq(t, `{"id":"conv_new","title":"New Chat","featureMode":"Smart_Chat","documentIds":[],
			"createdAt":"2026-01-02T03:04:05Z","updatedAt":"2026-01-02T03:04:05Z"}`, w.Body.String())
	})

	t.Run("with mode", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/conversations", map[string]string{"title": "Q3", "featureMode": "Document_Analysis"})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "Q3", captured.Title)
		assert.Equal(t, worker.FeatureDocumentAnalysis, captured.FeatureMode)
	})

	t.Run("malformed", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/conversations", "{")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConversationHandler_Get(t *testing.T) {
	svc := &MockConversationService{
		GetDetailFunc: func(_ context.Context, id string) (*conversation.Detail, error) {
			if id != "conv_1" {
				return nil, platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
					platformerrors.ErrorTypeNotFound, "conversation not found", nil, "nf-uuid")
			}
			conv := sampleConversation("conv_1")
			conv.DocumentIDs = []string{"doc_1"}
			return &conversation.Detail{
				Conversation: conv,
				Documents: []*document.Document{{
					PublicID: "doc_1", ConversationID: "conv_1", FileName: "a.pdf", Status: document.StatusProcessed,
				}},
				Messages: []*message.Message{{PublicID: "msg_1", ConversationID: "conv_1", Role: message.RoleSystem, Content: "File processed successfully: a.pdf"}},
			}, nil
		},
	}
	router := newConversationRouter(svc, nil, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/conversations/conv_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got responses.ConversationDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "conv_1", got.Conversation.ID)
	require.Len(t, got.Conversation.Documents, 1)
	assert.Equal(t, "processed", got.Conversation.Documents[0].Status)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, message.RoleSystem, got.Messages[0].Role)

	w = doJSON(t, router, http.MethodGet, "/api/v1/conversations/conv_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "nf-uuid", decodeError(t, w).Code)
}

func TestConversationHandler_Update(t *testing.T) {
	var captured conversation.UpdateParams
	svc := &MockConversationService{
		UpdateFunc: func(ctx context.Context, _ string, params conversation.UpdateParams) (*conversation.Conversation, error) {
			captured = params
			if params.Title != nil && *params.Title == "" {
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
					"title must not be empty", nil, "val-uuid")
			}
			return sampleConversation("conv_1"), nil
		},
	}
	router := newConversationRouter(svc, nil, nil)

	w := doJSON(t, router, http.MethodPatch, "/api/v1/conversations/conv_1", map[string]string{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "val-uuid", resp.Code)
	assert.Equal(t, "title must not be empty", resp.Message)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/conversations/conv_1", map[string]string{"featureMode": "General_Conversation"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, captured.Title)
	require.NotNil(t, captured.FeatureMode)
	assert.Equal(t, worker.FeatureGeneralConversation, *captured.FeatureMode)
}

func TestConversationHandler_Delete(t *testing.T) {
	deleter := &mockConversationDeleter{}
	router := newConversationRouter(&MockConversationService{}, deleter, nil)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/conversations/conv_1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, []string{"conv_1"}, deleter.deleted)

	deleter.err = platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
		platformerrors.ErrorTypeNotFound, "conversation not found", nil, "")
	w = doJSON(t, router, http.MethodDelete, "/api/v1/conversations/conv_2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	deleter.err = platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
		platformerrors.ErrorTypeInternal, "delete conversation failed", nil, "")
	w = doJSON(t, router, http.MethodDelete, "/api/v1/conversations/conv_3", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to delete conversation", decodeError(t, w).Message)
}

func TestConversationHandler_SendMessage(t *testing.T) {
	sender := &mockSender{fn: func(ctx context.Context, conversationID, content string) (*query.Exchange, error) {
		switch content {
		case "down":
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
				"document worker is unavailable", nil, "ext-uuid")
		case "empty":
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
				"document worker returned an empty answer", nil, "int-uuid")
		}
		return &query.Exchange{
			UserMessage:      &message.Message{PublicID: "msg_u", ConversationID: conversationID, Role: message.RoleUser, Content: content},
			AssistantMessage: &message.Message{PublicID: "msg_a", ConversationID: conversationID, Role: message.RoleAssistant, Content: "42"},
		}, nil
	}}
	router := newConversationRouter(&MockConversationService{}, nil, sender)

	w := doJSON(t, router, http.MethodPost, "/api/v1/conversations/conv_1/messages", map[string]string{"content": "meaning?"})
	require.Equal(t, http.StatusOK, w.Code)
	var got responses.ExchangeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "meaning?", got.UserMessage.Content)
	assert.Equal(t, "42", got.AssistantMessage.Content)

	w = doJSON(t, router, http.MethodPost, "/api/v1/conversations/conv_1/messages", map[string]string{"content": "down"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "ext-uuid", decodeError(t, w).Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/conversations/conv_1/messages", map[string]string{"content": "empty"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/conversations/conv_1/messages", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
