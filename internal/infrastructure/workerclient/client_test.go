package workerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

type recorded struct {
	path string
	body []byte
}

func newWorkerServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, recorded{path: r.URL.Path, body: body})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestClient_Query(t *testing.T) {
	srv, calls := newWorkerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"42"}`))
	})
	client := NewClient(srv.URL+"/", time.Second)

	resp, err := client.Query(context.Background(), worker.QueryRequest{
		Question:    "meaning?",
		ChatHistory: []worker.ChatTurn{{Role: "user", Content: "meaning?"}},
		FeatureMode: worker.FeatureSmartChat,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", resp.Answer)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/query", got[0].path)
	assert.JSONEq(t, `{
		"question": "meaning?",
		"chatHistory": [{"role": "user", "content": "meaning?"}],
		"vectorNamespaces": [],
		"featureUsed": "Smart_Chat"
	}`, string(got[0].body))
}

func TestClient_Ingest(t *testing.T) {
	srv, calls := newWorkerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	client := NewClient(srv.URL, time.Second)

	err := client.Ingest(context.Background(), worker.IngestRequest{
		DocumentID: "doc_1", Location: "/data/a.pdf", FileName: "a.pdf", VectorNamespace: "doc-1",
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/process-document", got[0].path)
	assert.JSONEq(t, `{"documentId":"doc_1","filePath":"/data/a.pdf","fileName":"a.pdf","vectorNamespace":"doc-1"}`, string(got[0].body))
}

func TestClient_Deletes(t *testing.T) {
	srv, calls := newWorkerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	client := NewClient(srv.URL, time.Second)

	require.NoError(t, client.DeleteOne(context.Background(), worker.DeleteTarget{Location: "/a.pdf", VectorNamespace: "doc-a"}))
	require.NoError(t, client.DeleteBatch(context.Background(), []worker.DeleteTarget{
		{Location: "/a.pdf", VectorNamespace: "doc-a"},
		{Location: "/b.pdf", VectorNamespace: "doc-b"},
	}))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, "/delete-document", got[0].path)
	assert.JSONEq(t, `{"filePath":"/a.pdf","vectorNamespace":"doc-a"}`, string(got[0].body))
	assert.Equal(t, "/delete-documents", got[1].path)
	assert.JSONEq(t, `[{"filePath":"/a.pdf","vectorNamespace":"doc-a"},{"filePath":"/b.pdf","vectorNamespace":"doc-b"}]`, string(got[1].body))
}

func TestClient_Errors(t *testing.T) {
	t.Run("non 2xx is external", func(t *testing.T) {
		srv, _ := newWorkerServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		})
		_, err := NewClient(srv.URL, time.Second).Query(context.Background(), worker.QueryRequest{Question: "q"})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("deadline is external", func(t *testing.T) {
		srv, _ := newWorkerServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := NewClient(srv.URL, 0).Query(ctx, worker.QueryRequest{Question: "q"})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	})

	t.Run("unreachable is external", func(t *testing.T) {
		err := NewClient("http://127.0.0.1:1", time.Second).Health(context.Background())
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	})
}
