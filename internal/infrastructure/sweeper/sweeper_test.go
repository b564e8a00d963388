package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/domain/dispatch"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/domaintest"
)

func seed(t *testing.T, store *domaintest.Store, id string, status document.Status, age time.Duration) {
	t.Helper()
	require.NoError(t, store.Documents().Create(context.Background(), &document.Document{
		PublicID:        id,
		ConversationID:  "conv_1",
		FileName:        id + ".pdf",
		Location:        "/uploads/" + id + ".pdf",
		Status:          status,
		VectorNamespace: "doc-" + id,
	}))
	store.SetDocumentUpdatedAt(id, time.Now().Add(-age))
}

func TestSweepOnce(t *testing.T) {
	store := domaintest.NewStore()
	seed(t, store, "doc_stale", document.StatusProcessing, time.Hour)
	seed(t, store, "doc_fresh", document.StatusProcessing, time.Minute)
	seed(t, store, "doc_done", document.StatusProcessed, time.Hour)

	w := &domaintest.Worker{}
	d := dispatch.NewDispatcher(w, dispatch.NewLogSink(zerolog.Nop()), time.Second, zerolog.Nop())
	s := New(store.Documents(), d, Config{Enabled: true, After: 15 * time.Minute}, zerolog.Nop())

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, d.Wait(context.Background()))

	ingested, _, _, _ := w.Snapshot()
	require.Len(t, ingested, 1)
	assert.Equal(t, "doc_stale", ingested[0].DocumentID)
	assert.Equal(t, "doc-doc_stale", ingested[0].VectorNamespace)

	// touched documents wait another period
	n, err = s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepOnce_Batch(t *testing.T) {
	store := domaintest.NewStore()
	seed(t, store, "doc_a", document.StatusProcessing, 3*time.Hour)
	seed(t, store, "doc_b", document.StatusProcessing, 2*time.Hour)
	seed(t, store, "doc_c", document.StatusProcessing, time.Hour)

	w := &domaintest.Worker{}
	d := dispatch.NewDispatcher(w, dispatch.NewLogSink(zerolog.Nop()), time.Second, zerolog.Nop())
	s := New(store.Documents(), d, Config{Enabled: true, After: time.Minute, Batch: 2}, zerolog.Nop())

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, d.Wait(context.Background()))

	ingested, _, _, _ := w.Snapshot()
	ids := []string{ingested[0].DocumentID, ingested[1].DocumentID}
	assert.ElementsMatch(t, []string{"doc_a", "doc_b"}, ids)
}

type failingDocs struct{}

func (failingDocs) FindStale(context.Context, document.Status, time.Time, int) ([]*document.Document, error) {
	return nil, errors.New("db down")
}

func (failingDocs) Touch(context.Context, string) error { return nil }

func TestSweepOnce_Error(t *testing.T) {
	s := New(failingDocs{}, nil, Config{Enabled: true}, zerolog.Nop())
	_, err := s.SweepOnce(context.Background())
	require.Error(t, err)
}

func TestRun_Disabled(t *testing.T) {
	s := New(failingDocs{}, nil, Config{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}

type fakeLocker struct {
	held  bool
	calls int
}

func (l *fakeLocker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	l.calls++
	if l.held {
		return errors.New("lock already taken")
	}
	return fn(ctx)
}

func TestRunJob_Locker(t *testing.T) {
	store := domaintest.NewStore()
	seed(t, store, "doc_stale", document.StatusProcessing, time.Hour)

	w := &domaintest.Worker{}
	d := dispatch.NewDispatcher(w, dispatch.NewLogSink(zerolog.Nop()), time.Second, zerolog.Nop())
	s := New(store.Documents(), d, Config{Enabled: true}, zerolog.Nop())

	held := &fakeLocker{held: true}
	s.UseLocker(held)
	s.runJob(context.Background())
	require.NoError(t, d.Wait(context.Background()))
	ingested, _, _, _ := w.Snapshot()
	assert.Empty(t, ingested)
	assert.Equal(t, 1, held.calls)

	free := &fakeLocker{}
	s.UseLocker(free)
	s.runJob(context.Background())
	require.NoError(t, d.Wait(context.Background()))
	ingested, _, _, _ = w.Snapshot()
	require.Len(t, ingested, 1)
	assert.Equal(t, "doc_stale", ingested[0].DocumentID)
}
