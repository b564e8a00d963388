package domaintest

import (
	"context"
	"io"
	"sync"

	"jan-server/services/docchat-api/internal/domain/worker"
)

// Event is one recorded broadcast.
type Event struct {
	ConversationID string
	Name           string
	Payload        any
}

// Broadcaster records every published event.
type Broadcaster struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Publish implements realtime.Broadcaster.
func (b *Broadcaster) Publish(_ context.Context, conversationID string, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Event{ConversationID: conversationID, Name: event, Payload: payload})
	return b.Err
}

// Events returns a copy of the recorded events.
func (b *Broadcaster) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Worker is a scriptable worker.Client that records every call.
type Worker struct {
	mu sync.Mutex

	QueryFunc  func(ctx context.Context, req worker.QueryRequest) (*worker.QueryResponse, error)
	IngestErr  error
	DeleteErr  error
	HealthErr  error
	Ingested   []worker.IngestRequest
	Queries    []worker.QueryRequest
	DeletedOne []worker.DeleteTarget
	Batches    [][]worker.DeleteTarget
}

func (w *Worker) Ingest(_ context.Context, req worker.IngestRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Ingested = append(w.Ingested, req)
	return w.IngestErr
}

func (w *Worker) Query(ctx context.Context, req worker.QueryRequest) (*worker.QueryResponse, error) {
	w.mu.Lock()
	w.Queries = append(w.Queries, req)
	fn := w.QueryFunc
	w.mu.Unlock()
	if fn == nil {
		return &worker.QueryResponse{Answer: "ok"}, nil
	}
	return fn(ctx, req)
}

func (w *Worker) DeleteOne(_ context.Context, target worker.DeleteTarget) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.DeletedOne = append(w.DeletedOne, target)
	return w.DeleteErr
}

func (w *Worker) DeleteBatch(_ context.Context, targets []worker.DeleteTarget) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Batches = append(w.Batches, append([]worker.DeleteTarget(nil), targets...))
	return w.DeleteErr
}

func (w *Worker) Health(context.Context) error { return w.HealthErr }

// Snapshot returns copies of the recorded calls.
func (w *Worker) Snapshot() (ingested []worker.IngestRequest, queries []worker.QueryRequest, one []worker.DeleteTarget, batches [][]worker.DeleteTarget) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append(ingested, w.Ingested...), append(queries, w.Queries...),
		append(one, w.DeletedOne...), append(batches, w.Batches...)
}

// Storage keeps uploaded objects in memory.
type Storage struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
}

// Put implements document.Storage.
func (s *Storage) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Objects == nil {
		s.Objects = map[string][]byte{}
	}
	s.Objects[key] = data
	return "mem://" + key, nil
}
