// Package dispatch issues fire-and-forget requests to the document worker.
//
// A dispatch never blocks its caller, is never retried and never rolls back the local
// change that triggered it. Failures are handed to a FailureSink.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/docchat-api/internal/domain/worker"
)

// Kind names a dispatch operation.
type Kind string

const (
	KindIngest      Kind = "ingest"
	KindDeleteOne   Kind = "delete_one"
	KindDeleteBatch Kind = "delete_batch"
)

// FailureSink receives dispatch failures.
type FailureSink interface {
	DispatchFailed(kind Kind, subject string, err error)
}

// LogSink reports dispatch failures through zerolog.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a logging failure sink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "dispatch").Logger()}
}

// DispatchFailed implements FailureSink.
func (s *LogSink) DispatchFailed(kind Kind, subject string, err error) {
	s.log.Error().Err(err).
		Str("kind", string(kind)).
		Str("subject", subject).
		Msg("worker dispatch failed")
}

// Task is the detached handle of one dispatch. Callers are free to drop it.
type Task struct {
	Kind    Kind
	Subject string

	done chan struct{}
	err  error
}

func newTask(kind Kind, subject string) *Task {
	return &Task{Kind: kind, Subject: subject, done: make(chan struct{})}
}

// Done is closed once the dispatch has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the dispatch outcome. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Dispatcher runs worker calls on detached goroutines.
type Dispatcher struct {
	client  worker.Client
	sink    FailureSink
	timeout time.Duration
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher. timeout bounds each worker call independently of
// the request that triggered it.
func NewDispatcher(client worker.Client, sink FailureSink, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client:  client,
		sink:    sink,
		timeout: timeout,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
}

// Ingest asks the worker to process one document.
func (d *Dispatcher) Ingest(ctx context.Context, req worker.IngestRequest) *Task {
	return d.launch(ctx, KindIngest, req.DocumentID, func(ctx context.Context) error {
		return d.client.Ingest(ctx, req)
	})
}

// DeleteOne asks the worker to drop one document's file and embeddings.
func (d *Dispatcher) DeleteOne(ctx context.Context, target worker.DeleteTarget) *Task {
	return d.launch(ctx, KindDeleteOne, target.VectorNamespace, func(ctx context.Context) error {
		return d.client.DeleteOne(ctx, target)
	})
}

// DeleteBatch sends one request carrying every target. An empty batch sends nothing.
func (d *Dispatcher) DeleteBatch(ctx context.Context, targets []worker.DeleteTarget) *Task {
	subject := fmt.Sprintf("%d documents", len(targets))
	if len(targets) == 0 {
		task := newTask(KindDeleteBatch, subject)
		close(task.done)
		return task
	}
	batch := append([]worker.DeleteTarget(nil), targets...)
	return d.launch(ctx, KindDeleteBatch, subject, func(ctx context.Context) error {
		return d.client.DeleteBatch(ctx, batch)
	})
}

// Wait blocks until in-flight dispatches finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) launch(ctx context.Context, kind Kind, subject string, call func(context.Context) error) *Task {
	task := newTask(kind, subject)
	// keep request-scoped values such as the request id, drop the cancellation
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(task.done)

		runCtx := detached
		if d.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(detached, d.timeout)
			defer cancel()
		}

		task.err = d.run(runCtx, call)
		if task.err != nil {
			d.sink.DispatchFailed(kind, subject, task.err)
			return
		}
		d.log.Debug().Str("kind", string(kind)).Str("subject", subject).Msg("worker dispatch delivered")
	}()
	return task
}

func (d *Dispatcher) run(ctx context.Context, call func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()
	return call(ctx)
}
