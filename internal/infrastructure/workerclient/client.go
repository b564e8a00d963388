// Package workerclient talks to the document worker over HTTP.
package workerclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"

	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/infrastructure/metrics"
	"jan-server/services/docchat-api/internal/infrastructure/observability"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

const (
	pathProcess     = "/process-document"
	pathQuery       = "/query"
	pathDeleteOne   = "/delete-document"
	pathDeleteBatch = "/delete-documents"
	pathHealth      = "/health"
)

// Client implements worker.Client with resty.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

var _ worker.Client = (*Client)(nil)

// NewClient creates a Resty-backed worker client. Per-call deadlines come from the
// caller's context; timeout only caps calls that carry none.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Jan-DocChat-API/1.0")
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// Ingest asks the worker to extract and embed a stored document.
func (c *Client) Ingest(ctx context.Context, req worker.IngestRequest) error {
	return c.post(ctx, "ingest", pathProcess, req, nil,
		attribute.String("document.id", req.DocumentID),
		attribute.String("document.namespace", req.VectorNamespace))
}

// Query asks the worker to answer a question against the given namespaces.
func (c *Client) Query(ctx context.Context, req worker.QueryRequest) (*worker.QueryResponse, error) {
	if req.VectorNamespaces == nil {
		req.VectorNamespaces = []string{}
	}
	if req.ChatHistory == nil {
		req.ChatHistory = []worker.ChatTurn{}
	}
	var resp worker.QueryResponse
	err := c.post(ctx, "query", pathQuery, req, &resp,
		attribute.Int("query.namespaces", len(req.VectorNamespaces)),
		attribute.Int("query.history", len(req.ChatHistory)),
		attribute.String("query.feature", string(req.FeatureMode)))
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteOne asks the worker to drop one document's file and embeddings.
func (c *Client) DeleteOne(ctx context.Context, target worker.DeleteTarget) error {
	return c.post(ctx, "delete_one", pathDeleteOne, target, nil,
		attribute.String("document.namespace", target.VectorNamespace))
}

// DeleteBatch sends every target in one request.
func (c *Client) DeleteBatch(ctx context.Context, targets []worker.DeleteTarget) error {
	return c.post(ctx, "delete_batch", pathDeleteBatch, targets, nil,
		attribute.Int("documents", len(targets)))
}

// Health checks that the worker answers.
func (c *Client) Health(ctx context.Context) error {
	started := time.Now()
	resp, err := c.httpClient.R().SetContext(ctx).Get(pathHealth)
	err = c.check(ctx, "health", resp, err)
	metrics.RecordWorkerCall("health", err, time.Since(started))
	return err
}

func (c *Client) post(ctx context.Context, operation, path string, body, result any, attrs ...attribute.KeyValue) (err error) {
	ctx, span := observability.StartSpan(ctx, "worker."+operation, attrs...)
	started := time.Now()
	defer func() {
		metrics.RecordWorkerCall(operation, err, time.Since(started))
		observability.EndSpan(span, err)
	}()

	request := c.httpClient.R().SetContext(ctx).SetBody(body)
	if result != nil {
		request.SetResult(result)
	}
	resp, err := request.Post(path)
	return c.check(ctx, operation, resp, err)
}

func (c *Client) check(ctx context.Context, operation string, resp *resty.Response, err error) error {
	if err != nil {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("document worker %s request failed", operation), err,
			"8a1c3e5f-7b9d-4f02-a4c6-0e2f4a6b8c1d",
			map[string]any{"worker_url": c.baseURL})
	}
	if resp.IsError() {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("document worker %s error (%d): %s", operation, resp.StatusCode(), truncate(resp.String(), 512)), nil,
			"9b2d4f6a-8c0e-4013-b5d7-1f3a5b7c9d2e",
			map[string]any{"worker_url": c.baseURL, "status_code": resp.StatusCode()})
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
