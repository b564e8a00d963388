// Package worker describes the contract of the external document worker that performs
// extraction, embedding and retrieval-augmented answering.
package worker

import "context"

// FeatureMode selects the worker prompt used to answer a question.
type FeatureMode string

const (
	FeatureSmartChat           FeatureMode = "Smart_Chat"
	FeatureDocumentAnalysis    FeatureMode = "Document_Analysis"
	FeatureAnalyticalInsights  FeatureMode = "Analytical_Insights"
	FeatureGeneralConversation FeatureMode = "General_Conversation"

	DefaultFeatureMode = FeatureSmartChat
)

// IsValid reports whether the mode belongs to the closed set the worker understands.
func (m FeatureMode) IsValid() bool {
	switch m {
	case FeatureSmartChat, FeatureDocumentAnalysis, FeatureAnalyticalInsights, FeatureGeneralConversation:
		return true
	}
	return false
}

// ChatTurn is a single history entry sent with a query.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IngestRequest asks the worker to extract and embed one stored document.
type IngestRequest struct {
	DocumentID      string `json:"documentId"`
	Location        string `json:"filePath"`
	FileName        string `json:"fileName"`
	VectorNamespace string `json:"vectorNamespace"`
}

// QueryRequest asks the worker to answer a question against a set of namespaces.
type QueryRequest struct {
	Question         string      `json:"question"`
	ChatHistory      []ChatTurn  `json:"chatHistory"`
	VectorNamespaces []string    `json:"vectorNamespaces"`
	FeatureMode      FeatureMode `json:"featureUsed"`
}

// QueryResponse is the worker answer.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// DeleteTarget addresses one document's stored file and embeddings.
type DeleteTarget struct {
	Location        string `json:"filePath"`
	VectorNamespace string `json:"vectorNamespace"`
}

// Client is the outbound worker API.
type Client interface {
	Ingest(ctx context.Context, req IngestRequest) error
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
	DeleteOne(ctx context.Context, target DeleteTarget) error
	DeleteBatch(ctx context.Context, targets []DeleteTarget) error
	Health(ctx context.Context) error
}
