package document

import (
	"context"
	"errors"
	"time"

	"jan-server/services/docchat-api/internal/domain/worker"
)

// Status represents the processing lifecycle of a document.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"

	// Terminal states (no further transitions allowed)
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid document status transition")

// ValidTransitions defines allowed status transitions.
var ValidTransitions = map[Status][]Status{
	StatusUploading:  {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusProcessed, StatusFailed},
	StatusProcessed:  {},
	StatusFailed:     {},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := ValidTransitions[s]
	return ok
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if a transition from current status to target status is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to the target status and returns error if invalid.
func (s Status) TransitionTo(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}

// Document is an uploaded file owned by one conversation.
type Document struct {
	ID              uint
	PublicID        string
	ConversationID  string
	FileName        string
	Location        string
	MimeType        string
	Size            int64
	Status          Status
	ErrorMessage    *string
	VectorNamespace string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IngestRequest builds the worker ingestion payload for the document.
func (d *Document) IngestRequest() worker.IngestRequest {
	return worker.IngestRequest{
		DocumentID:      d.PublicID,
		Location:        d.Location,
		FileName:        d.FileName,
		VectorNamespace: d.VectorNamespace,
	}
}

// DeleteTarget addresses the document's worker-side data.
func (d *Document) DeleteTarget() worker.DeleteTarget {
	return worker.DeleteTarget{
		Location:        d.Location,
		VectorNamespace: d.VectorNamespace,
	}
}

// Repository persists documents.
type Repository interface {
	// Create inserts the document. A vector namespace collision is reported as a conflict.
	Create(ctx context.Context, doc *Document) error
	FindByPublicID(ctx context.Context, publicID string) (*Document, error)
	// FindByConversationID returns the conversation's documents oldest first.
	FindByConversationID(ctx context.Context, conversationID string) ([]*Document, error)
	// CompareAndSetStatus moves the document from one status to another and reports
	// whether the row was still in the expected status.
	CompareAndSetStatus(ctx context.Context, publicID string, from, to Status, errorMessage *string) (bool, error)
	Delete(ctx context.Context, publicID string) error
	// DeleteByConversationID removes and returns every document of the conversation.
	DeleteByConversationID(ctx context.Context, conversationID string) ([]*Document, error)
	// FindStale returns documents left in status since before the cutoff, oldest first.
	FindStale(ctx context.Context, status Status, updatedBefore time.Time, limit int) ([]*Document, error)
	Touch(ctx context.Context, publicID string) error
}
