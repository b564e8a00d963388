package document

import (
	"context"
	"fmt"
	"strings"

	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// StatusUpdate is the worker callback payload for one document.
type StatusUpdate struct {
	Status       string
	ErrorMessage *string
}

// WebhookService accepts the worker's processing callbacks.
type WebhookService struct {
	machine *StateMachine
}

// NewWebhookService creates the webhook entry point over the state machine.
func NewWebhookService(machine *StateMachine) *WebhookService {
	return &WebhookService{machine: machine}
}

// HandleStatus applies a worker callback. Only terminal statuses are accepted; duplicate
// callbacks for the recorded status succeed without side effects.
func (w *WebhookService) HandleStatus(ctx context.Context, documentID string, update StatusUpdate) (*Document, error) {
	status := Status(strings.ToLower(strings.TrimSpace(update.Status)))
	if !status.IsTerminal() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("invalid status %q: expected %s or %s", update.Status, StatusProcessed, StatusFailed), nil,
			"6d8f0a2c-3e5b-4172-9a4d-0c2e8b6f1d39")
	}
	return w.machine.Transition(ctx, documentID, status, update.ErrorMessage)
}
