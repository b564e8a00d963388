package handlers

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Conversation *ConversationHandler
	Document     *DocumentHandler
	Realtime     *RealtimeHandler
	Health       *HealthHandler
}

// NewProvider constructs the handler provider.
func NewProvider(
	conversation *ConversationHandler,
	document *DocumentHandler,
	realtime *RealtimeHandler,
	health *HealthHandler,
) *Provider {
	return &Provider{
		Conversation: conversation,
		Document:     document,
		Realtime:     realtime,
		Health:       health,
	}
}
