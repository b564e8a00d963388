// Package realtime defines the publishing side of the conversation rooms.
package realtime

import "context"

// Server to client events.
const (
	EventNewMessage = "newMessage"
	EventChatError  = "chatError"
	EventJoined     = "joined"
	EventLeft       = "left"
)

// Client to server events.
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
)

// Broadcaster fans an event out to every client currently joined to a conversation room.
// Delivery is at-most-once: clients that are not joined when Publish runs never see the event.
type Broadcaster interface {
	Publish(ctx context.Context, conversationID string, event string, payload any) error
}

// ChatError is the payload of EventChatError.
type ChatError struct {
	Message string `json:"message"`
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

// Publish implements Broadcaster.
func (NopBroadcaster) Publish(context.Context, string, string, any) error { return nil }
