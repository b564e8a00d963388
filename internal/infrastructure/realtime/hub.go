// Package realtime runs the websocket rooms that conversation events are fanned out to.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	domain "jan-server/services/docchat-api/internal/domain/realtime"
	"jan-server/services/docchat-api/internal/infrastructure/metrics"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomPayload is the data of joinConversation, leaveConversation, joined and left.
type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

// SendMessagePayload is the data of sendMessage.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// MessageSender answers a sendMessage event. The resulting messages reach the room
// through Publish, so only the error matters to the hub.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, content string) error
}

// Options tunes the per-connection behaviour.
type Options struct {
	SendBuffer    int
	PingInterval  time.Duration
	MaxFrameBytes int64
	CheckOrigin   func(r *http.Request) bool
}

// Hub tracks connected clients and the conversation rooms they joined.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	closed  bool

	relay    Relay
	upgrader websocket.Upgrader
	opts     Options
	wg       sync.WaitGroup
	log      zerolog.Logger
}

var _ domain.Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(opts Options, log zerolog.Logger) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 64 * 1024
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: log.With().Str("component", "realtime-hub").Logger(),
	}
}

// UseRelay fans published events out through relay so that other replicas deliver them too.
func (h *Hub) UseRelay(relay Relay) {
	h.relay = relay
}

// Publish implements realtime.Broadcaster. Only clients joined at this moment receive the event.
func (h *Hub) Publish(ctx context.Context, conversationID string, event string, payload any) error {
	frame, err := encode(event, payload)
	if err != nil {
		return err
	}
	h.deliver(conversationID, frame)
	if h.relay != nil {
		if err := h.relay.Publish(ctx, conversationID, frame); err != nil {
			return err
		}
	}
	return nil
}

// Run blocks until ctx ends, consuming relayed events when a relay is configured,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	var err error
	if h.relay != nil {
		err = h.relay.Subscribe(ctx, h.deliver)
	} else {
		<-ctx.Done()
	}
	h.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Serve upgrades the request and runs the connection until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sender MessageSender) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h, conn, sender)
	if !h.register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	client.readPump(context.WithoutCancel(r.Context()))
}

// RoomSize returns how many clients are joined to the conversation.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(conversationID string, frame []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[conversationID]))
	for c := range h.rooms[conversationID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.enqueue(frame) {
			metrics.WSDroppedFrames.Inc()
			h.log.Warn().Str("conversation_id", conversationID).Str("client_id", c.id).Msg("send buffer full, dropping frame")
		}
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WSConnections.Inc()
	h.log.Debug().Str("client_id", c.id).Msg("client connected")
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.removeFromRoomLocked(room, c)
	}
	h.mu.Unlock()

	metrics.WSConnections.Dec()
	h.log.Debug().Str("client_id", c.id).Msg("client disconnected")
}

func (h *Hub) join(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[conversationID] = members
		metrics.WSRooms.Inc()
	}
	members[c] = struct{}{}
	c.rooms[conversationID] = struct{}{}
}

func (h *Hub) leave(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(conversationID, c)
	delete(c.rooms, conversationID)
}

func (h *Hub) removeFromRoomLocked(conversationID string, c *Client) {
	members, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, conversationID)
		metrics.WSRooms.Dec()
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.wg.Wait()
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// clientMessage returns the error text shown to a websocket client.
func clientMessage(err error) string {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) && strings.TrimSpace(platformErr.Message) != "" {
		return platformErr.Message
	}
	return "failed to process message"
}
