package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	domain "jan-server/services/docchat-api/internal/domain/realtime"
)

const writeWait = 10 * time.Second

// Client is one websocket connection. rooms is guarded by the hub mutex.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	sender MessageSender
	rooms  map[string]struct{}

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup
}

func newClient(h *Hub, conn *websocket.Conn, sender MessageSender) *Client {
	return &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		sender: sender,
		rooms:  make(map[string]struct{}),
		send:   make(chan []byte, h.opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks: a full buffer drops the frame.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) emit(event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		c.hub.log.Error().Err(err).Str("event", event).Msg("encode frame failed")
		return
	}
	if !c.enqueue(frame) {
		c.hub.log.Warn().Str("client_id", c.id).Str("event", event).Msg("send buffer full, dropping frame")
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.close()
		c.inflight.Wait()
	}()

	pongWait := c.hub.opts.PingInterval * 2
	c.conn.SetReadLimit(c.hub.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("client_id", c.id).Msg("connection read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.emit(domain.EventChatError, domain.ChatError{Message: "invalid frame"})
			continue
		}
		c.handle(ctx, env)
	}
}

func (c *Client) handle(ctx context.Context, env Envelope) {
	switch env.Event {
	case domain.EventJoinConversation, domain.EventLeaveConversation:
		p := RoomPayload{ConversationID: roomID(env.Data)}
		if p.ConversationID == "" {
			c.emit(domain.EventChatError, domain.ChatError{Message: "conversationId is required"})
			return
		}
		if env.Event == domain.EventJoinConversation {
			c.hub.join(c, p.ConversationID)
			c.emit(domain.EventJoined, p)
		} else {
			c.hub.leave(c, p.ConversationID)
			c.emit(domain.EventLeft, p)
		}

	case domain.EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || strings.TrimSpace(p.ConversationID) == "" {
			c.emit(domain.EventChatError, domain.ChatError{Message: "conversationId is required"})
			return
		}
		if c.sender == nil {
			c.emit(domain.EventChatError, domain.ChatError{Message: "messaging is not available"})
			return
		}
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			if err := c.sender.SendMessage(ctx, p.ConversationID, p.Content); err != nil {
				c.hub.log.Warn().Err(err).Str("client_id", c.id).Str("conversation_id", p.ConversationID).Msg("sendMessage failed")
				c.emit(domain.EventChatError, domain.ChatError{Message: clientMessage(err)})
			}
		}()

	default:
		c.emit(domain.EventChatError, domain.ChatError{Message: "unknown event: " + env.Event})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.log.Debug().Err(err).Str("client_id", c.id).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// roomID accepts the conversation id either as a bare JSON string or as {"conversationId": ...}.
func roomID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err == nil {
		return strings.TrimSpace(p.ConversationID)
	}
	return ""
}
