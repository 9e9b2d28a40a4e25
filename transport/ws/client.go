package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"educhat/contract"
	"educhat/domain/chat"
	"educhat/domain/event"
	"educhat/runtime"
	"educhat/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Client wraps one websocket connection: a buffered send queue drained by
// the write pump and a read pump dispatching client events. It is the
// hub-side EventSink for this connection.
type Client struct {
	connID string
	userID string // empty when unauthenticated
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once

	hub      *runtime.Hub
	resolver *runtime.Resolver
	chats    services.IChatService
	groups   services.IGroupService
	log      *slog.Logger
}

var _ contract.EventSink = (*Client)(nil)

// Send enqueues a payload without blocking. False means the buffer is full
// and the hub should drop this connection.
func (c *Client) Send(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close is idempotent; the write pump exits once the queue closes.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump consumes client events until the transport closes. It runs in
// the connection's own goroutine, so handlers may block on persistence or
// collaborator calls without stalling the hub loop.
func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c.connID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Unexpected close", "conn_id", c.connID, "error", err)
			}
			return
		}

		var envelope ClientEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			c.log.Warn("Malformed envelope", "conn_id", c.connID, "error", err)
			continue
		}
		c.dispatch(envelope)
	}
}

// dispatch routes one decoded envelope. Unauthenticated connections are
// inert: every event requiring an identity is ignored.
func (c *Client) dispatch(envelope ClientEnvelope) {
	if c.userID == "" {
		c.log.Debug("Ignoring event from unauthenticated connection", "event", envelope.Event)
		return
	}
	ctx := context.Background()

	switch envelope.Event {
	case EventJoinRoom:
		payload, err := decodePayload[JoinRoomPayload](envelope.Data)
		if err != nil {
			c.log.Warn("Invalid join_room payload", "error", err)
			return
		}
		c.hub.JoinRoom(c.connID, chat.RoomID(payload.Room))

	case EventJoinGroup:
		payload, err := decodePayload[JoinGroupPayload](envelope.Data)
		if err != nil {
			c.log.Warn("Invalid join_group payload", "error", err)
			return
		}
		if c.resolver.JoinGroup(ctx, c.userID, payload.GroupID) {
			c.hub.JoinRoom(c.connID, chat.GroupRoom(payload.GroupID))
		}

	case EventLeaveGroup:
		payload, err := decodePayload[LeaveGroupPayload](envelope.Data)
		if err != nil {
			c.log.Warn("Invalid leave_group payload", "error", err)
			return
		}
		c.hub.LeaveRoom(c.connID, chat.GroupRoom(payload.GroupID))

	case EventSendMessage:
		payload, err := decodePayload[SendMessagePayload](envelope.Data)
		if err != nil {
			c.log.Warn("Invalid send_message payload", "error", err)
			return
		}
		err = c.chats.SendDirect(ctx, services.SendDirectCommand{
			ConnID:     c.connID,
			SenderID:   c.userID,
			Room:       payload.Room,
			Body:       payload.Message,
			Language:   payload.Language,
			BotEnabled: payload.BotEnabled,
		})
		if err != nil {
			c.log.Error("Direct send failed", "room", payload.Room, "error", err)
		}

	case EventSendGroupMessage:
		payload, err := decodePayload[SendGroupMessagePayload](envelope.Data)
		if err != nil {
			c.log.Warn("Invalid send_group_message payload", "error", err)
			return
		}
		if _, err := c.groups.SendMessage(ctx, c.userID, payload.GroupID, payload.Content); err != nil {
			c.hub.EmitConn(c.connID, event.GroupMessageError{
				GroupID: payload.GroupID,
				Error:   err.Error(),
			})
		}

	case EventMarkRead:
		payload, err := decodePayload[MarkReadPayload](envelope.Data)
		if err != nil {
			c.log.Warn("Invalid mark_group_messages_read payload", "error", err)
			return
		}
		if err := c.groups.MarkRead(ctx, c.connID, c.userID, payload.GroupID); err != nil {
			c.log.Warn("Mark read failed", "group_id", payload.GroupID, "error", err)
		}

	case EventGetOnlineUsers:
		c.hub.EmitConn(c.connID, event.OnlineUsers(c.hub.OnlineUsers()))

	default:
		c.log.Warn("Unknown event", "event", envelope.Event)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
