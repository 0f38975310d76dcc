package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"educhat/backend/models"
	"educhat/backend/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 16 * 1024

	sendBufferSize = 256

	eventTimeout = 10 * time.Second
)

// Client is one authenticated realtime connection.
type Client struct {
	id      string
	user    *models.User
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	handler *Handler
	log     *slog.Logger
}

func newClient(hub *Hub, handler *Handler, conn *websocket.Conn, user *models.User) *Client {
	id := uuid.NewString()
	return &Client{
		id:      id,
		user:    user,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		hub:     hub,
		handler: handler,
		log:     hub.log.With(slog.String("client_id", id), slog.String("user_id", user.ID.Hex())),
	}
}

func (c *Client) personalRoom() string {
	return c.user.ID.Hex()
}

// readPump handles inbound events one at a time until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("unexpected close", slog.Any("error", err))
			}
			return
		}

		var ev models.Event
		if err := json.Unmarshal(p, &ev); err != nil {
			c.replyError("Invalid event format")
			continue
		}
		c.handle(ctx, ev)
	}
}

func (c *Client) handle(ctx context.Context, ev models.Event) {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	switch ev.Event {
	case models.EventJoinChat:
		chatID := models.ChatIDFromData(ev.Data)
		if chatID == "" {
			c.replyError("Chat ID is required")
			return
		}
		if err := c.handler.chats.AuthorizeJoin(ctx, c.user.ID, chatID); err != nil {
			c.replyErr("join refused", err)
			return
		}
		c.hub.rooms.Join(c, chatID)
		c.log.Debug("joined chat", slog.String("chat_id", chatID))

	case models.EventLeaveChat:
		if chatID := models.ChatIDFromData(ev.Data); chatID != "" && chatID != c.personalRoom() {
			c.hub.rooms.Leave(c, chatID)
		}

	case models.EventSendMessage:
		var req models.SendMessageRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			c.replyError("Invalid message format")
			return
		}
		// the message service broadcasts the stored message, echo included
		if _, err := c.handler.messages.Send(ctx, c.user, req.ChatID, req.Content, nil); err != nil {
			c.replyErr("send failed", err)
		}

	default:
		c.replyError("Unknown event " + ev.Event)
	}
}

func (c *Client) replyErr(msg string, err error) {
	if utils.StatusCode(err) >= 500 {
		c.log.Error(msg, slog.Any("error", err))
	}
	c.replyError(utils.PublicMessage(err))
}

func (c *Client) replyError(message string) {
	if err := c.hub.sendTo(c, models.EventError, map[string]string{"message": message}); err != nil {
		c.log.Debug("error reply dropped", slog.Any("error", err))
	}
}

// writePump forwards hub frames to the peer and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
