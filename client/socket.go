package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"educhat/backend/models"

	"github.com/gorilla/websocket"
)

// Socket is a realtime connection. Inbound events are delivered on Events
// until the connection ends, after which the channel is closed.
type Socket struct {
	conn    *websocket.Conn
	events  chan models.Event
	writeMu sync.Mutex
	done    chan struct{}
	err     error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens the realtime channel at wsURL, presenting token in the handshake.
func Dial(ctx context.Context, wsURL, token string) (*Socket, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			var e models.ErrorResponse
			if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Message != "" {
				return nil, &APIError{StatusCode: resp.StatusCode, Message: e.Message}
			}
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, err
	}

	s := &Socket{
		conn:   conn,
		events: make(chan models.Event, 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Socket) readLoop() {
	defer close(s.events)
	defer close(s.done)
	for {
		var ev models.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			s.err = err
			return
		}
		select {
		case s.events <- ev:
		case <-s.closed:
			s.err = net.ErrClosed
			return
		}
	}
}

func (s *Socket) Events() <-chan models.Event { return s.events }

// Err reports why the read loop ended. Valid once Events is closed.
func (s *Socket) Err() error {
	<-s.done
	return s.err
}

func (s *Socket) emit(event string, data any) error {
	frame, err := models.NewEvent(event, data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Socket) JoinChat(chatID string) error  { return s.emit(models.EventJoinChat, chatID) }
func (s *Socket) LeaveChat(chatID string) error { return s.emit(models.EventLeaveChat, chatID) }

// SendMessage sends over the socket instead of REST. The server answers with
// the broadcast echo, or an error event.
func (s *Socket) SendMessage(chatID, content string) error {
	return s.emit(models.EventSendMessage, models.SendMessageRequest{ChatID: chatID, Content: content})
}

// Close ends the connection. The read loop stops even if nobody drains Events.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
