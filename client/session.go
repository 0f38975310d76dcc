package client

import (
	"context"
	"encoding/json"
	"errors"

	"educhat/backend/models"
)

// Session binds one open chat to the REST client and the socket.
type Session struct {
	api      *APIClient
	socket   *Socket
	me       models.UserSummary
	timeline *Timeline
	errs     chan error
}

func NewSession(api *APIClient, socket *Socket, me models.UserSummary, timeline *Timeline) *Session {
	return &Session{api: api, socket: socket, me: me, timeline: timeline, errs: make(chan error, 16)}
}

func (s *Session) Timeline() *Timeline { return s.timeline }

// Errors carries failures the user should see. Older errors are dropped when nobody reads.
func (s *Session) Errors() <-chan error { return s.errs }

func (s *Session) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Open joins the chat room and loads the most recent page.
func (s *Session) Open(ctx context.Context) error {
	chatID := s.timeline.ChatID().Hex()
	if err := s.socket.JoinChat(chatID); err != nil {
		return err
	}
	page, err := s.api.Messages(ctx, chatID, 1, 0)
	if err != nil {
		return err
	}
	s.timeline.Replace(page.Messages)
	return nil
}

// Send renders content at once, then confirms or rolls it back from the REST answer.
func (s *Session) Send(ctx context.Context, content string) (*models.MessageView, error) {
	tempID, _ := s.timeline.AddPending(s.me, content)
	msg, err := s.api.SendMessage(ctx, s.timeline.ChatID().Hex(), content)
	if err != nil {
		s.timeline.Fail(tempID)
		s.report(err)
		return nil, err
	}
	s.timeline.Confirm(tempID, *msg)
	return msg, nil
}

// Run merges realtime events into the timeline until the socket closes or ctx ends.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.socket.Events():
			if !ok {
				return s.socket.Err()
			}
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev models.Event) {
	switch ev.Event {
	case models.EventNewMessage:
		var msg models.MessageView
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			s.report(err)
			return
		}
		s.timeline.Receive(msg)
	case models.EventError:
		var e models.ErrorResponse
		if err := json.Unmarshal(ev.Data, &e); err != nil || e.Message == "" {
			e.Message = "realtime error"
		}
		s.report(errors.New(e.Message))
	}
}
