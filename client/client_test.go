package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"educhat/backend/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeServer serves the REST routes the client uses plus a socket that
// broadcasts every stored message back to each connection.
type fakeServer struct {
	t      *testing.T
	chatID primitive.ObjectID
	token  string

	mu       sync.Mutex
	messages []models.MessageView
	conns    []*websocket.Conn
	joined   chan string
	failSend bool
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	f := &fakeServer{t: t, chatID: primitive.NewObjectID(), token: "tok", joined: make(chan string, 4)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/login", f.login)
	mux.HandleFunc("/api/chats/", f.chats)
	mux.HandleFunc("/ws", f.ws)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		f.mu.Lock()
		for _, c := range f.conns {
			c.Close()
		}
		f.mu.Unlock()
		srv.Close()
	})
	return f, srv
}

func (f *fakeServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeServer) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *fakeServer) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Password != "password123" {
		f.writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Message: "Invalid email or password"})
		return
	}
	f.writeJSON(w, http.StatusOK, models.AuthResponse{
		User:  &models.User{ID: alice.ID, Name: alice.Name, Email: req.Email, Role: alice.Role},
		Token: f.token,
	})
}

func (f *fakeServer) chats(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		f.writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Message: "Not authorized, no token"})
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/messages") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		f.mu.Lock()
		msgs := append([]models.MessageView(nil), f.messages...)
		f.mu.Unlock()
		f.writeJSON(w, http.StatusOK, models.MessagePage{
			Messages:   msgs,
			Pagination: models.NewPagination(1, 50, int64(len(msgs))),
		})
	case http.MethodPost:
		if f.failSend {
			f.writeJSON(w, http.StatusForbidden, models.ErrorResponse{Message: "Not authorized to send messages in this chat"})
			return
		}
		var req models.SendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		msg := models.MessageView{
			ID:        primitive.NewObjectID(),
			Sender:    alice,
			ChatID:    f.chatID,
			Content:   req.Content,
			CreatedAt: time.Now(),
		}
		f.mu.Lock()
		f.messages = append(f.messages, msg)
		conns := append([]*websocket.Conn(nil), f.conns...)
		f.mu.Unlock()
		// echo first so the client sees the broadcast before the REST answer
		frame, _ := models.NewEvent(models.EventNewMessage, msg)
		for _, c := range conns {
			_ = c.WriteMessage(websocket.TextMessage, frame)
		}
		f.writeJSON(w, http.StatusCreated, msg)
	}
}

func (f *fakeServer) ws(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		f.writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Message: "Not authorized, no token"})
		return
	}
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	go func() {
		for {
			var ev models.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if ev.Event == models.EventJoinChat {
				f.joined <- models.ChatIDFromData(ev.Data)
			}
		}
	}()
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestAPIClientLoginStoresToken(t *testing.T) {
	_, srv := newFakeServer(t)
	api := NewAPIClient(srv.URL+"/", nil)

	resp, err := api.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "tok", api.Token())
}

func TestAPIClientReturnsAPIError(t *testing.T) {
	f, srv := newFakeServer(t)
	api := NewAPIClient(srv.URL, nil)

	_, err := api.Login(context.Background(), "alice@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid email or password", apiErr.Message)

	_, err = api.Messages(context.Background(), f.chatID.Hex(), 1, 0)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not authorized, no token", apiErr.Message)
}

func TestDialRejectedHandshake(t *testing.T) {
	_, srv := newFakeServer(t)

	_, err := Dial(context.Background(), wsURL(srv), "bad")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestSocketCloseStopsUndrainedReader(t *testing.T) {
	f, srv := newFakeServer(t)

	sock, err := Dial(context.Background(), wsURL(srv), f.token)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.conns) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// overfill the events buffer while nobody reads it
	frame, err := models.NewEvent(models.EventNewMessage, models.MessageView{ChatID: f.chatID, Content: "x"})
	require.NoError(t, err)
	f.mu.Lock()
	server := f.conns[0]
	f.mu.Unlock()
	for i := 0; i < cap(sock.events)+8; i++ {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, frame))
	}
	require.Eventually(t, func() bool { return len(sock.events) == cap(sock.events) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sock.Close())

	errCh := make(chan error, 1)
	go func() { errCh <- sock.Err() }()
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read loop still blocked after Close")
	}
}

func openSession(t *testing.T, f *fakeServer, srv *httptest.Server) (*Session, context.CancelFunc) {
	t.Helper()
	api := NewAPIClient(srv.URL, nil)
	api.SetToken(f.token)

	sock, err := Dial(context.Background(), wsURL(srv), f.token)
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })

	s := NewSession(api, sock, alice, NewTimeline(f.chatID))
	require.NoError(t, s.Open(context.Background()))

	select {
	case id := <-f.joined:
		assert.Equal(t, f.chatID.Hex(), id)
	case <-time.After(2 * time.Second):
		t.Fatal("join_chat not received")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)
	return s, cancel
}

func TestSessionSendRendersOnce(t *testing.T) {
	f, srv := newFakeServer(t)
	s, _ := openSession(t, f, srv)

	msg, err := s.Send(context.Background(), "hi all")
	require.NoError(t, err)

	// the echo may land before or after Confirm; either way one entry remains
	require.Eventually(t, func() bool {
		entries := s.Timeline().Entries()
		return len(entries) == 1 && entries[0].State == Confirmed
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	entries := s.Timeline().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, msg.ID, entries[0].Message.ID)
}

func TestSessionSendFailureRollsBack(t *testing.T) {
	f, srv := newFakeServer(t)
	f.failSend = true
	s, _ := openSession(t, f, srv)

	_, err := s.Send(context.Background(), "nope")
	require.Error(t, err)
	assert.Empty(t, s.Timeline().Entries())

	select {
	case reported := <-s.Errors():
		assert.Contains(t, reported.Error(), "Not authorized to send messages in this chat")
	default:
		t.Fatal("failure not reported")
	}
}

func TestSessionOpenLoadsHistory(t *testing.T) {
	f, srv := newFakeServer(t)
	f.messages = []models.MessageView{{ID: primitive.NewObjectID(), ChatID: f.chatID, Content: "before", Sender: alice}}

	s, _ := openSession(t, f, srv)

	assert.Equal(t, []string{"before"}, contents(s.Timeline().Entries()))
}
