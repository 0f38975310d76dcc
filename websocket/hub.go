package websocket

import (
	"context"
	"errors"
	"log/slog"

	"educhat/backend/models"
)

// ErrHubClosed is returned once the hub loop has stopped.
var ErrHubClosed = errors.New("websocket hub is closed")

type delivery struct {
	room   string
	client *Client
	data   []byte
}

// Hub owns the set of live connections and serializes every outbound
// frame through its Run loop, so a connection sees frames in enqueue order.
type Hub struct {
	rooms      *Rooms
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery
	done       chan struct{}
	log        *slog.Logger
}

func NewHub(rooms *Rooms, log *slog.Logger) *Hub {
	return &Hub{
		rooms:      rooms,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, 256),
		done:       make(chan struct{}),
		log:        log.With(slog.String("component", "hub")),
	}
}

// Rooms exposes the registry the hub delivers through.
func (h *Hub) Rooms() *Rooms { return h.rooms }

// Run processes registrations and deliveries until ctx is cancelled. Every
// remaining connection is then closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.rooms.Join(client, client.personalRoom())
			h.log.Debug("client registered",
				slog.String("client_id", client.id),
				slog.String("user_id", client.user.ID.Hex()),
				slog.Int("clients", len(h.clients)),
			)
		case client := <-h.unregister:
			if h.remove(client) {
				h.log.Debug("client unregistered", slog.String("client_id", client.id), slog.Int("clients", len(h.clients)))
			}
		case d := <-h.broadcast:
			if d.client != nil {
				h.deliver(d.client, d.data)
				continue
			}
			for _, client := range h.rooms.Members(d.room) {
				h.deliver(client, d.data)
			}
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for client := range h.clients {
		h.remove(client)
	}
	h.log.Info("hub stopped")
}

func (h *Hub) remove(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	h.rooms.LeaveAll(client)
	close(client.send)
	return true
}

func (h *Hub) deliver(client *Client, data []byte) {
	if _, ok := h.clients[client]; !ok {
		// joined after it was dropped
		h.rooms.LeaveAll(client)
		return
	}
	select {
	case client.send <- data:
	default:
		h.remove(client)
		h.log.Warn("client send buffer full, dropping connection", slog.String("client_id", client.id))
	}
}

// Register admits a connection and joins it to its personal room.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToRoom queues event for every connection joined to room.
// A room with no members is not an error.
func (h *Hub) BroadcastToRoom(room, event string, payload any) error {
	data, err := models.NewEvent(event, payload)
	if err != nil {
		return err
	}
	return h.enqueue(delivery{room: room, data: data})
}

func (h *Hub) sendTo(client *Client, event string, payload any) error {
	data, err := models.NewEvent(event, payload)
	if err != nil {
		return err
	}
	return h.enqueue(delivery{client: client, data: data})
}

func (h *Hub) enqueue(d delivery) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- d:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}
