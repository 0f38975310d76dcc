package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"educhat/backend/middleware"
	"educhat/backend/models"
	"educhat/backend/services"
	"educhat/backend/utils"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Authenticator resolves the handshake token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// JoinAuthorizer decides whether a user may join a chat room.
type JoinAuthorizer interface {
	AuthorizeJoin(ctx context.Context, userID primitive.ObjectID, chatID string) error
}

// MessageSender persists and broadcasts messages sent over the socket.
type MessageSender interface {
	Send(ctx context.Context, sender *models.User, chatID, content string, upload *services.Upload) (*models.MessageView, error)
}

// Handler upgrades authenticated requests to realtime connections.
type Handler struct {
	hub      *Hub
	auth     Authenticator
	chats    JoinAuthorizer
	messages MessageSender
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHandler(hub *Hub, auth Authenticator, chats JoinAuthorizer, messages MessageSender, allowedOrigins []string, log *slog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		auth:     auth,
		chats:    chats,
		messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.With(slog.String("component", "ws")),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func handshakeToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return middleware.TokenFromRequest(r)
}

// ServeHTTP verifies the handshake credential before upgrading; a failed
// check never reaches the upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Authenticate(r.Context(), handshakeToken(r))
	if err != nil {
		if utils.StatusCode(err) >= 500 {
			h.log.Error("handshake authentication failed", slog.Any("error", err))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(utils.StatusCode(err))
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Message: utils.PublicMessage(err)})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade to websocket", slog.Any("error", err))
		return
	}

	client := newClient(h.hub, h, conn, user)
	if err := h.hub.Register(client); err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	h.log.Info("client connected", slog.String("client_id", client.id), slog.String("user_id", user.ID.Hex()))

	go client.writePump()
	client.readPump(r.Context())
}
