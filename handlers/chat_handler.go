package handlers

import (
	"log/slog"
	"net/http"

	"educhat/backend/models"
	"educhat/backend/services"

	"github.com/gorilla/mux"
)

type ChatHandler struct {
	chats *services.ChatService
	log   *slog.Logger
}

func NewChatHandler(chats *services.ChatService, log *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, log: log.With(slog.String("component", "chat_handler"))}
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	chats, err := h.chats.ListChats(r.Context(), user)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chat, err := h.chats.CreateChat(r.Context(), user, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

// CreateLecturerChat answers 201 when a chat was created and 200 when the
// existing direct chat is returned.
func (h *ChatHandler) CreateLecturerChat(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.LecturerChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chat, created, err := h.chats.CreateLecturerChat(r.Context(), user, req.LecturerID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, chat)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	chat, err := h.chats.GetChat(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.chats.DeleteChat(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
}

// AcceptInvite handles GET /api/chats/accept/{chatId}
func (h *ChatHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.chats.AcceptInvite(r.Context(), user, mux.Vars(r)["chatId"]); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ChatHandler) ExportChat(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	export, err := h.chats.ExportChat(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}
