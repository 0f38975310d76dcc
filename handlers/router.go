package handlers

import (
	"net/http"

	"educhat/backend/middleware"

	"github.com/gorilla/mux"
)

// Routes bundles what NewRouter mounts.
type Routes struct {
	Users    *UserHandler
	Chats    *ChatHandler
	Messages *MessageHandler
	Auth     *middleware.Authenticator
	Realtime http.Handler
}

// NewRouter mounts the REST API under /api, the realtime endpoint at /ws and /health.
func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()
	protect := func(f http.HandlerFunc) http.Handler { return rt.Auth.RequireAuth(f) }

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if rt.Realtime != nil {
		r.Handle("/ws", rt.Realtime).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("/register", rt.Users.Register).Methods(http.MethodPost)
	users.HandleFunc("/login", rt.Users.Login).Methods(http.MethodPost)
	users.HandleFunc("/logout", rt.Users.Logout).Methods(http.MethodPost)
	users.HandleFunc("/send-code", rt.Users.SendCode).Methods(http.MethodGet)
	users.Handle("/profile", protect(rt.Users.Profile)).Methods(http.MethodGet)
	users.Handle("/search/lecturers", protect(rt.Users.SearchLecturers)).Methods(http.MethodGet)
	users.Handle("", protect(rt.Users.ListUsers)).Methods(http.MethodGet)
	users.Handle("/{id}", protect(rt.Users.GetUser)).Methods(http.MethodGet)

	chats := api.PathPrefix("/chats").Subrouter()
	chats.Use(rt.Auth.RequireAuth)
	chats.HandleFunc("", rt.Chats.ListChats).Methods(http.MethodGet)
	chats.HandleFunc("", rt.Chats.CreateChat).Methods(http.MethodPost)
	// fixed segments must precede /{id}
	chats.HandleFunc("/lecturer", rt.Chats.CreateLecturerChat).Methods(http.MethodPost)
	chats.HandleFunc("/accept/{chatId}", rt.Chats.AcceptInvite).Methods(http.MethodGet)
	chats.HandleFunc("/{id}", rt.Chats.GetChat).Methods(http.MethodGet)
	chats.HandleFunc("/{id}", rt.Chats.DeleteChat).Methods(http.MethodDelete)
	chats.HandleFunc("/{id}/export", rt.Chats.ExportChat).Methods(http.MethodGet)
	chats.HandleFunc("/{id}/messages", rt.Messages.List).Methods(http.MethodGet)
	chats.HandleFunc("/{id}/messages", rt.Messages.Send).Methods(http.MethodPost)
	chats.HandleFunc("/{id}/messages/search", rt.Messages.Search).Methods(http.MethodGet)

	api.Handle("/files/{id}", protect(rt.Messages.DownloadFile)).Methods(http.MethodGet)

	return r
}
