package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"educhat/backend/middleware"
	"educhat/backend/models"
	"educhat/backend/services"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	users        *services.UserService
	cookieSecure bool
	log          *slog.Logger
}

func NewUserHandler(users *services.UserService, cookieSecure bool, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, cookieSecure: cookieSecure, log: log.With(slog.String("component", "user_handler"))}
}

func (h *UserHandler) setTokenCookie(w http.ResponseWriter, token string) {
	ttl := h.users.TokenTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// SendCode handles GET /api/users/send-code?email=
func (h *UserHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	if err := h.users.SendCode(r.Context(), r.URL.Query().Get("email")); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

// Register handles POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.users.Register(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	h.setTokenCookie(w, resp.Token)
	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.users.Login(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	h.setTokenCookie(w, resp.Token)
	writeJSON(w, http.StatusOK, resp)
}

// Logout clears the session cookie. Bearer tokens stay valid until they expire.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SearchLecturers handles GET /api/users/search/lecturers?query=
func (h *UserHandler) SearchLecturers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.SearchLecturers(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
