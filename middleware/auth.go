package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"educhat/backend/models"
	"educhat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenCookie is the cookie that carries the session token for browser clients.
const TokenCookie = "token"

// UserFinder is the lookup the gate needs to resolve a token to a user.
type UserFinder interface {
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Authenticator resolves bearer tokens to users. It backs both the REST
// middleware and the websocket handshake.
type Authenticator struct {
	secret string
	users  UserFinder
	log    *slog.Logger
}

func NewAuthenticator(secret string, users UserFinder, log *slog.Logger) *Authenticator {
	return &Authenticator{secret: secret, users: users, log: log.With(slog.String("component", "auth"))}
}

// Authenticate verifies token and loads its user. A valid token for a
// deleted user is rejected.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, utils.NewError(utils.ErrUnauthenticated, "Not authorized, no token")
	}
	userID, err := utils.ParseJWT(token, a.secret)
	if err != nil {
		return nil, err
	}
	user, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.NewError(utils.ErrUnauthenticated, "Not authorized, user not found")
		}
		return nil, fmt.Errorf("load token user: %w", err)
	}
	return user, nil
}

// TokenFromRequest reads the token from the Authorization header, falling
// back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid token and stores the user in the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Authenticate(r.Context(), TokenFromRequest(r))
		if err != nil {
			if utils.StatusCode(err) == http.StatusInternalServerError {
				a.log.Error("authentication failed", slog.Any("error", err))
			}
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(utils.WithUser(r.Context(), user)))
	})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(utils.StatusCode(err))
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Message: utils.PublicMessage(err)})
}
