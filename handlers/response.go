package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"educhat/backend/models"
	"educhat/backend/utils"
)

// sendJSONError writes {"message": message} with statusCode.
func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, models.ErrorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to write response", slog.Any("error", err))
	}
}

// respondError maps err onto the error taxonomy. Server errors are logged
// and answered without their details.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := utils.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	sendJSONError(w, utils.PublicMessage(err), status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return false
	}
	return true
}

// currentUser returns the authenticated user or answers 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := utils.UserFromContext(r.Context())
	if err != nil {
		sendJSONError(w, utils.PublicMessage(err), http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// queryInt parses a positive integer query parameter, returning 0 when absent or invalid.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
