package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"educhat/backend/models"
	"educhat/backend/services"

	"github.com/gorilla/mux"
)

// multipart parts above this size spill to temporary files
const multipartMemory = 4 << 20

type MessageHandler struct {
	messages       *services.MessageService
	maxUploadBytes int64
	log            *slog.Logger
}

func NewMessageHandler(messages *services.MessageService, maxUploadBytes int64, log *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messages:       messages,
		maxUploadBytes: maxUploadBytes,
		log:            log.With(slog.String("component", "message_handler")),
	}
}

// Send handles POST /api/chats/{id}/messages with either a JSON body or a
// multipart form carrying content and an optional file.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var content string
	var upload *services.Upload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				sendJSONError(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			sendJSONError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		content = r.FormValue("content")
		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			sendJSONError(w, "Invalid file upload", http.StatusBadRequest)
			return
		default:
			defer file.Close()
			upload = &services.Upload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Reader:      file,
			}
		}
	} else {
		var req models.SendMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		content = req.Content
	}

	// a client that gives up must not abort a send already under way
	ctx := context.WithoutCancel(r.Context())
	msg, err := h.messages.Send(ctx, user, mux.Vars(r)["id"], content, upload)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// List handles GET /api/chats/{id}/messages?page=&limit=
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, err := h.messages.List(r.Context(), user, mux.Vars(r)["id"], queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Search handles GET /api/chats/{id}/messages/search?q=
func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.messages.Search(r.Context(), user, mux.Vars(r)["id"], r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadFile handles GET /api/files/{id}
func (h *MessageHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	rc, att, err := h.messages.OpenAttachment(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	if att.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(att.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("attachment stream interrupted", slog.String("file_id", att.FileID.Hex()), slog.Any("error", err))
	}
}
