// Package client talks to the chat backend over REST and the realtime socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"educhat/backend/models"
)

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// APIClient is a REST client authenticated with a bearer token.
type APIClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *APIClient) SetToken(token string) { c.token = token }
func (c *APIClient) Token() string         { return c.token }

// Login authenticates and keeps the returned token for later calls.
func (c *APIClient) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/users/login", models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

func (c *APIClient) ListChats(ctx context.Context) ([]models.ChatView, error) {
	var chats []models.ChatView
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *APIClient) CreateLecturerChat(ctx context.Context, lecturerID string) (*models.ChatView, error) {
	var chat models.ChatView
	if err := c.do(ctx, http.MethodPost, "/api/chats/lecturer", models.LecturerChatRequest{LecturerID: lecturerID}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// Messages fetches one page; zero page or limit leaves the server defaults.
func (c *APIClient) Messages(ctx context.Context, chatID string, page, limit int) (*models.MessagePage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out models.MessagePage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) SendMessage(ctx context.Context, chatID, content string) (*models.MessageView, error) {
	var msg models.MessageView
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, models.SendMessageRequest{Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *APIClient) SearchMessages(ctx context.Context, chatID, query string) (*models.SearchResult, error) {
	var out models.SearchResult
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) ExportChat(ctx context.Context, chatID string) (*models.ChatExport, error) {
	var out models.ChatExport
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/export", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
