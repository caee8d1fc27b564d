// Package api is the REST client for the platform backend. It owns no wire
// format of its own; every call returns the server payload decoded into the
// store types, or an error from the client taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prolink-dev/prolink/internal/client/convo"
	"github.com/prolink-dev/prolink/internal/client/notify"
)

// Client talks to the platform REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetToken sets the bearer token used on subsequent requests. An empty
// token clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// User is the identity snapshot returned by login and profile calls.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Headline string `json:"headline,omitempty"`
}

// LoginResult carries the credential issued by the server.
type LoginResult struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Login exchanges an identifier/secret pair for a credential. Failures come
// back as *AuthError values, never panics or raw transport errors.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	body := map[string]string{"email": identifier, "password": secret}
	resp, err := c.post(ctx, "/auth/login", body)
	if err != nil {
		return nil, &AuthError{Reason: ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Reason: ErrInvalidCredentials, Message: readErrorMessage(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Reason: ErrNetwork, Message: readErrorMessage(resp)}
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &AuthError{Reason: ErrNetwork, Message: err.Error()}
	}
	return &result, nil
}

// Logout tells the server to invalidate the credential. Callers clear local
// state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.post(ctx, "/auth/logout", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// FetchProfile returns the signed-in user's profile.
func (c *Client) FetchProfile(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "/users/me", &user); err != nil {
		return nil, &FetchError{Op: "profile", Err: err}
	}
	return &user, nil
}

// FetchNotifications returns the server's authoritative notification list,
// newest first.
func (c *Client) FetchNotifications(ctx context.Context) ([]notify.Notification, error) {
	var records []notify.Notification
	if err := c.getJSON(ctx, "/notifications", &records); err != nil {
		return nil, &FetchError{Op: "notifications", Err: err}
	}
	return records, nil
}

// MarkNotificationRead flips one notification's read flag on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	resp, err := c.post(ctx, "/notifications/"+id+"/read", nil)
	if err != nil {
		return &FetchError{Op: "mark read", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &FetchError{Op: "mark read", Err: fmt.Errorf("status %d: %s", resp.StatusCode, readErrorMessage(resp))}
	}
	return nil
}

// MarkAllNotificationsRead flips every notification's read flag on the server.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	resp, err := c.post(ctx, "/notifications/read-all", nil)
	if err != nil {
		return &FetchError{Op: "mark all read", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &FetchError{Op: "mark all read", Err: fmt.Errorf("status %d: %s", resp.StatusCode, readErrorMessage(resp))}
	}
	return nil
}

// DeleteNotification removes one notification on the server.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/notifications/"+id, nil)
	if err != nil {
		return &FetchError{Op: "delete notification", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: "delete notification", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &FetchError{Op: "delete notification", Err: fmt.Errorf("status %d: %s", resp.StatusCode, readErrorMessage(resp))}
	}
	return nil
}

// FetchConversations returns the user's conversation list.
func (c *Client) FetchConversations(ctx context.Context) ([]convo.Conversation, error) {
	var conversations []convo.Conversation
	if err := c.getJSON(ctx, "/conversations", &conversations); err != nil {
		return nil, &FetchError{Op: "conversations", Err: err}
	}
	return conversations, nil
}

// FetchMessages returns the full message log of one conversation, oldest
// first.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]convo.Message, error) {
	var messages []convo.Message
	if err := c.getJSON(ctx, "/conversations/"+conversationID+"/messages", &messages); err != nil {
		return nil, &FetchError{Op: "messages", Err: err}
	}
	return messages, nil
}

// SendMessage posts a message and returns the server's confirmed record.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (convo.Message, error) {
	body := map[string]string{"content": content}
	resp, err := c.post(ctx, "/conversations/"+conversationID+"/messages", body)
	if err != nil {
		return convo.Message{}, &SendError{ConversationID: conversationID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return convo.Message{}, &SendError{
			ConversationID: conversationID,
			Err:            fmt.Errorf("status %d: %s", resp.StatusCode, readErrorMessage(resp)),
		}
	}

	var msg convo.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return convo.Message{}, &SendError{ConversationID: conversationID, Err: err}
	}
	return msg, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
	return req, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, reader)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, readErrorMessage(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readErrorMessage(resp *http.Response) string {
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return resp.Status
	}
	return body.Message
}
