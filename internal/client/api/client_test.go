package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, time.Second, zerolog.Nop())
}

func TestLoginSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"user":{"id":"u1","name":"Alice","headline":"Engineer"},"token":"tok-1","expires_at":"2030-01-01T00:00:00Z"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", result.User.ID)
	assert.Equal(t, "tok-1", result.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"wrong email or password"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Login(context.Background(), "alice@example.com", "nope")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, authErr.Message, "wrong email or password")
}

func TestLoginNetworkFailure(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Login(context.Background(), "a", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestFetchNotificationsSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"n1","type":"like","actor_id":"u2","created_at":"2026-01-01T00:00:00Z","read":false}]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetToken("tok-1")

	records, err := client.FetchNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "n1", records[0].ID)
	assert.False(t, records[0].Read)
}

func TestFetchNotificationsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchNotifications(context.Background())
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "notifications", fetchErr.Op)
}

func TestMarkNotificationRead(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.MarkNotificationRead(context.Background(), "n1"))
	assert.Equal(t, "/notifications/n1/read", path)
}

func TestDeleteNotification(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.DeleteNotification(context.Background(), "n1"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/notifications/n1", path)
}

func TestFetchMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/c1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"m1","conversation_id":"c1","sender_id":"u2","content":"hi","created_at":"2026-01-01T00:00:00Z"}]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	msgs, err := client.FetchMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/c1/messages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"m9","conversation_id":"c1","sender_id":"u1","content":"hello","created_at":"2026-01-01T00:00:00Z"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	msg, err := client.SendMessage(context.Background(), "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
}

func TestSendMessageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message":"try later"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SendMessage(context.Background(), "c1", "hello")
	require.Error(t, err)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "c1", sendErr.ConversationID)
}

func TestErrorTaxonomyUnwraps(t *testing.T) {
	inner := errors.New("inner")
	assert.ErrorIs(t, &FetchError{Op: "x", Err: inner}, inner)
	assert.ErrorIs(t, &SendError{ConversationID: "c", Err: inner}, inner)
	assert.ErrorIs(t, &AuthError{Reason: ErrInvalidCredentials}, ErrInvalidCredentials)
}
