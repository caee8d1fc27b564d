// Package auth is the single source of truth for whether a user is signed
// in and as whom. It owns the persisted credential and notifies subscribers
// on every session change.
package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prolink-dev/prolink/internal/client/api"
	"github.com/prolink-dev/prolink/internal/client/session"
)

// Manager holds the current session and gates everything that requires an
// authenticated user.
type Manager struct {
	api     *api.Client
	profile string
	server  string
	logger  zerolog.Logger

	mu      sync.RWMutex
	current *session.Session
	subs    map[int]func(*session.Session)
	nextSub int
}

func NewManager(client *api.Client, profile, serverURL string, logger zerolog.Logger) *Manager {
	return &Manager{
		api:     client,
		profile: profile,
		server:  serverURL,
		logger:  logger.With().Str("component", "auth").Logger(),
		subs:    make(map[int]func(*session.Session)),
	}
}

// Current returns the active session, or nil when signed out.
func (m *Manager) Current() *session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange subscribes to session transitions and returns an unsubscribe
// function. The callback fires with nil when the session ends.
func (m *Manager) OnChange(fn func(*session.Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Login exchanges credentials for a session. On failure the existing
// session, if any, is left untouched and the *api.AuthError comes back as a
// value.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (*session.Session, error) {
	result, err := m.api.Login(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}

	sess := session.Session{
		ServerURL: m.server,
		UserID:    result.User.ID,
		Name:      result.User.Name,
		Headline:  result.User.Headline,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}
	if err := session.Save(m.profile, sess); err != nil {
		m.logger.Warn().Err(err).Msg("could not persist session")
	}
	m.api.SetToken(sess.Token)
	m.set(&sess)
	m.logger.Info().Str("user_id", sess.UserID).Msg("logged in")
	return &sess, nil
}

// Restore loads a persisted session at startup. Expiry is checked locally;
// an expired credential is treated as absent and cleared by the session
// store, never surfaced.
func (m *Manager) Restore() *session.Session {
	sess := session.Load(m.profile)
	if sess == nil {
		return nil
	}
	m.api.SetToken(sess.Token)
	m.set(sess)
	m.logger.Info().Str("user_id", sess.UserID).Msg("session restored")
	return sess
}

// Logout clears local state unconditionally; the remote invalidation call
// is best-effort and never blocks the local sign-out.
func (m *Manager) Logout(ctx context.Context) {
	session.Clear(m.profile)
	m.api.SetToken("")
	m.set(nil)

	if err := m.api.Logout(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("remote logout failed")
	}
	m.logger.Info().Msg("logged out")
}

func (m *Manager) set(sess *session.Session) {
	m.mu.Lock()
	m.current = sess
	subs := make([]func(*session.Session), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(sess)
	}
}
