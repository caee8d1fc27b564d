// Package transport owns the single real-time connection to the server:
// connect/disconnect lifecycle, reconnection, and raw event pub/sub. No
// other component touches the socket directly.
package transport

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Session is the client's one real-time connection, keyed by the
// authenticated user. At most one live connection exists at a time:
// Connect is idempotent for the same user and tears down the previous
// handle for a different one.
type Session struct {
	url        string
	dialer     Dialer
	backoffMin time.Duration
	backoffMax time.Duration
	logger     zerolog.Logger

	mu       sync.Mutex
	state    State
	userID   string
	conn     Conn
	gen      uint64
	retries  int
	handlers map[string]map[int]Handler
	nextSub  int
}

// NewSession creates a transport session for the given websocket URL. A nil
// dialer means the production websocket dialer.
func NewSession(socketURL string, dialer Dialer, backoffMin, backoffMax time.Duration, logger zerolog.Logger) *Session {
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	return &Session{
		url:        socketURL,
		dialer:     dialer,
		backoffMin: backoffMin,
		backoffMax: backoffMax,
		logger:     logger.With().Str("component", "transport").Logger(),
		handlers:   make(map[string]map[int]Handler),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the user the session is connected (or connecting) for.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Connect starts a connection attempt for a user. Calling it while already
// connected or connecting for the same user reuses the existing handle; a
// different user tears the previous handle down first. The attempt itself is
// asynchronous: failures surface as a disconnect event, not as a return
// value.
func (s *Session) Connect(userID string) {
	s.mu.Lock()
	if s.userID == userID && s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	wasUp := s.state != StateDisconnected
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.userID = userID
	s.state = StateConnecting
	s.retries = 0
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if wasUp {
		// Consumers clear per-connection state (typing, presence) on this.
		s.publish(Event{Name: EventDisconnected})
	}
	s.logger.Info().Str("user_id", userID).Msg("connecting")
	go s.dial(gen, userID)
}

// Disconnect tears the connection down and stops any reconnection. It is
// safe to call repeatedly; Connect may be called again afterwards.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.userID == "" && s.conn == nil && s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.userID = ""
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	wasDown := s.state == StateDisconnected
	s.state = StateDisconnected
	s.retries = 0
	s.mu.Unlock()

	if !wasDown {
		s.publish(Event{Name: EventDisconnected})
	}
	s.logger.Info().Msg("disconnected")
}

// On subscribes a handler to an event name and returns its unsubscribe
// function.
func (s *Session) On(event string, handler Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers[event] == nil {
		s.handlers[event] = make(map[int]Handler)
	}
	s.nextSub++
	id := s.nextSub
	s.handlers[event][id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers[event], id)
	}
}

// Emit sends a named event to the server.
func (s *Session) Emit(event string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return &TransportError{Op: "emit", Err: ErrNotConnected}
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &TransportError{Op: "emit", Err: err}
		}
		raw = data
	}
	data, err := json.Marshal(envelope{Type: event, Payload: raw})
	if err != nil {
		return &TransportError{Op: "emit", Err: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Op: "emit", Err: err}
	}
	return nil
}

func (s *Session) dial(gen uint64, userID string) {
	conn, err := s.dialer.Dial(s.url + "?user_id=" + url.QueryEscape(userID))

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.state = StateDisconnected
		delay := s.nextBackoffLocked()
		s.mu.Unlock()

		s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("dial failed")
		s.publish(Event{Name: EventDisconnected})
		s.scheduleReconnect(gen, delay)
		return
	}
	s.conn = conn
	s.state = StateConnected
	s.retries = 0
	s.mu.Unlock()

	s.logger.Info().Str("user_id", userID).Msg("connected")
	s.publish(Event{Name: EventConnected})
	go s.readPump(gen, conn)
}

func (s *Session) readPump(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.dropConnection(gen, err)
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Debug().Err(err).Msg("bad frame")
			continue
		}
		s.publish(Event{Name: env.Type, Payload: env.Payload})
	}
}

// dropConnection handles a network-level drop: the handle is released, a
// disconnect event goes out, and a reconnect is scheduled while the session
// is still wanted for a user.
func (s *Session) dropConnection(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = StateDisconnected
	wanted := s.userID != ""
	var delay time.Duration
	if wanted {
		delay = s.nextBackoffLocked()
	}
	s.mu.Unlock()

	s.logger.Warn().Err(cause).Bool("reconnect", wanted).Msg("connection dropped")
	s.publish(Event{Name: EventDisconnected})
	if wanted {
		s.scheduleReconnect(gen, delay)
	}
}

func (s *Session) scheduleReconnect(gen uint64, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		if gen != s.gen || s.state != StateDisconnected || s.userID == "" {
			s.mu.Unlock()
			return
		}
		s.state = StateConnecting
		userID := s.userID
		s.mu.Unlock()
		go s.dial(gen, userID)
	})
}

// nextBackoffLocked returns the next reconnect delay, doubling up to the
// cap. Callers hold the lock.
func (s *Session) nextBackoffLocked() time.Duration {
	delay := s.backoffMin << s.retries
	if delay <= 0 || delay > s.backoffMax {
		delay = s.backoffMax
	}
	if s.retries < 16 {
		s.retries++
	}
	return delay
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	hs := make([]Handler, 0, len(s.handlers[ev.Name]))
	for _, h := range s.handlers[ev.Name] {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}
