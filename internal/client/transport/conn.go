package transport

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Emit while no connection is live.
var ErrNotConnected = errors.New("not connected")

// TransportError wraps a connection-level failure. It is surfaced to
// subscribers as a disconnect event, never thrown out of the read loop.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Conn abstracts one live socket so the session can be tested without a
// real server. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn for a URL.
type Dialer interface {
	Dial(url string) (Conn, error)
}

// WebsocketDialer is the production dialer.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
