package transport

import "encoding/json"

// Lifecycle events published by the session itself.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Server push events carried over the wire. Payload shapes are owned by the
// server and decoded by the consumer that subscribes to them.
const (
	EventNewMessage           = "newMessage"
	EventMessageRead          = "messageRead"
	EventNewNotification      = "newNotification"
	EventNotificationRead     = "notificationRead"
	EventAllNotificationsRead = "allNotificationsRead"
	EventNotificationDeleted  = "notificationDeleted"
	EventTyping               = "typing"
	EventUserOnline           = "userOnline"
	EventUserOffline          = "userOffline"
)

// Event is one named event delivered to subscribers.
type Event struct {
	Name    string
	Payload json.RawMessage
}

// Handler receives events for a subscribed name.
type Handler func(Event)

// envelope is the wire format shared with the server.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
