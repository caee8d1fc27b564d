package convo

import "time"

// Participant identifies one member of a conversation.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Conversation is one messaging thread's summary row.
type Conversation struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants,omitempty"`
	LastMessage  string        `json:"last_message,omitempty"`
	Unread       int           `json:"unread_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Message is one unit of content within a conversation. Pending and Failed
// are client-only flags for optimistic sends; they never go over the wire.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	ReadBy         []string  `json:"read_by,omitempty"`

	Pending bool `json:"-"`
	Failed  bool `json:"-"`
}

func (m *Message) readBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
