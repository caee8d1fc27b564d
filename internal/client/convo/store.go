// Package convo keeps the conversation list and the active message log in
// sync with the server. Only the selected conversation's log is held in
// memory; switching selection discards it and fetches the new one fresh.
package convo

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store holds the conversation list, the selected conversation's message
// log, and transient typing state. Every mutation takes the store lock, so
// whichever update arrives later wins.
type Store struct {
	mu            sync.RWMutex
	conversations []Conversation
	selected      string
	epoch         uint64
	log           []Message
	typing        map[string]map[string]string // conversationID -> userID -> name
	logger        zerolog.Logger
}

func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		typing: make(map[string]map[string]string),
		logger: logger,
	}
}

// SetConversations replaces the conversation list with the server's list.
func (s *Store) SetConversations(list []Conversation) {
	fresh := make([]Conversation, len(list))
	copy(fresh, list)

	s.mu.Lock()
	s.conversations = fresh
	s.mu.Unlock()
}

// Conversations returns a copy of the current list.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Select makes a conversation current, discards the previous log, and
// returns an epoch token. A fetch result is only applied while its epoch is
// still current, so a late response for an old selection is dropped.
func (s *Store) Select(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = id
	s.epoch++
	s.log = nil
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].Unread = 0
		}
	}
	return s.epoch
}

// Deselect clears the current selection and the active log.
func (s *Store) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.epoch++
	s.log = nil
}

// Selected returns the id of the current conversation, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// ApplyMessages installs a fetched message log if the epoch is still
// current. Returns false for a stale response.
func (s *Store) ApplyMessages(epoch uint64, msgs []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.logger.Debug().Uint64("epoch", epoch).Msg("stale message fetch dropped")
		return false
	}
	s.log = make([]Message, len(msgs))
	copy(s.log, msgs)
	return true
}

// ApplyIncoming folds a pushed message into state. The conversation summary
// is always updated and moved to the front; the message is appended to the
// active log only when it belongs to the selected conversation. An echo of
// an optimistic send confirms the placeholder instead of duplicating it.
func (s *Store) ApplyIncoming(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpSummary(msg)

	if msg.ConversationID != s.selected {
		return
	}
	for i := range s.log {
		if s.log[i].ID == msg.ID {
			return
		}
		if s.log[i].Pending && s.log[i].SenderID == msg.SenderID && s.log[i].Content == msg.Content {
			s.log[i] = msg
			return
		}
	}
	s.log = append(s.log, msg)
}

// bumpSummary updates lastMessage/updatedAt on the owning conversation and
// moves it to the front. A message for an unknown conversation creates a
// stub row; the next full refetch fills it in. Callers hold the lock.
func (s *Store) bumpSummary(msg Message) {
	idx := -1
	for i := range s.conversations {
		if s.conversations[i].ID == msg.ConversationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		stub := Conversation{
			ID:          msg.ConversationID,
			LastMessage: msg.Content,
			UpdatedAt:   msg.CreatedAt,
		}
		if msg.ConversationID != s.selected && !msg.Pending {
			stub.Unread = 1
		}
		s.conversations = append([]Conversation{stub}, s.conversations...)
		return
	}

	conv := s.conversations[idx]
	conv.LastMessage = msg.Content
	conv.UpdatedAt = msg.CreatedAt
	if msg.ConversationID != s.selected && !msg.Pending {
		conv.Unread++
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	s.conversations = append([]Conversation{conv}, s.conversations...)
}

// AppendPending adds an optimistic placeholder for a message being sent and
// returns its client-synthesized id.
func (s *Store) AppendPending(conversationID, senderID, senderName, content string) string {
	placeholder := Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Content:        content,
		CreatedAt:      time.Now(),
		Pending:        true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpSummary(placeholder)
	if conversationID == s.selected {
		s.log = append(s.log, placeholder)
	}
	return placeholder.ID
}

// ConfirmPending replaces a placeholder with the server's confirmed record.
func (s *Store) ConfirmPending(placeholderID string, confirmed Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.log {
		if s.log[i].ID == placeholderID {
			s.log[i] = confirmed
			return
		}
		// The echoed event may have confirmed it already.
		if s.log[i].ID == confirmed.ID {
			return
		}
	}
}

// FailPending marks a placeholder as failed. It stays visible so the user
// can tell it never went out.
func (s *Store) FailPending(placeholderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.log {
		if s.log[i].ID == placeholderID {
			s.log[i].Pending = false
			s.log[i].Failed = true
			return
		}
	}
}

// ApplyRead records a read receipt against matching messages in the active
// log. Order and content never change. Empty messageIDs means every message
// in the conversation was read.
func (s *Store) ApplyRead(conversationID string, messageIDs []string, readerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conversationID != s.selected {
		return
	}
	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	for i := range s.log {
		if len(messageIDs) > 0 && !wanted[s.log[i].ID] {
			continue
		}
		if !s.log[i].readBy(readerID) {
			s.log[i].ReadBy = append(s.log[i].ReadBy, readerID)
		}
	}
}

// Messages returns a copy of the active message log, in arrival order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.log))
	copy(out, s.log)
	return out
}

// SetTyping toggles a typing indicator. Entries are advisory and dropped
// wholesale on disconnect.
func (s *Store) SetTyping(conversationID, userID, name string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if on {
		if s.typing[conversationID] == nil {
			s.typing[conversationID] = make(map[string]string)
		}
		s.typing[conversationID][userID] = name
		return
	}
	delete(s.typing[conversationID], userID)
	if len(s.typing[conversationID]) == 0 {
		delete(s.typing, conversationID)
	}
}

// TypingNames returns who is currently typing in a conversation.
func (s *Store) TypingNames(conversationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.typing[conversationID]))
	for _, name := range s.typing[conversationID] {
		names = append(names, name)
	}
	return names
}

// ClearTransient drops per-connection derived state after a disconnect.
func (s *Store) ClearTransient() {
	s.mu.Lock()
	s.typing = make(map[string]map[string]string)
	s.mu.Unlock()
}
