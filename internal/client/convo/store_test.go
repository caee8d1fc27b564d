package convo

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(zerolog.Nop())
}

func conv(id string) Conversation {
	return Conversation{
		ID: id,
		Participants: []Participant{
			{ID: "me", Name: "Me"},
			{ID: "peer-" + id, Name: "Peer " + id},
		},
		UpdatedAt: time.Now(),
	}
}

func msg(id, convID, sender, content string) Message {
	return Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

func TestSelectDiscardsPreviousLog(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a"), conv("b")})

	epochA := s.Select("a")
	require.True(t, s.ApplyMessages(epochA, []Message{msg("m1", "a", "peer-a", "hi")}))
	require.Len(t, s.Messages(), 1)

	s.Select("b")
	assert.Empty(t, s.Messages(), "previous conversation's log must be discarded")
	assert.Equal(t, "b", s.Selected())
}

// Select A, start fetching, switch to B, then let A's fetch resolve: the
// active log must only ever contain B's messages.
func TestStaleFetchResponseIsDiscarded(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a"), conv("b")})

	epochA := s.Select("a")
	epochB := s.Select("b")

	require.True(t, s.ApplyMessages(epochB, []Message{msg("m2", "b", "peer-b", "from b")}))
	assert.False(t, s.ApplyMessages(epochA, []Message{msg("m1", "a", "peer-a", "from a")}))

	log := s.Messages()
	require.Len(t, log, 1)
	assert.Equal(t, "b", log[0].ConversationID)
}

func TestApplyIncomingForSelectedConversation(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")

	s.ApplyIncoming(msg("m1", "a", "peer-a", "hello"))

	log := s.Messages()
	require.Len(t, log, 1)
	assert.Equal(t, "hello", log[0].Content)

	list := s.Conversations()
	assert.Equal(t, "hello", list[0].LastMessage)
	assert.Equal(t, 0, list[0].Unread, "selected conversation does not accumulate unread")
}

func TestApplyIncomingForOtherConversationUpdatesSummaryOnly(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a"), conv("b")})
	s.Select("a")

	s.ApplyIncoming(msg("m1", "b", "peer-b", "psst"))

	assert.Empty(t, s.Messages(), "messages for non-selected conversations are not buffered")

	list := s.Conversations()
	require.Equal(t, "b", list[0].ID, "conversation with newest message moves to front")
	assert.Equal(t, "psst", list[0].LastMessage)
	assert.Equal(t, 1, list[0].Unread)
}

func TestApplyIncomingUnknownConversationCreatesStub(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})

	s.ApplyIncoming(msg("m1", "z", "peer-z", "new thread"))

	list := s.Conversations()
	require.Len(t, list, 2)
	assert.Equal(t, "z", list[0].ID)
	assert.Equal(t, 1, list[0].Unread)
}

// A first message to a brand-new conversation may be the user's own
// optimistic send; that must not show up as unread.
func TestPendingToUnknownConversationNotCountedUnread(t *testing.T) {
	s := newTestStore()

	s.AppendPending("z", "me", "Me", "opening line")

	list := s.Conversations()
	require.Len(t, list, 1)
	assert.Equal(t, "z", list[0].ID)
	assert.Equal(t, 0, list[0].Unread)
	assert.Equal(t, "opening line", list[0].LastMessage)
}

func TestApplyIncomingDeduplicatesByID(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")

	m := msg("m1", "a", "peer-a", "hello")
	s.ApplyIncoming(m)
	s.ApplyIncoming(m)

	assert.Len(t, s.Messages(), 1)
}

func TestEchoConfirmsPendingPlaceholder(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")

	placeholderID := s.AppendPending("a", "me", "Me", "on my way")
	require.Len(t, s.Messages(), 1)
	require.True(t, s.Messages()[0].Pending)

	echoed := msg("srv-1", "a", "me", "on my way")
	s.ApplyIncoming(echoed)

	log := s.Messages()
	require.Len(t, log, 1, "echo must replace the placeholder, not duplicate it")
	assert.Equal(t, "srv-1", log[0].ID)
	assert.False(t, log[0].Pending)
	assert.NotEqual(t, placeholderID, log[0].ID)
}

func TestConfirmPendingAfterEchoIsNoop(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")

	placeholderID := s.AppendPending("a", "me", "Me", "hi")
	confirmed := msg("srv-1", "a", "me", "hi")
	s.ApplyIncoming(confirmed)
	s.ConfirmPending(placeholderID, confirmed)

	assert.Len(t, s.Messages(), 1)
}

func TestFailPendingKeepsVisibleFlaggedEntry(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")

	placeholderID := s.AppendPending("a", "me", "Me", "did this send?")
	s.FailPending(placeholderID)

	log := s.Messages()
	require.Len(t, log, 1)
	assert.True(t, log[0].Failed)
	assert.False(t, log[0].Pending, "a failed send must not look like a sent message")
}

func TestApplyReadUpdatesReadByOnly(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")
	s.ApplyIncoming(msg("m1", "a", "me", "one"))
	s.ApplyIncoming(msg("m2", "a", "me", "two"))

	s.ApplyRead("a", []string{"m1"}, "peer-a")

	log := s.Messages()
	assert.Equal(t, []string{"peer-a"}, log[0].ReadBy)
	assert.Empty(t, log[1].ReadBy)
	assert.Equal(t, "one", log[0].Content, "read receipts never change content")

	// Repeated receipt is a no-op.
	s.ApplyRead("a", []string{"m1"}, "peer-a")
	assert.Equal(t, []string{"peer-a"}, s.Messages()[0].ReadBy)
}

func TestApplyReadAllMessages(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")
	s.ApplyIncoming(msg("m1", "a", "me", "one"))
	s.ApplyIncoming(msg("m2", "a", "me", "two"))

	s.ApplyRead("a", nil, "peer-a")

	for _, m := range s.Messages() {
		assert.Equal(t, []string{"peer-a"}, m.ReadBy)
	}
}

func TestApplyReadForOtherConversationIgnored(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a"), conv("b")})
	s.Select("a")
	s.ApplyIncoming(msg("m1", "a", "me", "one"))

	s.ApplyRead("b", nil, "peer-b")

	assert.Empty(t, s.Messages()[0].ReadBy)
}

func TestTypingStateIsTransient(t *testing.T) {
	s := newTestStore()

	s.SetTyping("a", "u1", "Alice", true)
	s.SetTyping("a", "u2", "Bob", true)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, s.TypingNames("a"))

	s.SetTyping("a", "u1", "Alice", false)
	assert.Equal(t, []string{"Bob"}, s.TypingNames("a"))

	s.ClearTransient()
	assert.Empty(t, s.TypingNames("a"))
}

func TestMessageOrderFollowsArrival(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})
	s.Select("a")

	// Arrival order, not timestamp order: the second message carries an
	// older timestamp and still lands after the first.
	older := msg("m2", "a", "peer-a", "older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	s.ApplyIncoming(msg("m1", "a", "peer-a", "newer"))
	s.ApplyIncoming(older)

	log := s.Messages()
	require.Len(t, log, 2)
	assert.Equal(t, "m1", log[0].ID)
	assert.Equal(t, "m2", log[1].ID)
}

func TestSelectResetsUnread(t *testing.T) {
	s := newTestStore()
	c := conv("a")
	c.Unread = 4
	s.SetConversations([]Conversation{c})

	s.Select("a")

	assert.Equal(t, 0, s.Conversations()[0].Unread)
}

func TestConversationsReturnsCopy(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a")})

	list := s.Conversations()
	list[0].ID = "mutated"

	assert.Equal(t, "a", s.Conversations()[0].ID)
}

func TestManyIncomingKeepRecencyOrder(t *testing.T) {
	s := newTestStore()
	s.SetConversations([]Conversation{conv("a"), conv("b"), conv("c")})

	for i := 0; i < 5; i++ {
		s.ApplyIncoming(msg(fmt.Sprintf("m%d", i), "c", "peer-c", "x"))
	}
	s.ApplyIncoming(msg("last", "b", "peer-b", "y"))

	list := s.Conversations()
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
}
