package convo

import (
	"context"

	"github.com/rs/zerolog"
)

// SendFunc posts a message to the server and returns the confirmed record.
type SendFunc func(ctx context.Context, conversationID, content string) (Message, error)

// Sender performs optimistic sends: the placeholder goes into the store
// immediately and is confirmed or marked failed once the server answers.
type Sender struct {
	store  *Store
	send   SendFunc
	logger zerolog.Logger
}

func NewSender(store *Store, send SendFunc, logger zerolog.Logger) *Sender {
	return &Sender{store: store, send: send, logger: logger}
}

// Send appends a placeholder, performs the network call, and resolves the
// placeholder either way. The returned error is the server/network error,
// already reflected in the store.
func (s *Sender) Send(ctx context.Context, conversationID, senderID, senderName, content string) error {
	placeholderID := s.store.AppendPending(conversationID, senderID, senderName, content)

	confirmed, err := s.send(ctx, conversationID, content)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("send failed")
		s.store.FailPending(placeholderID)
		return err
	}
	s.store.ConfirmPending(placeholderID, confirmed)
	return nil
}
