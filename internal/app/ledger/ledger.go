/*
Package ledger appends immutable messages to conversations and orders them
for retrieval.

The message collection is append-only: nothing in this package ever rewrites
or removes a record. Retrieval sorts by creation timestamp ascending and
breaks timestamp ties by append order, so ordering stays deterministic even
when two messages land on the same millisecond.
*/
package ledger

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"dmchat/internal/app/store"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/randx"
)

// MaxContentLen is the maximum message length in runes after trimming.
const MaxContentLen = 2000

// Service owns message creation and retrieval against the entity store.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewService constructs a ledger Service.
func NewService(st *store.Store) *Service {
	return &Service{
		store:  st,
		logger: logx.Logger().With().Str("component", "ledger").Logger(),
	}
}

// findConversation resolves a direct conversation that the caller is a member
// of. Absent conversations and non-membership fail identically so that the
// response does not reveal whether the conversation exists.
func (s *Service) findConversation(conversationID, memberID string) (store.Conversation, *errs.CustomError) {
	for _, c := range s.store.Conversations.Snapshot() {
		if c.ID == conversationID && c.Kind == store.KindDirect {
			if c.HasMember(memberID) {
				return c, nil
			}
			break
		}
	}

	return store.Conversation{}, errs.NewError(errs.ErrConversationNotFound)
}

// Send appends a new immutable message to the conversation and returns it
// together with the conversation, whose members the caller needs for event
// fan-out. Content is trimmed first; an empty or overlong result is rejected.
func (s *Service) Send(conversationID, authorID, content string) (store.Message, store.Conversation, *errs.CustomError) {
	content = strings.TrimSpace(content)
	if length := utf8.RuneCountInString(content); length == 0 || length > MaxContentLen {
		return store.Message{}, store.Conversation{}, errs.NewError(errs.ErrMessageLength)
	}

	conversation, customErr := s.findConversation(conversationID, authorID)
	if customErr != nil {
		return store.Message{}, store.Conversation{}, customErr
	}

	msg := store.Message{
		ID:             randx.NewID(),
		ConversationID: conversationID,
		AuthorID:       authorID,
		Content:        content,
		CreatedAt:      store.NowMillis(),
	}

	err := s.store.Messages.Update(func(msgs []store.Message) ([]store.Message, error) {
		return append(msgs, msg), nil
	})
	if err != nil {
		return store.Message{}, store.Conversation{}, errs.From(err, errs.ErrStorageFailed)
	}

	return msg, conversation, nil
}

// List returns all messages of the conversation in creation order, provided
// the requester is a member.
func (s *Service) List(conversationID, requesterID string) ([]store.Message, *errs.CustomError) {
	if _, customErr := s.findConversation(conversationID, requesterID); customErr != nil {
		return nil, customErr
	}

	var out []store.Message
	for _, m := range s.store.Messages.Snapshot() {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}

	// Stable sort keeps append order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})

	return out, nil
}
