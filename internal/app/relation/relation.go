/*
Package relation manages the symmetric friend graph and the canonical direct
conversation for each pair of users.

The friend edge is stored redundantly in both users' friend sets; both
directions are inserted inside a single update cycle of the user collection so
they cannot diverge. Conversation canonicalization (at most one direct
conversation per unordered pair) relies on the members pair being stored in
sorted order and on lookup-then-create running inside one update cycle of the
conversation collection, which the store serializes.
*/
package relation

import (
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"dmchat/internal/app/store"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/randx"
)

// Service resolves and mutates friendship state against the entity store.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewService constructs a relation Service.
func NewService(st *store.Store) *Service {
	return &Service{
		store:  st,
		logger: logx.Logger().With().Str("component", "relation").Logger(),
	}
}

// ConversationView is one entry of a user's conversation list: the thread
// plus its resolved peer, when the peer still exists.
type ConversationView struct {
	Conversation store.Conversation

	// Peer is nil when the peer account no longer resolves.
	Peer *store.User
}

// AddFriend establishes a friendship between the requester and the named
// target and returns the canonical direct conversation id for the pair along
// with the resolved target. The operation is idempotent: repeating it changes
// nothing and returns the same conversation id.
func (s *Service) AddFriend(requesterID, targetUsername string) (string, store.User, *errs.CustomError) {
	target, ok := store.FindUserByUsername(s.store.Users.Snapshot(), targetUsername)
	if !ok {
		return "", store.User{}, errs.NewError(errs.ErrUserNotFound)
	}
	if target.ID == requesterID {
		return "", store.User{}, errs.NewError(errs.ErrSelfFriend)
	}

	err := s.store.Users.Update(func(users []store.User) ([]store.User, error) {
		for i := range users {
			switch users[i].ID {
			case requesterID:
				users[i].Friends = insertFriend(users[i].Friends, target.ID)
			case target.ID:
				users[i].Friends = insertFriend(users[i].Friends, requesterID)
			}
		}
		return users, nil
	})
	if err != nil {
		return "", store.User{}, errs.From(err, errs.ErrStorageFailed)
	}

	conversationID, customErr := s.resolveConversation(requesterID, target.ID)
	if customErr != nil {
		return "", store.User{}, customErr
	}

	return conversationID, target, nil
}

// insertFriend adds id to the friend set if absent.
func insertFriend(friends []string, id string) []string {
	if slices.Contains(friends, id) {
		return friends
	}
	return append(friends, id)
}

// resolveConversation returns the id of the direct conversation for the pair,
// creating it if none exists. Lookup and create run inside one update cycle
// of the conversation collection, so concurrent calls for the same pair
// resolve to a single record.
func (s *Service) resolveConversation(a, b string) (string, *errs.CustomError) {
	pair := store.SortedPair(a, b)

	var conversationID string
	err := s.store.Conversations.Update(func(convs []store.Conversation) ([]store.Conversation, error) {
		for _, c := range convs {
			if c.Kind == store.KindDirect && c.Members == pair {
				conversationID = c.ID
				return convs, nil
			}
		}

		created := store.Conversation{
			ID:        randx.NewID(),
			Kind:      store.KindDirect,
			Members:   pair,
			CreatedAt: store.NowMillis(),
		}
		conversationID = created.ID

		s.logger.Info().
			Str("conversation_id", created.ID).
			Strs("members", pair[:]).
			Msg("Direct conversation created")

		return append(convs, created), nil
	})
	if err != nil {
		return "", errs.From(err, errs.ErrStorageFailed)
	}

	return conversationID, nil
}

// ListFriends returns the resolved friend records of the user, sorted by
// username without regard to case. Friend ids that no longer resolve to an
// account are skipped.
func (s *Service) ListFriends(userID string) ([]store.User, *errs.CustomError) {
	users := s.store.Users.Snapshot()

	u, ok := store.FindUserByID(users, userID)
	if !ok {
		return nil, errs.NewError(errs.ErrUserNotFound)
	}

	byID := make(map[string]store.User, len(users))
	for _, candidate := range users {
		byID[candidate.ID] = candidate
	}

	friends := make([]store.User, 0, len(u.Friends))
	for _, id := range u.Friends {
		if friend, found := byID[id]; found {
			friends = append(friends, friend)
		}
	}

	slices.SortFunc(friends, func(a, b store.User) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})

	return friends, nil
}

// ListConversations returns every direct conversation the user is a member
// of, annotated with the resolved peer record, sorted by peer username
// without regard to case. A missing peer sorts under its placeholder name.
func (s *Service) ListConversations(userID string) ([]ConversationView, *errs.CustomError) {
	users := s.store.Users.Snapshot()

	byID := make(map[string]store.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var views []ConversationView
	for _, c := range s.store.Conversations.Snapshot() {
		if c.Kind != store.KindDirect || !c.HasMember(userID) {
			continue
		}

		view := ConversationView{Conversation: c}
		if peer, found := byID[c.PeerOf(userID)]; found {
			view.Peer = &peer
		}
		views = append(views, view)
	}

	slices.SortFunc(views, func(a, b ConversationView) int {
		return strings.Compare(peerSortKey(a), peerSortKey(b))
	})

	return views, nil
}

func peerSortKey(v ConversationView) string {
	if v.Peer == nil {
		return "unknown"
	}
	return strings.ToLower(v.Peer.Username)
}
