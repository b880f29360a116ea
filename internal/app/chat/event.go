/*
Package chat contains the real-time distribution layer: the connection
registry tracking each user's live WebSocket channels and the dispatcher that
fans mutation events out to them.
*/
package chat

import (
	"dmchat/internal/app/store"
	"dmchat/internal/app/user"
)

// Event type identifiers pushed over the live channel.
const (
	// TypeHello greets a freshly connected channel with the resolved identity.
	TypeHello = "hello"

	// TypeFriendsChanged tells the client to re-fetch its friend list.
	TypeFriendsChanged = "friendsChanged"

	// TypeConversationReady announces the canonical conversation for a new friendship.
	TypeConversationReady = "conversationReady"

	// TypeMessageCreated carries a newly appended message.
	TypeMessageCreated = "messageCreated"
)

// Event is the flat payload pushed to live channels. Fields beyond Type are
// populated per event kind and omitted otherwise.
type Event struct {
	Type           string         `json:"type"`
	User           *user.Public   `json:"user,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	PeerID         string         `json:"peerId,omitempty"`
	Message        *store.Message `json:"message,omitempty"`
	TS             int64          `json:"ts,omitempty"`
}

// HelloEvent is sent synchronously after a successful handshake, before the
// channel enters its passive receive phase.
func HelloEvent(u user.Public) Event {
	return Event{Type: TypeHello, User: &u, TS: store.NowMillis()}
}

// FriendsChangedEvent signals that the recipient's friend graph changed.
func FriendsChangedEvent() Event {
	return Event{Type: TypeFriendsChanged}
}

// ConversationReadyEvent announces the conversation id and peer for a
// friendship, addressed per recipient (each side sees the other as peer).
func ConversationReadyEvent(conversationID, peerID string) Event {
	return Event{Type: TypeConversationReady, ConversationID: conversationID, PeerID: peerID}
}

// MessageCreatedEvent carries a newly created message to both members.
func MessageCreatedEvent(conversationID string, msg store.Message) Event {
	return Event{Type: TypeMessageCreated, ConversationID: conversationID, Message: &msg}
}
