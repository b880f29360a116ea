/*
Package store implements the durable entity store for the messaging backend.

State lives in four independent collections (users, sessions, conversations,
messages), each persisted as a single JSON file that is replaced atomically on
every write. Collections hand out snapshot copies for reads and serialize all
read-modify-write cycles behind a per-collection lock.
*/
package store

import (
	"strings"
	"time"
)

// KindDirect is the only supported conversation kind: exactly two members,
// at most one conversation per unordered member pair.
const KindDirect = "direct"

// User is a registered account. Friends holds the ids of the symmetric friend
// set: id A appears in B's set exactly when B appears in A's.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"passwordHash"`
	Friends      []string `json:"friends"`
	Avatar       *string  `json:"avatar"`
	CreatedAt    int64    `json:"createdAt"`
}

// Session maps an opaque bearer token to a user. Expired sessions never
// resolve and are pruned opportunistically on login.
type Session struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Conversation is a direct thread between exactly two users. Members is
// always stored in canonical sorted order so that one unordered pair maps to
// exactly one record.
type Conversation struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Members   [2]string `json:"members"`
	CreatedAt int64     `json:"createdAt"`
}

// HasMember reports whether id is one of the two conversation members.
func (c Conversation) HasMember(id string) bool {
	return c.Members[0] == id || c.Members[1] == id
}

// PeerOf returns the other member relative to id.
func (c Conversation) PeerOf(id string) string {
	if c.Members[0] == id {
		return c.Members[1]
	}
	return c.Members[0]
}

// Message is an immutable ledger entry. Records are append-only; retrieval
// order is CreatedAt ascending with ties broken by append order.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	AuthorID       string `json:"authorId"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"createdAt"`
}

// SortedPair returns the canonical ordering of an unordered user id pair.
func SortedPair(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

// NowMillis returns the current time in milliseconds since the Unix epoch,
// the timestamp resolution used by every persisted record.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// FindUserByUsername looks up a user by username, ignoring case and
// surrounding whitespace.
func FindUserByUsername(users []User, username string) (User, bool) {
	needle := strings.TrimSpace(username)
	for _, u := range users {
		if strings.EqualFold(u.Username, needle) {
			return u, true
		}
	}
	return User{}, false
}

// FindUserByID looks up a user by id.
func FindUserByID(users []User, id string) (User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}
