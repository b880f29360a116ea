package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the sole owner of durable entity state. Each collection is an
// independently replaceable file under the data directory.
type Store struct {
	Users         *Collection[User]
	Sessions      *Collection[Session]
	Conversations *Collection[Conversation]
	Messages      *Collection[Message]
}

// Open creates the data directory if needed and loads all four collections,
// initializing any missing file to an empty collection.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	users, err := openCollection[User](filepath.Join(dir, "users.json"))
	if err != nil {
		return nil, err
	}

	sessions, err := openCollection[Session](filepath.Join(dir, "sessions.json"))
	if err != nil {
		return nil, err
	}

	conversations, err := openCollection[Conversation](filepath.Join(dir, "conversations.json"))
	if err != nil {
		return nil, err
	}

	messages, err := openCollection[Message](filepath.Join(dir, "messages.json"))
	if err != nil {
		return nil, err
	}

	return &Store{
		Users:         users,
		Sessions:      sessions,
		Conversations: conversations,
		Messages:      messages,
	}, nil
}
