package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesEmptyCollections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	assert.Empty(t, s.Users.Snapshot())
	assert.Empty(t, s.Sessions.Snapshot())
	assert.Empty(t, s.Conversations.Snapshot())
	assert.Empty(t, s.Messages.Snapshot())

	for _, name := range []string{"users.json", "sessions.json", "conversations.json", "messages.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(data), "empty collection must persist as an empty array")
	}
}

func TestUpdatePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	err = s.Users.Update(func(users []User) ([]User, error) {
		return append(users, User{ID: "u1", Username: "alice", CreatedAt: NowMillis()}), nil
	})
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)

	users := reopened.Users.Snapshot()
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestUpdateLeavesNoSideFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	err = s.Messages.Update(func(msgs []Message) ([]Message, error) {
		return append(msgs, Message{ID: "m1", Content: "hi"}), nil
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "messages.json.tmp"))
	assert.True(t, os.IsNotExist(err), "side file must be renamed away after a write")
}

func TestUpdateErrorAbortsWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.Users.Update(func(users []User) ([]User, error) {
		return append(users, User{ID: "u1", Username: "alice"}), nil
	}))

	wantErr := fmt.Errorf("validation failed")
	err = s.Users.Update(func(users []User) ([]User, error) {
		return nil, wantErr
	})
	assert.Equal(t, wantErr, err, "fn error must propagate unchanged")

	users := s.Users.Snapshot()
	require.Len(t, users, 1, "aborted update must not change the collection")

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Len(t, reopened.Users.Snapshot(), 1, "aborted update must not touch the file")
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Users.Update(func(users []User) ([]User, error) {
		return append(users, User{ID: "u1", Username: "alice"}), nil
	}))

	snap := s.Users.Snapshot()
	snap[0].Username = "mallory"

	assert.Equal(t, "alice", s.Users.Snapshot()[0].Username)
}

// Concurrent read-modify-write cycles against the same collection must not
// lose updates: every appended record has to survive.
func TestConcurrentUpdatesAllApplied(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	require.NoError(t, err)

	const n = 32

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Messages.Update(func(msgs []Message) ([]Message, error) {
				return append(msgs, Message{ID: fmt.Sprintf("m%d", i)}), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Messages.Snapshot(), n)
}

func TestSortedPairCanonical(t *testing.T) {
	t.Parallel()

	assert.Equal(t, [2]string{"a", "b"}, SortedPair("a", "b"))
	assert.Equal(t, [2]string{"a", "b"}, SortedPair("b", "a"))
}

func TestConversationPeerOf(t *testing.T) {
	t.Parallel()

	c := Conversation{Members: SortedPair("u2", "u1")}

	assert.True(t, c.HasMember("u1"))
	assert.True(t, c.HasMember("u2"))
	assert.False(t, c.HasMember("u3"))
	assert.Equal(t, "u2", c.PeerOf("u1"))
	assert.Equal(t, "u1", c.PeerOf("u2"))
}

func TestFindUserByUsernameIgnoresCase(t *testing.T) {
	t.Parallel()

	users := []User{{ID: "u1", Username: "Alice"}}

	got, ok := FindUserByUsername(users, "  aLiCe ")
	require.True(t, ok)
	assert.Equal(t, "u1", got.ID)

	_, ok = FindUserByUsername(users, "bob")
	assert.False(t, ok)
}
