package relation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmchat/internal/app/store"
	"dmchat/internal/pkg/errs"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	return NewService(st), st
}

func seedUser(t *testing.T, st *store.Store, id, username string) {
	t.Helper()

	err := st.Users.Update(func(users []store.User) ([]store.User, error) {
		return append(users, store.User{
			ID:        id,
			Username:  username,
			Friends:   []string{},
			CreatedAt: store.NowMillis(),
		}), nil
	})
	require.NoError(t, err)
}

func friendsOf(t *testing.T, st *store.Store, id string) []string {
	t.Helper()

	u, ok := store.FindUserByID(st.Users.Snapshot(), id)
	require.True(t, ok)
	return u.Friends
}

func TestAddFriendSymmetric(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedUser(t, st, "u1", "alice")
	seedUser(t, st, "u2", "bob")

	conversationID, target, customErr := svc.AddFriend("u1", "bob")
	require.Nil(t, customErr)
	assert.Equal(t, "u2", target.ID)
	assert.NotEmpty(t, conversationID)

	assert.Equal(t, []string{"u2"}, friendsOf(t, st, "u1"))
	assert.Equal(t, []string{"u1"}, friendsOf(t, st, "u2"))

	convs := st.Conversations.Snapshot()
	require.Len(t, convs, 1)
	assert.Equal(t, store.SortedPair("u1", "u2"), convs[0].Members)
	assert.Equal(t, store.KindDirect, convs[0].Kind)
}

func TestAddFriendIdempotent(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedUser(t, st, "u1", "alice")
	seedUser(t, st, "u2", "bob")

	first, _, customErr := svc.AddFriend("u1", "bob")
	require.Nil(t, customErr)

	// Repeating from either side changes nothing and yields the same thread.
	second, _, customErr := svc.AddFriend("u1", "bob")
	require.Nil(t, customErr)
	third, _, customErr := svc.AddFriend("u2", "alice")
	require.Nil(t, customErr)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, []string{"u2"}, friendsOf(t, st, "u1"))
	assert.Equal(t, []string{"u1"}, friendsOf(t, st, "u2"))
	assert.Len(t, st.Conversations.Snapshot(), 1)
}

func TestAddFriendRejectsSelfAndUnknown(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedUser(t, st, "u1", "alice")

	_, _, customErr := svc.AddFriend("u1", "alice")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrSelfFriend, customErr.Code)

	_, _, customErr = svc.AddFriend("u1", "nobody")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrUserNotFound, customErr.Code)
}

func TestAddFriendConcurrentCreatesOneConversation(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedUser(t, st, "u1", "alice")
	seedUser(t, st, "u2", "bob")

	const attempts = 16

	ids := make([]string, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			requester, target := "u1", "bob"
			if i%2 == 1 {
				requester, target = "u2", "alice"
			}

			id, _, customErr := svc.AddFriend(requester, target)
			assert.Nil(t, customErr)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	require.Len(t, st.Conversations.Snapshot(), 1)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestListFriendsSortedAndSkipsDangling(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedUser(t, st, "u1", "alice")
	seedUser(t, st, "u2", "Zoe")
	seedUser(t, st, "u3", "bob")

	_, _, customErr := svc.AddFriend("u1", "Zoe")
	require.Nil(t, customErr)
	_, _, customErr = svc.AddFriend("u1", "bob")
	require.Nil(t, customErr)

	// A friend id with no matching account is skipped, not surfaced.
	err := st.Users.Update(func(users []store.User) ([]store.User, error) {
		for i := range users {
			if users[i].ID == "u1" {
				users[i].Friends = append(users[i].Friends, "gone")
			}
		}
		return users, nil
	})
	require.NoError(t, err)

	friends, customErr := svc.ListFriends("u1")
	require.Nil(t, customErr)
	require.Len(t, friends, 2)
	assert.Equal(t, "bob", friends[0].Username)
	assert.Equal(t, "Zoe", friends[1].Username)
}

func TestListFriendsUnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, customErr := svc.ListFriends("nobody")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrUserNotFound, customErr.Code)
}

func TestListConversationsSortedByPeer(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedUser(t, st, "u1", "alice")
	for i := 2; i <= 4; i++ {
		seedUser(t, st, fmt.Sprintf("u%d", i), fmt.Sprintf("peer%d", 5-i))
	}

	for _, name := range []string{"peer3", "peer1", "peer2"} {
		_, _, customErr := svc.AddFriend("u1", name)
		require.Nil(t, customErr)
	}

	views, customErr := svc.ListConversations("u1")
	require.Nil(t, customErr)
	require.Len(t, views, 3)
	for i, want := range []string{"peer1", "peer2", "peer3"} {
		require.NotNil(t, views[i].Peer)
		assert.Equal(t, want, views[i].Peer.Username)
	}
}

func TestListConversationsMissingPeer(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedUser(t, st, "u1", "alice")
	seedUser(t, st, "u2", "bob")

	_, _, customErr := svc.AddFriend("u1", "bob")
	require.Nil(t, customErr)

	// Remove the peer account while keeping the conversation.
	err := st.Users.Update(func(users []store.User) ([]store.User, error) {
		kept := users[:0]
		for _, u := range users {
			if u.ID != "u2" {
				kept = append(kept, u)
			}
		}
		return kept, nil
	})
	require.NoError(t, err)

	views, customErr := svc.ListConversations("u1")
	require.Nil(t, customErr)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].Peer)
	assert.Equal(t, "u2", views[0].Conversation.PeerOf("u1"))
}
