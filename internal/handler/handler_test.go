package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmchat/internal/app/account"
	"dmchat/internal/app/chat"
	"dmchat/internal/app/ledger"
	"dmchat/internal/app/relation"
	"dmchat/internal/app/store"
	"dmchat/internal/configs"
	"dmchat/internal/pkg/errs"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	deps := &AppDeps{
		Config: &configs.AppConfig{
			Environment:    "development",
			Port:           8080,
			DataDir:        t.TempDir(),
			AllowedOrigins: []string{},
		},
		Accounts:  account.NewService(st, nil),
		Relations: relation.NewService(st),
		Ledger:    ledger.NewService(st),
		Hub:       chat.NewHub(),
	}

	srv := httptest.NewServer(Router(deps))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, t: t}
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(res.Body).Decode(&env))

	return res.StatusCode, env
}

// signup registers and logs a user in, returning the session token.
func (s *testServer) signup(username string) string {
	s.t.Helper()

	status, env := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "secret1",
	})
	require.Equal(s.t, http.StatusOK, status, env.Message)

	status, env = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "secret1",
	})
	require.Equal(s.t, http.StatusOK, status, env.Message)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(s.t, payload.Token)

	return payload.Token
}

func (s *testServer) dialWS(token string) *websocket.Conn {
	s.t.Helper()

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}

	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(s.t, err)
	if res != nil {
		res.Body.Close()
	}
	s.t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	status, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	token := s.signup("alice")

	status, env := s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	var payload struct {
		User struct {
			Username string   `json:"username"`
			Friends  []string `json:"friends"`
		} `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "alice", payload.User.Username)
	assert.NotNil(t, payload.User.Friends)
	assert.Equal(t, token, payload.Token)
}

func TestMeRequiresToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	status, env := s.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errs.ErrUnauthorized, env.Code)

	status, env = s.do(http.MethodGet, "/api/auth/me", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errs.ErrUnauthorized, env.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	token := s.signup("alice")

	status, _ := s.do(http.MethodPost, "/api/auth/logout", token, map[string]string{})
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUsernameExists(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.signup("alice")

	status, env := s.do(http.MethodGet, "/api/users/exists?username=ALICE", "", nil)
	require.Equal(t, http.StatusOK, status)

	var payload struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.True(t, payload.Exists)

	_, env = s.do(http.MethodGet, "/api/users/exists?username=bob", "", nil)
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.False(t, payload.Exists)
}

func TestBindJSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	token := s.signup("alice")

	status, env := s.do(http.MethodPost, "/api/friends/add", token, map[string]string{
		"username": "bob",
		"surprise": "field",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrInvalidJSONFormat, env.Code)
}

func TestFriendAndMessageFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	aliceToken := s.signup("alice")
	bobToken := s.signup("bob")

	status, env := s.do(http.MethodPost, "/api/friends/add", aliceToken, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusOK, status, env.Message)

	var added struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &added))
	require.NotEmpty(t, added.ConversationID)

	// Repeating the request yields the same conversation.
	_, env = s.do(http.MethodPost, "/api/friends/add", bobToken, map[string]string{"username": "alice"})
	var repeated struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &repeated))
	assert.Equal(t, added.ConversationID, repeated.ConversationID)

	status, env = s.do(http.MethodGet, "/api/friends", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	var friendList struct {
		Friends []struct {
			Username string `json:"username"`
		} `json:"friends"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &friendList))
	require.Len(t, friendList.Friends, 1)
	assert.Equal(t, "alice", friendList.Friends[0].Username)

	status, env = s.do(http.MethodGet, "/api/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var convList struct {
		Conversations []struct {
			ID   string `json:"id"`
			Peer struct {
				Username string `json:"username"`
			} `json:"peer"`
		} `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &convList))
	require.Len(t, convList.Conversations, 1)
	assert.Equal(t, added.ConversationID, convList.Conversations[0].ID)
	assert.Equal(t, "bob", convList.Conversations[0].Peer.Username)

	status, env = s.do(http.MethodPost, "/api/messages/send", aliceToken, map[string]string{
		"conversationId": added.ConversationID,
		"content":        "hi bob",
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(http.MethodGet, "/api/conversations/"+added.ConversationID+"/messages", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	var msgList struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &msgList))
	require.Len(t, msgList.Messages, 1)
	assert.Equal(t, "hi bob", msgList.Messages[0].Content)
}

func TestMessagesRequireMembership(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	aliceToken := s.signup("alice")
	s.signup("bob")
	carolToken := s.signup("carol")

	_, env := s.do(http.MethodPost, "/api/friends/add", aliceToken, map[string]string{"username": "bob"})
	var added struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &added))

	status, env := s.do(http.MethodGet, "/api/conversations/"+added.ConversationID+"/messages", carolToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, errs.ErrConversationNotFound, env.Code)

	status, env = s.do(http.MethodPost, "/api/messages/send", carolToken, map[string]string{
		"conversationId": added.ConversationID,
		"content":        "let me in",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, errs.ErrConversationNotFound, env.Code)
}

func TestWebSocketHelloAndMessagePush(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	aliceToken := s.signup("alice")
	bobToken := s.signup("bob")

	bobConn := s.dialWS(bobToken)

	hello := readEvent(t, bobConn)
	require.Equal(t, "hello", hello["type"])
	u, ok := hello["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bob", u["username"])

	_, env := s.do(http.MethodPost, "/api/friends/add", aliceToken, map[string]string{"username": "bob"})
	var added struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &added))

	friendsChanged := readEvent(t, bobConn)
	assert.Equal(t, "friendsChanged", friendsChanged["type"])

	conversationReady := readEvent(t, bobConn)
	require.Equal(t, "conversationReady", conversationReady["type"])
	assert.Equal(t, added.ConversationID, conversationReady["conversationId"])

	status, env := s.do(http.MethodPost, "/api/messages/send", aliceToken, map[string]string{
		"conversationId": added.ConversationID,
		"content":        "hi bob",
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	created := readEvent(t, bobConn)
	require.Equal(t, "messageCreated", created["type"])
	assert.Equal(t, added.ConversationID, created["conversationId"])
	msg, ok := created["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi bob", msg["content"])
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?token=bogus"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestUpdateUsernameEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	token := s.signup("alice")

	status, _ := s.do(http.MethodPost, "/api/account/username", token, map[string]string{"username": "carol"})
	require.Equal(t, http.StatusOK, status)

	_, env := s.do(http.MethodGet, "/api/users/exists?username=carol", "", nil)
	var payload struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.True(t, payload.Exists)
}

func TestUpdateAvatarEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	token := s.signup("alice")

	dataURL := "data:image/png;base64,iVBORw0KGgo="
	status, _ := s.do(http.MethodPost, "/api/account/avatar", token, map[string]*string{"avatar": &dataURL})
	require.Equal(t, http.StatusOK, status)

	_, env := s.do(http.MethodGet, "/api/auth/me", token, nil)
	var payload struct {
		User struct {
			Avatar *string `json:"avatar"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotNil(t, payload.User.Avatar)
	assert.Equal(t, dataURL, *payload.User.Avatar)

	status, _ = s.do(http.MethodPost, "/api/account/avatar", token, map[string]*string{"avatar": nil})
	require.Equal(t, http.StatusOK, status)
}

func TestMessageLengthRejectedAtAPI(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	aliceToken := s.signup("alice")
	s.signup("bob")

	_, env := s.do(http.MethodPost, "/api/friends/add", aliceToken, map[string]string{"username": "bob"})
	var added struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &added))

	status, env := s.do(http.MethodPost, "/api/messages/send", aliceToken, map[string]string{
		"conversationId": added.ConversationID,
		"content":        "   ",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrMessageLength, env.Code)

	status, env = s.do(http.MethodPost, "/api/messages/send", aliceToken, map[string]string{
		"conversationId": added.ConversationID,
		"content":        strings.Repeat("x", 2001),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrMessageLength, env.Code)
}
