/*
Package handler provides HTTP handler functions for the friend graph and
conversation listings.
*/
package handler

import (
	"net/http"

	"dmchat/internal/app/chat"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/auth"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/req"
	"dmchat/internal/pkg/resp"
)

type AddFriendInput struct {
	Username string `json:"username"`
}

// HandleAddFriend establishes a friendship with the named user and returns
// the canonical conversation id for the pair. Both sides are notified on
// their live channels.
func HandleAddFriend(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input AddFriendInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		conversationID, target, customErr := deps.Relations.AddFriend(u.ID, input.Username)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Hub.Emit(u.ID, chat.FriendsChangedEvent())
		deps.Hub.Emit(target.ID, chat.FriendsChangedEvent())
		deps.Hub.Emit(u.ID, chat.ConversationReadyEvent(conversationID, target.ID))
		deps.Hub.Emit(target.ID, chat.ConversationReadyEvent(conversationID, u.ID))

		resp.RespondSuccess(w, r, map[string]any{
			"ok":             true,
			"conversationId": conversationID,
		})
	}
}

// HandleListFriends returns the authenticated user's friends sorted by
// username.
func HandleListFriends(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		friends, customErr := deps.Relations.ListFriends(u.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		out := make([]user.Public, 0, len(friends))
		for _, f := range friends {
			out = append(out, deps.Accounts.Public(f))
		}

		resp.RespondSuccess(w, r, map[string]any{"friends": out})
	}
}

// conversationEntry is one element of the conversation listing, carrying the
// resolved peer profile.
type conversationEntry struct {
	ID        string      `json:"id"`
	Peer      user.Public `json:"peer"`
	CreatedAt int64       `json:"createdAt"`
}

// HandleListConversations returns the authenticated user's direct
// conversations sorted by peer username. Peers that no longer resolve are
// rendered with a placeholder profile.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		views, customErr := deps.Relations.ListConversations(u.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		out := make([]conversationEntry, 0, len(views))
		for _, v := range views {
			entry := conversationEntry{
				ID:        v.Conversation.ID,
				CreatedAt: v.Conversation.CreatedAt,
			}
			if v.Peer != nil {
				entry.Peer = deps.Accounts.Public(*v.Peer)
			} else {
				entry.Peer = user.Unknown(v.Conversation.PeerOf(u.ID))
			}
			out = append(out, entry)
		}

		resp.RespondSuccess(w, r, map[string]any{"conversations": out})
	}
}
