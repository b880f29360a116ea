/*
Package handler provides HTTP handler functions for sending and listing
messages.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dmchat/internal/app/chat"
	"dmchat/internal/app/store"
	"dmchat/internal/pkg/auth"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/req"
	"dmchat/internal/pkg/resp"
)

// HandleListMessages returns the conversation's messages in creation order.
// Membership is required; non-members receive the same not-found failure as
// callers of a nonexistent conversation.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conversationID := chi.URLParam(r, "id")

		messages, customErr := deps.Ledger.List(conversationID, u.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if messages == nil {
			messages = []store.Message{}
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": messages})
	}
}

type SendMessageInput struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// HandleSendMessage appends a message to the conversation and pushes it to
// both members' live channels.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, conversation, customErr := deps.Ledger.Send(input.ConversationID, u.ID, input.Content)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		for _, memberID := range conversation.Members {
			deps.Hub.Emit(memberID, chat.MessageCreatedEvent(conversation.ID, msg))
		}

		resp.RespondSuccess(w, r, map[string]any{
			"ok":      true,
			"message": msg,
		})
	}
}
