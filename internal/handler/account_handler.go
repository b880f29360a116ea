/*
Package handler provides HTTP handler functions for profile updates on the
authenticated account.
*/
package handler

import (
	"net/http"

	"dmchat/internal/pkg/auth"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/req"
	"dmchat/internal/pkg/resp"
)

type UpdateUsernameInput struct {
	Username string `json:"username"`
}

// HandleUpdateUsername renames the authenticated account.
func HandleUpdateUsername(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input UpdateUsernameInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Accounts.UpdateUsername(u.ID, input.Username); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"ok": true})
	}
}

type UpdatePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// HandleUpdatePassword replaces the account credential after verifying the
// current one.
func HandleUpdatePassword(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input UpdatePasswordInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Accounts.UpdatePassword(u.ID, input.OldPassword, input.NewPassword); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"ok": true})
	}
}

type UpdateAvatarInput struct {
	// Avatar is an image data URL, or null to clear the avatar.
	Avatar *string `json:"avatar"`
}

// HandleUpdateAvatar sets or clears the authenticated account's avatar.
func HandleUpdateAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input UpdateAvatarInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Accounts.UpdateAvatar(r.Context(), u.ID, input.Avatar); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"ok": true})
	}
}
