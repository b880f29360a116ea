/*
Package handler provides HTTP handler functions for account creation, login,
and session management.
*/
package handler

import (
	"net/http"

	"dmchat/internal/pkg/auth"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/req"
	"dmchat/internal/pkg/resp"
)

// HandleUsernameExists reports whether a username is already taken. Used by
// clients for inline availability checks during signup.
func HandleUsernameExists(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")

		resp.RespondSuccess(w, r, map[string]any{
			"exists": deps.Accounts.UsernameExists(username),
		})
	}
}

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister processes the request to create a new user account.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if _, customErr := deps.Accounts.Register(input.Username, input.Password); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"ok": true})
	}
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin verifies user credentials and issues an opaque session token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, u, customErr := deps.Accounts.Login(input.Username, input.Password)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  deps.Accounts.Public(u),
		})
	}
}

// HandleLogout revokes the presented session token.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r); !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if customErr := deps.Accounts.Logout(auth.TokenFromContext(r)); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"ok": true})
	}
}

// HandleMe returns the authenticated user's profile and the token it was
// resolved from.
func HandleMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user":  deps.Accounts.Public(u),
			"token": auth.TokenFromContext(r),
		})
	}
}
