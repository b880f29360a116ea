/*
Package handler provides the HTTP handlers and routing setup for the messaging server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"dmchat/internal/app/store"
	"dmchat/internal/pkg/auth"
	"dmchat/internal/pkg/limiter"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/resp"
)

const (
	// AuthRate limits credential endpoints (register/login) per IP.
	AuthRate  = 0.5
	AuthBurst = 10

	// ConnectRate limits live-channel handshakes per IP.
	ConnectRate  = 1
	ConnectBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status": "ok",
			"ts":     store.NowMillis(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.IdentityExtractorMiddleware(deps.Accounts))

		api.Get("/users/exists", HandleUsernameExists(deps))

		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", authLimiter.Middleware(HandleRegister(deps)).ServeHTTP)
			a.Post("/login", authLimiter.Middleware(HandleLogin(deps)).ServeHTTP)
			a.Post("/logout", HandleLogout(deps))
			a.Get("/me", HandleMe(deps))
		})

		api.Route("/account", func(a chi.Router) {
			a.Post("/username", HandleUpdateUsername(deps))
			a.Post("/password", HandleUpdatePassword(deps))
			a.Post("/avatar", HandleUpdateAvatar(deps))
		})

		api.Post("/friends/add", HandleAddFriend(deps))
		api.Get("/friends", HandleListFriends(deps))

		api.Get("/conversations", HandleListConversations(deps))
		api.Get("/conversations/{id}/messages", HandleListMessages(deps))
		api.Post("/messages/send", HandleSendMessage(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
