/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
token resolution, upgrading the HTTP connection to WebSocket, and initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dmchat/internal/app/chat"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/limiter"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process live-channel
// connection requests. The session token travels as a query parameter; an
// unresolvable token closes the freshly upgraded connection with a policy
// violation code. On success the client receives a hello event before the
// channel enters its passive receive phase.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		u, customErr := deps.Accounts.ResolveToken(token)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		if customErr != nil {
			logx.Warn("WebSocket handshake rejected: unresolvable token")

			closeMessage := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token")
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			conn.WriteMessage(websocket.CloseMessage, closeMessage)
			conn.Close()
			return
		}

		client := chat.NewClient(deps.Hub, conn, u.ID)
		deps.Hub.Connect(client)

		// The greeting is queued before the pumps start, so it is the first
		// frame the client receives.
		if err := client.SendEvent(chat.HelloEvent(deps.Accounts.Public(u))); err != nil {
			deps.Hub.Disconnect(client)
			client.Close()
			conn.Close()
			return
		}

		logx.Info("Live channel established", "user_id", u.ID)

		go client.WritePump()
		client.ReadPump()
	}
}
