package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/middleware"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/session"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// SessionHandler exposes the signed-in user's identity and its live changes.
// AllowedOrigins lists the browser origins, besides the service's own host, that may
// open the stream.
type SessionHandler struct {
	Session        SessionProvider
	AllowedOrigins []string
}

func (h SessionHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{middleware.WebSocketTokenProtocol},
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin admits non-browser clients, same-host pages and the configured origins.
func (h SessionHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// Current handles GET /api/v1/session.
func (h SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	actor := session.ProfileFromContext(ctx)
	if actor == nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, session.Snapshot{
		Event:   session.EventSignedIn,
		UserID:  actor.UserID,
		Profile: actor,
	})
}

// Stream handles GET /api/v1/session/stream. Browsers pass the access token as the
// protocol list "bearer, <token>". The connection receives the current snapshot, then
// every change, and is closed once the caller's session is signed out.
func (h SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Session == nil {
		logger.Error("session provider unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "session service unavailable"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	if actor == nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	// Subscribe before reading the current profile so no change is lost in between.
	sub := h.Session.Subscribe(actor.UserID, session.SessionIDFromContext(ctx))
	defer h.Session.Unsubscribe(sub)

	current := session.Snapshot{Event: session.EventSignedIn, UserID: actor.UserID}
	profile, err := h.Session.Current(ctx, actor.UserID)
	switch {
	case err == nil:
		current.Profile = &profile
	case errors.Is(err, repositories.ErrNotFound):
		current.Event = session.EventSignedOut
	default:
		logger.Error("load session profile", "userId", actor.UserID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load session"})
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("session stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info("session stream opened", "userId", actor.UserID)
	defer logger.Info("session stream closed", "userId", actor.UserID)

	if !writeSnapshot(conn, current) || current.Event == session.EventSignedOut {
		closeStream(conn)
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				closeStream(conn)
				return
			}
			if !writeSnapshot(conn, snap) {
				return
			}
			if snap.Event == session.EventSignedOut {
				closeStream(conn)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap session.Snapshot) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(snap) == nil
}

func closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
