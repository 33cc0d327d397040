package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/session"
)

func TestSessionHandlerCurrent(t *testing.T) {
	handler := SessionHandler{}

	rec := httptest.NewRecorder()
	handler.Current(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}

	actor := &models.Profile{UserID: "user-1", Name: "Ada"}
	rec = httptest.NewRecorder()
	handler.Current(rec, withActor(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil), actor))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	var snap session.Snapshot
	decodeBody(t, rec, &snap)
	if snap.UserID != "user-1" || snap.Profile == nil || snap.Profile.Name != "Ada" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) session.Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap session.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

func TestSessionHandlerStream(t *testing.T) {
	users := newInMemoryUserStore()
	users.addUser(t, "user-1", "ada@example.com", "Ada", "password123")
	provider := session.NewProvider(users, time.Minute, nil, nil)
	defer provider.Close()

	server := newStreamServer(SessionHandler{Session: provider}, "laptop")
	defer server.Close()

	dialer := websocket.Dialer{Subprotocols: []string{"bearer", "access-token"}}
	conn, _, err := dialer.Dial(streamURL(server), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if conn.Subprotocol() != "bearer" {
		t.Fatalf("expected the bearer protocol to be selected, got %q", conn.Subprotocol())
	}

	first := readSnapshot(t, conn)
	if first.Event != session.EventSignedIn || first.Profile == nil || first.Profile.Name != "Ada" {
		t.Fatalf("expected current snapshot first, got %+v", first)
	}

	users.mu.Lock()
	p := users.profiles["user-1"]
	p.Name = "Ada L"
	users.profiles["user-1"] = p
	users.mu.Unlock()

	// The subscription is registered before the first frame is written.
	if err := provider.ProfileChanged(context.Background(), "user-1"); err != nil {
		t.Fatalf("profile changed: %v", err)
	}
	changed := readSnapshot(t, conn)
	if changed.Event != session.EventProfileChanged || changed.Profile == nil || changed.Profile.Name != "Ada L" {
		t.Fatalf("expected profile change, got %+v", changed)
	}

	// Signing out another device must not end this stream.
	if err := provider.SignedOut(context.Background(), "user-1", "phone"); err != nil {
		t.Fatalf("signed out phone: %v", err)
	}
	if err := provider.ProfileChanged(context.Background(), "user-1"); err != nil {
		t.Fatalf("profile changed: %v", err)
	}
	if next := readSnapshot(t, conn); next.Event != session.EventProfileChanged {
		t.Fatalf("expected the stream to ignore another session's sign-out, got %+v", next)
	}

	if err := provider.SignedOut(context.Background(), "user-1", "laptop"); err != nil {
		t.Fatalf("signed out: %v", err)
	}
	out := readSnapshot(t, conn)
	if out.Event != session.EventSignedOut || out.Profile != nil {
		t.Fatalf("expected signed-out snapshot, got %+v", out)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal closure after sign out, got %v", err)
	}
}

func newStreamServer(handler SessionHandler, sessionID string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := withActor(r, &models.Profile{UserID: "user-1"})
		handler.Stream(w, req.WithContext(session.WithSessionID(req.Context(), sessionID)))
	}))
}

func streamURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSessionHandlerStreamOrigins(t *testing.T) {
	users := newInMemoryUserStore()
	users.addUser(t, "user-1", "ada@example.com", "Ada", "password123")
	provider := session.NewProvider(users, time.Minute, nil, nil)
	defer provider.Close()

	server := newStreamServer(SessionHandler{Session: provider, AllowedOrigins: []string{"https://app.example/"}}, "laptop")
	defer server.Close()

	cases := []struct {
		name   string
		origin string
		ok     bool
	}{
		{name: "no origin", ok: true},
		{name: "same host", origin: server.URL, ok: true},
		{name: "allowed", origin: "https://app.example", ok: true},
		{name: "foreign", origin: "https://evil.example", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{}
			if tc.origin != "" {
				header.Set("Origin", tc.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(streamURL(server), header)
			if tc.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				readSnapshot(t, conn)
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("expected foreign origin to be refused")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Fatalf("expected 403 for foreign origin, got %v", resp)
			}
		})
	}
}

func TestSessionHandlerStreamRequiresIdentity(t *testing.T) {
	users := newInMemoryUserStore()
	provider := session.NewProvider(users, time.Minute, nil, nil)
	defer provider.Close()

	rec := httptest.NewRecorder()
	SessionHandler{Session: provider}.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session/stream", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}
