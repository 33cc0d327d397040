package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/social"
)

func TestRegisterRoutes(t *testing.T) {
	fx := newAuthFixture(t)
	fx.users.addUser(t, "user-1", "ada@example.com", "Ada", "password123")
	tokens, err := fx.manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	feedStub := &stubFeed{posts: samplePosts()}
	socialStub := &stubSocial{view: stubView()}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Database: stubPinger{},
		Users:    fx.users,
		Sessions: fx.manager,
		Session:  fx.provider,
		Feed:     feedStub,
		Social:   socialStub,
	})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", status: http.StatusOK},
		{name: "anonymous feed", method: http.MethodGet, path: "/api/v1/posts", status: http.StatusOK},
		{name: "anonymous like", method: http.MethodPost, path: "/api/v1/posts/post-2/like", status: http.StatusOK},
		{name: "profile requires auth", method: http.MethodGet, path: "/api/v1/profile", status: http.StatusUnauthorized},
		{name: "profile", method: http.MethodGet, path: "/api/v1/profile", token: tokens.AccessToken, status: http.StatusOK},
		{name: "other profile", method: http.MethodGet, path: "/api/v1/profiles/user-2", token: tokens.AccessToken, status: http.StatusOK},
		{name: "friends requires auth", method: http.MethodGet, path: "/api/v1/friends", status: http.StatusUnauthorized},
		{name: "session", method: http.MethodGet, path: "/api/v1/session", token: tokens.AccessToken, status: http.StatusOK},
		{name: "media not configured", method: http.MethodPost, path: "/api/v1/media", token: tokens.AccessToken, status: http.StatusServiceUnavailable},
		{name: "wrong method", method: http.MethodDelete, path: "/api/v1/posts", status: http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}

	if feedStub.gotPostID != "post-2" || feedStub.gotActor != nil {
		t.Fatalf("expected anonymous like to reach the feed service, got post=%q actor=%+v", feedStub.gotPostID, feedStub.gotActor)
	}
	if socialStub.gotViewer != "user-1" || socialStub.gotTarget != "user-2" {
		t.Fatalf("expected path value to reach the social service, got viewer=%q target=%q", socialStub.gotViewer, socialStub.gotTarget)
	}
}

func stubView() social.ProfileView {
	return social.ProfileView{Profile: models.Profile{UserID: "user-2", Name: "Bea"}}
}
