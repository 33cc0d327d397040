package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/session"
	"github.com/socialfeed/backend/internal/social"
)

type inMemoryUserStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	profiles map[string]models.Profile
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{
		users:    make(map[string]models.User),
		profiles: make(map[string]models.Profile),
	}
}

func (s *inMemoryUserStore) Register(_ context.Context, user models.User, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	profile.UserID = user.ID
	s.profiles[user.ID] = profile
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

// Find lets the store double as the session provider's profile loader.
func (s *inMemoryUserStore) Find(_ context.Context, userID string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, repositories.ErrNotFound
	}
	return profile, nil
}

func (s *inMemoryUserStore) addUser(t *testing.T, id, email, name, password string) models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{ID: id, Email: email, Password: hash}
	if err := s.Register(context.Background(), user, models.Profile{Name: name, Email: email}); err != nil {
		t.Fatalf("register user: %v", err)
	}
	return user
}

type authFixture struct {
	users    *inMemoryUserStore
	store    *auth.InMemorySessionStore
	manager  *auth.Manager
	provider *session.Provider
	handler  AuthHandler
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	users := newInMemoryUserStore()
	store := auth.NewInMemorySessionStore()
	manager := auth.NewManager([]byte("test-secret"), time.Minute, time.Hour, store)
	provider := session.NewProvider(users, time.Minute, nil, nil)
	t.Cleanup(func() { _ = provider.Close() })

	return authFixture{
		users:    users,
		store:    store,
		manager:  manager,
		provider: provider,
		handler:  AuthHandler{Users: users, Sessions: manager, Session: provider},
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type stubFeed struct {
	posts []models.Post
	err   error

	gotActor  *models.Profile
	gotPostID string
	gotBody   string
	gotImage  string
	gotText   string
}

func (f *stubFeed) ListPosts(context.Context) ([]models.Post, error) {
	return f.posts, f.err
}

func (f *stubFeed) CreatePost(_ context.Context, author *models.Profile, body, imageURL string) ([]models.Post, error) {
	f.gotActor, f.gotBody, f.gotImage = author, body, imageURL
	return f.posts, f.err
}

func (f *stubFeed) ToggleLike(_ context.Context, postID string, actor *models.Profile) ([]models.Post, error) {
	f.gotActor, f.gotPostID = actor, postID
	return f.posts, f.err
}

func (f *stubFeed) AddComment(_ context.Context, postID string, actor *models.Profile, text string) ([]models.Post, error) {
	f.gotActor, f.gotPostID, f.gotText = actor, postID, text
	return f.posts, f.err
}

type stubSocial struct {
	err      error
	overview social.Overview
	view     social.ProfileView
	results  []models.Profile
	updated  models.Profile

	gotActor    *models.Profile
	gotTarget   string
	gotAccepted *bool
	gotViewer   string
	gotQuery    string
	gotLimit    int
	gotUpdate   social.ProfileUpdate
}

func (s *stubSocial) SendRequest(_ context.Context, actor *models.Profile, targetID string) (models.FriendRequest, error) {
	s.gotActor, s.gotTarget = actor, targetID
	if s.err != nil {
		return models.FriendRequest{}, s.err
	}
	return models.FriendRequest{ID: "req-1", RequesterID: actor.UserID, RecipientID: targetID, Status: models.FriendRequestPending}, nil
}

func (s *stubSocial) AcceptRequest(_ context.Context, actor *models.Profile, requesterID string) error {
	accepted := true
	s.gotActor, s.gotTarget, s.gotAccepted = actor, requesterID, &accepted
	return s.err
}

func (s *stubSocial) RejectRequest(_ context.Context, actor *models.Profile, requesterID string) error {
	accepted := false
	s.gotActor, s.gotTarget, s.gotAccepted = actor, requesterID, &accepted
	return s.err
}

func (s *stubSocial) Overview(_ context.Context, userID string) (social.Overview, error) {
	s.gotViewer = userID
	return s.overview, s.err
}

func (s *stubSocial) ProfileView(_ context.Context, viewerID, userID string) (social.ProfileView, error) {
	s.gotViewer, s.gotTarget = viewerID, userID
	return s.view, s.err
}

func (s *stubSocial) Search(_ context.Context, query string, limit int) ([]models.Profile, error) {
	s.gotQuery, s.gotLimit = query, limit
	return s.results, s.err
}

func (s *stubSocial) UpdateProfile(_ context.Context, actor *models.Profile, update social.ProfileUpdate) (models.Profile, error) {
	s.gotActor, s.gotUpdate = actor, update
	return s.updated, s.err
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(body)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	decodeBody(t, rec, &resp)
	return resp["error"]
}

func withActor(req *http.Request, profile *models.Profile) *http.Request {
	return req.WithContext(session.WithProfile(req.Context(), profile))
}
