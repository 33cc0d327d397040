//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool
	code := m.Run()

	pool.Close()
	server.Stop()
	os.Exit(code)
}

func TestIntegrationRegisterAndSettings(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	profiles := NewPostgresProfileRepository(testPool)

	alice := createTestUser(t, users, "alice@example.com", "Alice")
	dup := models.User{ID: uuid.NewString(), Email: alice.Email, Password: "hash", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := users.Register(ctx, dup, models.Profile{Name: "Dup", Email: dup.Email}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	settings := models.ProfileSettings{Name: "Alice B", Email: "alice.b@example.com", ImageURL: "https://img.example/a.png", UpdatedAt: time.Now().UTC()}
	if err := profiles.UpdateSettings(ctx, alice.ID, settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	user, err := users.FindByEmail(ctx, "alice.b@example.com")
	if err != nil {
		t.Fatalf("find by updated email: %v", err)
	}
	if user.Password != "password-hash" {
		t.Fatalf("expected password hash untouched, got %q", user.Password)
	}

	matches, err := profiles.Search(ctx, "ali", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Alice B" {
		t.Fatalf("unexpected search results %+v", matches)
	}
}

func TestIntegrationFriendLifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	profiles := NewPostgresProfileRepository(testPool)
	friends := NewPostgresFriendRepository(testPool)

	x := createTestUser(t, users, "x@example.com", "Xavier")
	r := createTestUser(t, users, "r@example.com", "Rita")
	s := createTestUser(t, users, "s@example.com", "Sam")

	send := func(from, to models.User) error {
		return friends.CreateRequest(ctx, models.FriendRequest{
			ID:          uuid.NewString(),
			RequesterID: from.ID,
			RecipientID: to.ID,
			Status:      models.FriendRequestPending,
			CreatedAt:   time.Now().UTC(),
		})
	}

	if err := send(r, x); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if err := send(r, x); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate pending request, got %v", err)
	}
	if err := send(s, x); err != nil {
		t.Fatalf("send second request: %v", err)
	}
	if err := send(x, r); err != nil {
		t.Fatalf("send crossed request: %v", err)
	}

	if err := friends.Accept(ctx, x.ID, r.ID, time.Now().UTC()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := friends.Reject(ctx, x.ID, s.ID, time.Now().UTC()); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := friends.Accept(ctx, x.ID, s.ID, time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound accepting a rejected request, got %v", err)
	}

	profile, err := profiles.Find(ctx, x.ID)
	if err != nil {
		t.Fatalf("find profile: %v", err)
	}
	if len(profile.FriendRequests) != 0 {
		t.Fatalf("expected no pending requests, got %+v", profile.FriendRequests)
	}
	if !profile.HasFriend(r.ID) || profile.HasFriend(s.ID) {
		t.Fatalf("unexpected friends %+v", profile.Friends)
	}

	linked, err := friends.AreFriends(ctx, r.ID, x.ID)
	if err != nil {
		t.Fatalf("are friends: %v", err)
	}
	if !linked {
		t.Fatal("expected reverse friendship link")
	}

	reverse, err := profiles.Find(ctx, r.ID)
	if err != nil {
		t.Fatalf("find requester profile: %v", err)
	}
	if len(reverse.FriendRequests) != 0 {
		t.Fatalf("expected crossed request to be settled, got %+v", reverse.FriendRequests)
	}

	if err := send(s, x); err != nil {
		t.Fatalf("expected resend after rejection to succeed: %v", err)
	}
}

func TestIntegrationFeed(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	posts := NewPostgresPostRepository(testPool)

	author := createTestUser(t, users, "author@example.com", "Author")
	fan := createTestUser(t, users, "fan@example.com", "Fan")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	older := models.Post{ID: uuid.NewString(), AuthorID: author.ID, Body: "older", CreatedAt: base}
	newer := models.Post{ID: uuid.NewString(), AuthorID: author.ID, ImageURL: "https://img.example/p.png", CreatedAt: base.Add(time.Minute)}
	for _, p := range []models.Post{older, newer} {
		if err := posts.Create(ctx, p); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	liked, err := posts.ToggleLike(ctx, older.ID, fan.ID)
	if err != nil || !liked {
		t.Fatalf("expected like added, got %v %v", liked, err)
	}
	for i, text := range []string{"one", "two"} {
		c := models.Comment{ID: uuid.NewString(), PostID: older.ID, UserID: fan.ID, Text: text, CreatedAt: base.Add(time.Duration(i+2) * time.Minute)}
		if err := posts.AddComment(ctx, c); err != nil {
			t.Fatalf("add comment: %v", err)
		}
	}

	feed, err := posts.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(feed) != 2 || feed[0].ID != newer.ID || feed[1].ID != older.ID {
		t.Fatalf("unexpected feed order %+v", feed)
	}
	if !feed[1].LikedBy(fan.ID) || feed[1].Likes[0].UserName != "Fan" {
		t.Fatalf("expected fan's like, got %+v", feed[1].Likes)
	}
	if len(feed[1].Comments) != 2 || feed[1].Comments[0].Text != "one" || feed[1].Comments[1].Text != "two" {
		t.Fatalf("expected ordered comments, got %+v", feed[1].Comments)
	}

	liked, err = posts.ToggleLike(ctx, older.ID, fan.ID)
	if err != nil || liked {
		t.Fatalf("expected like removed, got %v %v", liked, err)
	}
	if _, err := posts.ToggleLike(ctx, uuid.NewString(), fan.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound liking unknown post, got %v", err)
	}
}

func TestIntegrationSessionStore(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	owner := createTestUser(t, users, "owner@example.com", "Owner")

	store := NewPostgresSessionStore(testPool)
	session := auth.Session{ID: uuid.NewString(), RefreshToken: uuid.NewString(), UserID: owner.ID, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}
	loaded, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != owner.ID || loaded.ID != session.ID {
		t.Fatalf("unexpected session %+v", loaded)
	}
	if err := store.DeleteForUser(ctx, owner.ID); err != nil {
		t.Fatalf("delete for user: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), "TRUNCATE TABLE post_comments, post_likes, posts, friendships, friend_requests, sessions, profiles, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email, name string) models.User {
	t.Helper()
	now := time.Now().UTC()
	user := models.User{ID: uuid.NewString(), Email: email, Password: "password-hash", CreatedAt: now, UpdatedAt: now}
	profile := models.Profile{Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
	if err := repo.Register(context.Background(), user, profile); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}
