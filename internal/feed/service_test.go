package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
)

type memoryPosts struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	posts    map[string]*models.Post
	writes   int

	// toggleErr, when set, is returned by the next ToggleLike after applying the toggle.
	toggleErr error
}

func newMemoryPosts(profiles ...models.Profile) *memoryPosts {
	m := &memoryPosts{profiles: make(map[string]models.Profile), posts: make(map[string]*models.Post)}
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return m
}

func (m *memoryPosts) Create(_ context.Context, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	post.Likes = nil
	post.Comments = nil
	m.posts[post.ID] = &post
	return nil
}

func (m *memoryPosts) ListAll(context.Context) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		cp := *p
		author := m.profiles[p.AuthorID]
		cp.AuthorName, cp.AuthorImage = author.Name, author.ImageURL
		cp.Likes = make([]models.Like, 0, len(p.Likes))
		for _, l := range p.Likes {
			cp.Likes = append(cp.Likes, models.Like{UserID: l.UserID, UserName: m.profiles[l.UserID].Name})
		}
		cp.Comments = append([]models.Comment(nil), p.Comments...)
		for i := range cp.Comments {
			commenter := m.profiles[cp.Comments[i].UserID]
			cp.Comments[i].UserName, cp.Comments[i].UserImage = commenter.Name, commenter.ImageURL
		}
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryPosts) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	post, ok := m.posts[postID]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if err := m.toggleErr; err != nil {
		m.toggleErr = nil
		post.Likes = append(post.Likes, models.Like{UserID: userID})
		return false, err
	}
	for i, l := range post.Likes {
		if l.UserID == userID {
			post.Likes = append(post.Likes[:i], post.Likes[i+1:]...)
			return false, nil
		}
	}
	post.Likes = append(post.Likes, models.Like{UserID: userID})
	return true, nil
}

func (m *memoryPosts) AddComment(_ context.Context, comment models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	post, ok := m.posts[comment.PostID]
	if !ok {
		return repositories.ErrNotFound
	}
	post.Comments = append(post.Comments, comment)
	return nil
}

func (m *memoryPosts) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func newTestService(store *memoryPosts) *Service {
	svc := NewService(store)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	var seq int
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	return svc
}

var (
	alice = models.Profile{UserID: "alice", Name: "Alice", ImageURL: "https://img.example/alice.png"}
	bob   = models.Profile{UserID: "bob", Name: "Bob"}
)

func TestListPostsEmpty(t *testing.T) {
	svc := newTestService(newMemoryPosts())
	posts, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Fatalf("expected empty non-nil feed got %#v", posts)
	}
}

func TestCreatePostPlacesNewestFirst(t *testing.T) {
	store := newMemoryPosts(alice, bob)
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.CreatePost(ctx, &alice, "first", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	posts, err := svc.CreatePost(ctx, &bob, "", "https://img.example/photo.png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("expected 2 posts got %d", len(posts))
	}
	if posts[0].AuthorID != "bob" || posts[1].AuthorID != "alice" {
		t.Fatalf("expected newest post first got %+v", posts)
	}
	if posts[0].AuthorName != "Bob" || posts[0].AuthorImage != models.DefaultProfileImage {
		t.Fatalf("expected author defaults applied got %+v", posts[0])
	}
	if len(posts[0].Likes) != 0 || len(posts[0].Comments) != 0 {
		t.Fatalf("expected empty engagement on new post got %+v", posts[0])
	}
}

func TestCreatePostValidation(t *testing.T) {
	store := newMemoryPosts(alice)
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.CreatePost(ctx, nil, "hello", ""); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated got %v", err)
	}
	if _, err := svc.CreatePost(ctx, &alice, "", ""); !errors.Is(err, ErrEmptyPost) {
		t.Fatalf("expected empty post got %v", err)
	}
	if _, err := svc.CreatePost(ctx, &alice, "   \n\t", ""); !errors.Is(err, ErrEmptyPost) {
		t.Fatalf("expected whitespace post to be rejected got %v", err)
	}
	if store.writeCount() != 0 {
		t.Fatalf("expected no writes for rejected posts got %d", store.writeCount())
	}
}

func TestToggleLikeRoundTrip(t *testing.T) {
	store := newMemoryPosts(alice, bob)
	svc := newTestService(store)
	ctx := context.Background()

	posts, err := svc.CreatePost(ctx, &alice, "like me", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	postID := posts[0].ID

	posts, err = svc.ToggleLike(ctx, postID, &bob)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !posts[0].LikedBy("bob") || len(posts[0].Likes) != 1 || posts[0].Likes[0].UserName != "Bob" {
		t.Fatalf("expected bob's like got %+v", posts[0].Likes)
	}

	store.profiles["bob"] = models.Profile{UserID: "bob", Name: "Robert"}
	posts, err = svc.ToggleLike(ctx, postID, &bob)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if len(posts[0].Likes) != 0 {
		t.Fatalf("expected likes to return to empty after rename got %+v", posts[0].Likes)
	}
}

func TestToggleLikeConcurrentDuplicate(t *testing.T) {
	store := newMemoryPosts(alice, bob)
	svc := newTestService(store)
	ctx := context.Background()

	posts, err := svc.CreatePost(ctx, &alice, "like me twice", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.mu.Lock()
	store.toggleErr = repositories.ErrConflict
	store.mu.Unlock()

	posts, err = svc.ToggleLike(ctx, posts[0].ID, &bob)
	if err != nil {
		t.Fatalf("expected a racing duplicate like to be treated as liked, got %v", err)
	}
	if !posts[0].LikedBy("bob") || len(posts[0].Likes) != 1 {
		t.Fatalf("expected bob's single like in the refreshed feed got %+v", posts[0].Likes)
	}
}

func TestToggleLikeValidation(t *testing.T) {
	store := newMemoryPosts(alice)
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.ToggleLike(ctx, "id-001", nil); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated got %v", err)
	}
	if _, err := svc.ToggleLike(ctx, "missing", &alice); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected post not found got %v", err)
	}
}

func TestAddCommentAppends(t *testing.T) {
	store := newMemoryPosts(alice, bob)
	svc := newTestService(store)
	ctx := context.Background()

	posts, err := svc.CreatePost(ctx, &alice, "talk to me", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	postID := posts[0].ID

	for i, text := range []string{"first", "  second  ", "third"} {
		posts, err = svc.AddComment(ctx, postID, &bob, text)
		if err != nil {
			t.Fatalf("comment %d: %v", i, err)
		}
		if len(posts[0].Comments) != i+1 {
			t.Fatalf("expected %d comments got %d", i+1, len(posts[0].Comments))
		}
	}

	comments := posts[0].Comments
	if comments[0].Text != "first" || comments[1].Text != "second" || comments[2].Text != "third" {
		t.Fatalf("expected chronological trimmed comments got %+v", comments)
	}
	if latest := posts[0].LatestComment(); latest == nil || latest.Text != "third" {
		t.Fatalf("expected latest comment third got %+v", latest)
	}
	if comments[0].UserName != "Bob" || comments[0].UserImage != models.DefaultProfileImage {
		t.Fatalf("expected commenter display defaults got %+v", comments[0])
	}
}

func TestAddCommentValidation(t *testing.T) {
	store := newMemoryPosts(alice)
	svc := newTestService(store)
	ctx := context.Background()

	posts, err := svc.CreatePost(ctx, &alice, "post", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	writes := store.writeCount()

	if _, err := svc.AddComment(ctx, posts[0].ID, nil, "hi"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated got %v", err)
	}
	if _, err := svc.AddComment(ctx, posts[0].ID, &alice, ""); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected empty comment got %v", err)
	}
	if _, err := svc.AddComment(ctx, posts[0].ID, &alice, "   "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected whitespace comment to be rejected got %v", err)
	}
	if store.writeCount() != writes {
		t.Fatalf("expected no writes for rejected comments")
	}
	if _, err := svc.AddComment(ctx, "missing", &alice, "hi"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected post not found got %v", err)
	}
}

func TestListPostsUnknownAuthor(t *testing.T) {
	store := newMemoryPosts()
	svc := newTestService(store)
	ghost := models.Profile{UserID: "ghost"}

	posts, err := svc.CreatePost(context.Background(), &ghost, "boo", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if posts[0].AuthorName != models.UnknownAuthor {
		t.Fatalf("expected unknown author got %q", posts[0].AuthorName)
	}
}
