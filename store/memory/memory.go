// Package memory is an in-process implementation of store.Store.
// Every operation takes the store mutex, so each call is atomic with respect to the others;
// values are copied on the way in and out so callers never share memory with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

type Store struct {
	mu         sync.RWMutex
	seq        int64
	users      map[string]*models.User
	posts      map[string]*models.Post
	categories map[string]*models.Category
	tags       map[string]*models.Tag
	comments   map[string]*models.Comment
	// order records insertion order so "newest first" is stable for equal timestamps.
	order map[string]int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[string]*models.User),
		posts:      make(map[string]*models.Post),
		categories: make(map[string]*models.Category),
		tags:       make(map[string]*models.Tag),
		comments:   make(map[string]*models.Comment),
		order:      make(map[string]int64),
	}
}

func (s *Store) nextID() string {
	s.seq++
	id := uuid.NewString()
	s.order[id] = s.seq
	return id
}

func (s *Store) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

// --- users ---

func copyUser(u *models.User) *models.User {
	c := *u
	if u.ResetTokenHash != nil {
		c.ResetTokenHash = models.Ptr(*u.ResetTokenHash)
	}
	if u.ResetTokenExpiresAt != nil {
		c.ResetTokenExpiresAt = models.Ptr(*u.ResetTokenExpiresAt)
	}
	return &c
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return nil, store.ErrDuplicate
		}
	}
	c := copyUser(user)
	c.ID = s.nextID()
	s.users[c.ID] = c
	return copyUser(c), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ResetTokenHash == nil || u.ResetTokenExpiresAt == nil {
			continue
		}
		if *u.ResetTokenHash == tokenHash && u.ResetTokenExpiresAt.After(now) {
			return copyUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.HashedPassword != nil {
		u.HashedPassword = *patch.HashedPassword
	}
	if patch.Avatar != nil {
		u.Avatar = *patch.Avatar
	}
	if patch.CoverImage != nil {
		u.CoverImage = *patch.CoverImage
	}
	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
	}
	if patch.ResetTokenHash != nil {
		u.ResetTokenHash = models.Ptr(*patch.ResetTokenHash)
	}
	if patch.ResetTokenExpiresAt != nil {
		u.ResetTokenExpiresAt = models.Ptr(*patch.ResetTokenExpiresAt)
	}
	if patch.ClearResetToken {
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
	}
	return copyUser(u), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *Store) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.ResetTokenExpiresAt != nil && !u.ResetTokenExpiresAt.After(now) {
			u.ResetTokenHash = nil
			u.ResetTokenExpiresAt = nil
			n++
		}
	}
	return n, nil
}

// --- posts ---

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}

func (s *Store) InsertPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyPost(post)
	c.ID = s.nextID()
	s.posts[c.ID] = c
	return copyPost(c), nil
}

func (s *Store) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyPost(p), nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Excerpt != nil {
		p.Excerpt = *patch.Excerpt
	}
	if patch.Tags != nil {
		p.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.CategoryID != nil {
		p.CategoryID = *patch.CategoryID
	}
	if patch.FeaturedImage != nil {
		p.FeaturedImage = *patch.FeaturedImage
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Approval != nil {
		p.Approval = *patch.Approval
	}
	if patch.UpdatedAt != nil {
		p.UpdatedAt = *patch.UpdatedAt
	}
	return copyPost(p), nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.posts, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *Store) FindPosts(ctx context.Context, filter store.PostFilter) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Post{}
	for _, p := range s.posts {
		if filter.Matches(p) {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return out, nil
}

// --- categories & tags ---

func (s *Store) InsertCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Name == category.Name {
			return nil, store.ErrDuplicate
		}
	}
	c := *category
	c.ID = s.nextID()
	s.categories[c.ID] = &c
	out := c
	return &out, nil
}

func (s *Store) FindCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertTag(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tags {
		if existing.Name == tag.Name {
			return nil, store.ErrDuplicate
		}
	}
	t := *tag
	t.ID = s.nextID()
	s.tags[t.ID] = &t
	out := t
	return &out, nil
}

func (s *Store) ListTags(ctx context.Context) ([]*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		tt := *t
		out = append(out, &tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- comments ---

func (s *Store) InsertComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *comment
	c.ID = s.nextID()
	s.comments[c.ID] = &c
	out := c
	return &out, nil
}

func (s *Store) FindCommentsByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return out, nil
}
