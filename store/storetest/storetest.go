// Package storetest holds a behavioural suite every store.Store backend must pass.
// Backend packages call Run from their own tests with a factory returning an empty store.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

// Factory returns an empty store. The suite closes it when the subtest ends.
type Factory func(t *testing.T) store.Store

func getTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := map[string]func(t *testing.T, s store.Store){
		"UserLifecycle":            testUserLifecycle,
		"DuplicateEmail":           testDuplicateEmail,
		"ResetTokenLookup":         testResetTokenLookup,
		"ClearExpiredResetTokens":  testClearExpiredResetTokens,
		"PostPatchAndFilter":       testPostPatchAndFilter,
		"ConcurrentPostUpdates":    testConcurrentPostUpdates,
		"CategoriesAndTags":        testCategoriesAndTags,
		"CommentsNewestFirst":      testCommentsNewestFirst,
		"MissingIDsReturnNotFound": testMissingIDs,
	}
	for name, fn := range cases {
		fn := fn
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() {
				ctx, cancel := getTestContext()
				defer cancel()
				_ = s.Close(ctx)
			})
			fn(t, s)
		})
	}
}

func newUser() *models.User {
	return &models.User{
		Username:       gofakeit.Username(),
		Email:          gofakeit.Email(),
		HashedPassword: gofakeit.Password(true, true, true, false, false, 20),
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func newPost(authorID, categoryID string, createdAt time.Time) *models.Post {
	return &models.Post{
		Title:       gofakeit.Sentence(5),
		Content:     gofakeit.Paragraph(1, 3, 12, " "),
		Excerpt:     gofakeit.Sentence(8),
		Tags:        []string{gofakeit.Word(), gofakeit.Word()},
		CategoryID:  categoryID,
		AuthorID:    authorID,
		Status:      models.StatusDraft,
		Approval:    models.ApprovalPending,
		PublishDate: createdAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func testUserLifecycle(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	u := newUser()
	created, err := s.InsertUser(ctx, u)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, u.Email, created.Email)

	byEmail, err := s.FindUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	updated, err := s.UpdateUser(ctx, created.ID, models.UserPatch{Avatar: models.Ptr("/uploads/avatars/a.png")})
	require.NoError(t, err)
	require.Equal(t, "/uploads/avatars/a.png", updated.Avatar)
	require.Equal(t, u.HashedPassword, updated.HashedPassword)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	u := newUser()
	first, err := s.InsertUser(ctx, u)
	require.NoError(t, err)

	again := newUser()
	again.Email = u.Email
	_, err = s.InsertUser(ctx, again)
	require.ErrorIs(t, err, store.ErrDuplicate)

	stored, err := s.FindUserByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, u.Username, stored.Username)
}

func testResetTokenLookup(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	created, err := s.InsertUser(ctx, newUser())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err = s.UpdateUser(ctx, created.ID, models.UserPatch{
		ResetTokenHash:      models.Ptr("abc123"),
		ResetTokenExpiresAt: models.Ptr(now.Add(10 * time.Minute)),
	})
	require.NoError(t, err)

	found, err := s.FindUserByResetToken(ctx, "abc123", now)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = s.FindUserByResetToken(ctx, "abc123", now.Add(11*time.Minute))
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindUserByResetToken(ctx, "other", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	cleared, err := s.UpdateUser(ctx, created.ID, models.UserPatch{ClearResetToken: true})
	require.NoError(t, err)
	require.Nil(t, cleared.ResetTokenHash)
	require.Nil(t, cleared.ResetTokenExpiresAt)
	_, err = s.FindUserByResetToken(ctx, "abc123", now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testClearExpiredResetTokens(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	expired, err := s.InsertUser(ctx, newUser())
	require.NoError(t, err)
	live, err := s.InsertUser(ctx, newUser())
	require.NoError(t, err)

	_, err = s.UpdateUser(ctx, expired.ID, models.UserPatch{
		ResetTokenHash: models.Ptr("old"), ResetTokenExpiresAt: models.Ptr(now.Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = s.UpdateUser(ctx, live.ID, models.UserPatch{
		ResetTokenHash: models.Ptr("new"), ResetTokenExpiresAt: models.Ptr(now.Add(time.Minute)),
	})
	require.NoError(t, err)

	n, err := s.ClearExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	u, err := s.FindUserByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Nil(t, u.ResetTokenHash)
	u, err = s.FindUserByID(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, u.ResetTokenHash)
}

func testPostPatchAndFilter(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	author, err := s.InsertUser(ctx, newUser())
	require.NoError(t, err)
	cat, err := s.InsertCategory(ctx, &models.Category{Name: gofakeit.Noun()})
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	older, err := s.InsertPost(ctx, newPost(author.ID, cat.ID, base))
	require.NoError(t, err)
	newer, err := s.InsertPost(ctx, newPost(author.ID, cat.ID, base.Add(time.Second)))
	require.NoError(t, err)

	approved := models.ApprovalApproved
	patched, err := s.UpdatePost(ctx, older.ID, models.PostPatch{Approval: &approved})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, patched.Approval)
	require.Equal(t, older.Title, patched.Title)
	require.Equal(t, older.Tags, patched.Tags)

	public, err := s.FindPosts(ctx, store.PostFilter{Approval: &approved})
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, older.ID, public[0].ID)

	all, err := s.FindPosts(ctx, store.PostFilter{AuthorID: &author.ID, CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, newer.ID, all[0].ID, "newest first")

	require.NoError(t, s.DeletePost(ctx, newer.ID))
	_, err = s.FindPostByID(ctx, newer.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testConcurrentPostUpdates(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	author, err := s.InsertUser(ctx, newUser())
	require.NoError(t, err)
	post, err := s.InsertPost(ctx, newPost(author.ID, "", time.Now().UTC().Truncate(time.Millisecond)))
	require.NoError(t, err)

	excerpts := []string{"first excerpt", "second excerpt"}
	errs := make(chan error, len(excerpts))
	var wg sync.WaitGroup
	for _, excerpt := range excerpts {
		wg.Add(1)
		go func(excerpt string) {
			defer wg.Done()
			_, err := s.UpdatePost(ctx, post.ID, models.PostPatch{Excerpt: models.Ptr(excerpt)})
			errs <- err
		}(excerpt)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := s.FindPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.Contains(t, excerpts, final.Excerpt)
	require.Equal(t, post.Title, final.Title)
	require.Equal(t, post.Content, final.Content)
	require.Equal(t, post.Tags, final.Tags)
	require.Equal(t, post.AuthorID, final.AuthorID)
}

func testCategoriesAndTags(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	cat, err := s.InsertCategory(ctx, &models.Category{Name: "golang", Image: "/uploads/go.png"})
	require.NoError(t, err)
	_, err = s.InsertCategory(ctx, &models.Category{Name: "golang"})
	require.ErrorIs(t, err, store.ErrDuplicate)

	found, err := s.FindCategoryByID(ctx, cat.ID)
	require.NoError(t, err)
	require.Equal(t, "/uploads/go.png", found.Image)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)

	_, err = s.InsertTag(ctx, &models.Tag{Name: "concurrency"})
	require.NoError(t, err)
	_, err = s.InsertTag(ctx, &models.Tag{Name: "concurrency"})
	require.ErrorIs(t, err, store.ErrDuplicate)
	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
}

func testCommentsNewestFirst(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	author, err := s.InsertUser(ctx, newUser())
	require.NoError(t, err)
	post, err := s.InsertPost(ctx, newPost(author.ID, "", time.Now().UTC().Truncate(time.Millisecond)))
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	first, err := s.InsertComment(ctx, &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "first", CreatedAt: base})
	require.NoError(t, err)
	second, err := s.InsertComment(ctx, &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "second", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	comments, err := s.FindCommentsByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, second.ID, comments[0].ID)
	require.Equal(t, first.ID, comments[1].ID)
}

func testMissingIDs(t *testing.T, s store.Store) {
	ctx, cancel := getTestContext()
	defer cancel()

	_, err := s.FindUserByID(ctx, "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindPostByID(ctx, "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdatePost(ctx, "does-not-exist", models.PostPatch{Title: models.Ptr("x")})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.DeletePost(ctx, "does-not-exist"), store.ErrNotFound)
	_, err = s.FindCategoryByID(ctx, "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateUser(ctx, "does-not-exist", models.UserPatch{IsAdmin: models.Ptr(true)})
	require.ErrorIs(t, err, store.ErrNotFound)
}
