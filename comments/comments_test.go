package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store/memory"
)

type fixture struct {
	svc    CommentService
	store  *memory.Store
	clock  *clock.StubClock
	author *models.User
	post   *models.Post
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	clk := clock.NewStubClock()
	author, err := st.InsertUser(ctx, &models.User{Username: gofakeit.Username(), Email: "c@example.com"})
	require.NoError(t, err)
	post, err := st.InsertPost(ctx, &models.Post{Title: "Hello", AuthorID: author.ID, Approval: models.ApprovalApproved})
	require.NoError(t, err)
	return &fixture{svc: NewCommentService(st, clk), store: st, clock: clk, author: author, post: post}
}

func TestAddCommentAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.AddComment(ctx, f.author.ID, NewCommentRequest{PostID: f.post.ID, Content: "  first  "})
	require.NoError(t, err)
	require.Equal(t, "first", first.Content)
	require.Equal(t, f.author.ID, first.AuthorID)
	require.Equal(t, f.author.Username, first.Author.Username)

	f.clock.Advance(time.Second)
	second, err := f.svc.AddComment(ctx, f.author.ID, NewCommentRequest{PostID: f.post.ID, Content: gofakeit.Paragraph(1, 4, 10, " ")})
	require.NoError(t, err)

	list, err := f.svc.ListForPost(ctx, f.post.ID, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)

	none, err := f.svc.ListForPost(ctx, "other", "")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAddCommentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddComment(ctx, f.author.ID, NewCommentRequest{PostID: "missing", Content: "hi"})
	require.True(t, apperror.IsNotFound(err))

	_, err = f.svc.AddComment(ctx, f.author.ID, NewCommentRequest{PostID: f.post.ID, Content: " \n "})
	require.True(t, apperror.IsValidationError(err))

	_, err = f.svc.AddComment(ctx, f.author.ID, NewCommentRequest{PostID: f.post.ID, Content: strings.Repeat("é", MaxCommentLength)})
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, f.author.ID, NewCommentRequest{PostID: f.post.ID, Content: strings.Repeat("a", MaxCommentLength+1)})
	require.True(t, apperror.IsValidationError(err))
}

func TestCommentsOnHiddenPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger, err := f.store.InsertUser(ctx, &models.User{Username: gofakeit.Username(), Email: "s@example.com"})
	require.NoError(t, err)
	admin, err := f.store.InsertUser(ctx, &models.User{Username: gofakeit.Username(), Email: "a@example.com", IsAdmin: true})
	require.NoError(t, err)

	for _, approval := range []models.ApprovalState{models.ApprovalPending, models.ApprovalRejected} {
		hidden, err := f.store.InsertPost(ctx, &models.Post{Title: "Hidden", AuthorID: f.author.ID, Approval: approval})
		require.NoError(t, err)

		_, err = f.svc.AddComment(ctx, stranger.ID, NewCommentRequest{PostID: hidden.ID, Content: "hi"})
		require.True(t, apperror.IsNotFound(err), "stranger comments on a %s post", approval)

		_, err = f.svc.AddComment(ctx, f.author.ID, NewCommentRequest{PostID: hidden.ID, Content: "mine"})
		require.NoError(t, err)
		_, err = f.svc.AddComment(ctx, admin.ID, NewCommentRequest{PostID: hidden.ID, Content: "review"})
		require.NoError(t, err)

		for _, viewerID := range []string{"", stranger.ID, "unknown-user"} {
			list, err := f.svc.ListForPost(ctx, hidden.ID, viewerID)
			require.NoError(t, err)
			require.Empty(t, list, "viewer %q lists a %s post", viewerID, approval)
		}
		for _, viewerID := range []string{f.author.ID, admin.ID} {
			list, err := f.svc.ListForPost(ctx, hidden.ID, viewerID)
			require.NoError(t, err)
			require.Len(t, list, 2)
		}
	}
}

func TestCommentRoutes(t *testing.T) {
	f := newFixture(t)
	h := NewCommentHandler(f.svc)
	fakeAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.NewContextWithUserID(r.Context(), f.author.ID)))
		})
	}
	optionalAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				r = r.WithContext(auth.NewContextWithUserID(r.Context(), f.author.ID))
			}
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	r.Route("/comments", func(r chi.Router) { h.RegisterRoutes(r, fakeAuth, optionalAuth) })

	body := `{"postId":"` + f.post.ID + `","content":"nice"}`
	req := httptest.NewRequest(http.MethodPost, "/comments", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// An author field in the body is rejected rather than trusted.
	req = httptest.NewRequest(http.MethodPost, "/comments", bytes.NewBufferString(`{"postId":"`+f.post.ID+`","content":"x","author":"someone"}`))
	req.Header.Set("Authorization", "Bearer t")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/comments", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer t")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/comments", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "postId")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/comments?postId="+f.post.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []struct {
		Content  string `json:"content"`
		AuthorID string `json:"author_id"`
		Author   struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "nice", list[0].Content)
	require.Equal(t, f.author.ID, list[0].AuthorID)
	require.Equal(t, f.author.Username, list[0].Author.Username)
}
