package posts

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/moderation"
	"github.com/user/blog-go/store/memory"
)

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []moderation.Event
}

func (p *recordingPublisher) Publish(e moderation.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []moderation.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]moderation.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *PostService
	store     *memory.Store
	publisher *recordingPublisher
	clock     *clock.StubClock
	author    *models.User
	admin     *models.User
	category  *models.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	pub := &recordingPublisher{}
	clk := clock.NewStubClock()

	author, err := st.InsertUser(ctx, &models.User{Username: gofakeit.Username(), Email: "author@example.com", CreatedAt: clk.Now()})
	require.NoError(t, err)
	admin, err := st.InsertUser(ctx, &models.User{Username: gofakeit.Username(), Email: "admin@example.com", IsAdmin: true, CreatedAt: clk.Now()})
	require.NoError(t, err)
	category, err := st.InsertCategory(ctx, &models.Category{Name: "Engineering"})
	require.NoError(t, err)

	return &fixture{
		svc:       NewPostService(st, pub, clk),
		store:     st,
		publisher: pub,
		clock:     clk,
		author:    author,
		admin:     admin,
		category:  category,
	}
}

func (f *fixture) create(t *testing.T, title string) *models.Post {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), f.author.ID, CreatePostRequest{
		Title:      title,
		Content:    gofakeit.Paragraph(1, 4, 10, " "),
		CategoryID: f.category.ID,
		Tags:       []string{"go", " testing "},
	})
	require.NoError(t, err)
	return p
}

func ids(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestCreatePostDefaults(t *testing.T) {
	f := newFixture(t)

	p := f.create(t, "  Hello  ")
	require.NotEmpty(t, p.ID)
	require.Equal(t, "Hello", p.Title)
	require.Equal(t, models.StatusDraft, p.Status)
	require.Equal(t, models.ApprovalPending, p.Approval)
	require.Equal(t, f.author.ID, p.AuthorID)
	require.Equal(t, []string{"go", "testing"}, p.Tags)
	require.True(t, p.PublishDate.Equal(f.clock.Now()))
	require.Equal(t, []moderation.EventType{moderation.PostCreated}, f.publisher.types())
}

func TestCreatePostKeepsExplicitStatusAndDate(t *testing.T) {
	f := newFixture(t)
	when := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	p, err := f.svc.CreatePost(context.Background(), f.author.ID, CreatePostRequest{
		Title:       "Scheduled",
		Content:     "body",
		CategoryID:  f.category.ID,
		Status:      models.StatusPublished,
		PublishDate: &when,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPublished, p.Status)
	require.Equal(t, models.ApprovalPending, p.Approval)
	require.True(t, p.PublishDate.Equal(when))
}

func TestCreatePostRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, f.author.ID, CreatePostRequest{Title: "x", Content: "y", CategoryID: "missing"})
	require.True(t, apperror.IsValidationError(err))
	appErr, ok := apperror.FromError(err)
	require.True(t, ok)
	require.Equal(t, "category_id", appErr.Fields[0].Field)

	_, err = f.svc.CreatePost(ctx, "ghost", CreatePostRequest{Title: "x", Content: "y", CategoryID: f.category.ID})
	require.True(t, apperror.IsUnauthorizedError(err))

	posts, err := f.svc.ListForAdmin(ctx)
	require.NoError(t, err)
	require.Empty(t, posts)
	require.Empty(t, f.publisher.types())
}

func TestModerationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "Lifecycle")

	public, err := f.svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Empty(t, public)

	approved, err := f.svc.Approve(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, approved.Approval)
	require.Equal(t, p.Content, approved.Content)

	public, err = f.svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{p.ID}, ids(public))

	f.clock.Advance(time.Minute)
	edited, err := f.svc.EditPost(ctx, p.ID, f.author.ID, UpdatePostRequest{Title: models.Ptr("Lifecycle, revised")})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalPending, edited.Approval)
	require.Equal(t, "Lifecycle, revised", edited.Title)
	require.Equal(t, p.Content, edited.Content)
	require.True(t, edited.UpdatedAt.After(p.UpdatedAt))

	public, err = f.svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Empty(t, public)

	rejected, err := f.svc.Reject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalRejected, rejected.Approval)

	// Rejection is not final.
	approved, err = f.svc.Approve(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, approved.Approval)
	_, err = f.svc.Approve(ctx, p.ID)
	require.NoError(t, err)

	require.Equal(t, []moderation.EventType{
		moderation.PostCreated,
		moderation.PostApproved,
		moderation.PostUpdated,
		moderation.PostRejected,
		moderation.PostApproved,
		moderation.PostApproved,
	}, f.publisher.types())
}

func TestEditRejectedPostGoesBackToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "Rejected")
	_, err := f.svc.Reject(ctx, p.ID)
	require.NoError(t, err)

	edited, err := f.svc.EditPost(ctx, p.ID, f.author.ID, UpdatePostRequest{Content: models.Ptr("better content")})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalPending, edited.Approval)
}

func TestEditWithEmptyPatchStillResetsApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "Untouched")
	_, err := f.svc.Approve(ctx, p.ID)
	require.NoError(t, err)

	edited, err := f.svc.EditPost(ctx, p.ID, f.admin.ID, UpdatePostRequest{})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalPending, edited.Approval)
	require.Equal(t, p.Title, edited.Title)
}

func TestEditValidatesCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "Category")

	_, err := f.svc.EditPost(ctx, p.ID, f.author.ID, UpdatePostRequest{CategoryID: models.Ptr("nope")})
	require.True(t, apperror.IsValidationError(err))

	other, err := f.store.InsertCategory(ctx, &models.Category{Name: "Design"})
	require.NoError(t, err)
	edited, err := f.svc.EditPost(ctx, p.ID, f.author.ID, UpdatePostRequest{CategoryID: &other.ID})
	require.NoError(t, err)
	require.Equal(t, other.ID, edited.CategoryID)
}

func TestUnknownPostIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, "missing")
	require.True(t, apperror.IsNotFound(err))
	_, err = f.svc.Reject(ctx, "missing")
	require.True(t, apperror.IsNotFound(err))
	_, err = f.svc.EditPost(ctx, "missing", f.author.ID, UpdatePostRequest{})
	require.True(t, apperror.IsNotFound(err))
	require.True(t, apperror.IsNotFound(f.svc.DeletePost(ctx, "missing")))
	_, err = f.svc.GetPost(ctx, "missing", Viewer{IsAdmin: true})
	require.True(t, apperror.IsNotFound(err))
}

func TestDeletePostRemovesComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "Doomed")
	_, err := f.store.InsertComment(ctx, &models.Comment{PostID: p.ID, AuthorID: f.author.ID, Content: "first"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePost(ctx, p.ID))

	_, err = f.svc.FindPost(ctx, p.ID)
	require.True(t, apperror.IsNotFound(err))
	comments, err := f.store.FindCommentsByPost(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, comments)
	require.Equal(t, moderation.PostDeleted, f.publisher.types()[1])
}

func TestListPublicReturnsOnlyApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := map[string]bool{}
	for i := 0; i < 30; i++ {
		p := f.create(t, fmt.Sprintf("%s %d", gofakeit.Username(), i))
		switch gofakeit.Number(0, 2) {
		case 0:
			_, err := f.svc.Approve(ctx, p.ID)
			require.NoError(t, err)
			want[p.ID] = true
		case 1:
			_, err := f.svc.Reject(ctx, p.ID)
			require.NoError(t, err)
		}
		f.clock.Advance(time.Second)
	}

	public, err := f.svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, public, len(want))
	for i, p := range public {
		require.Equal(t, models.ApprovalApproved, p.Approval)
		require.True(t, want[p.ID])
		if i > 0 {
			require.False(t, p.CreatedAt.After(public[i-1].CreatedAt), "newest first")
		}
	}

	all, err := f.svc.ListForAdmin(ctx)
	require.NoError(t, err)
	require.Len(t, all, 30)
}

func TestApprovedDraftIsListedPublicly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "Draft")
	require.Equal(t, models.StatusDraft, p.Status)
	_, err := f.svc.Approve(ctx, p.ID)
	require.NoError(t, err)

	public, err := f.svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{p.ID}, ids(public))
}

func TestListByCategoryAndAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved := f.create(t, "Approved")
	_, err := f.svc.Approve(ctx, approved.ID)
	require.NoError(t, err)
	pending := f.create(t, "Pending")

	byCategory, err := f.svc.ListByCategory(ctx, f.category.ID)
	require.NoError(t, err)
	require.Equal(t, []string{approved.ID}, ids(byCategory))

	stranger, err := f.svc.ListByAuthor(ctx, f.author.ID, Viewer{UserID: "someone-else"})
	require.NoError(t, err)
	require.Equal(t, []string{approved.ID}, ids(stranger))

	own, err := f.svc.ListByAuthor(ctx, f.author.ID, Viewer{UserID: f.author.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{approved.ID, pending.ID}, ids(own))

	asAdmin, err := f.svc.ListByAuthor(ctx, f.author.ID, Viewer{UserID: f.admin.ID, IsAdmin: true})
	require.NoError(t, err)
	require.Len(t, asAdmin, 2)
}

func TestGetPostHidesUnapprovedFromOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "Hidden")

	_, err := f.svc.GetPost(ctx, p.ID, Viewer{})
	require.True(t, apperror.IsNotFound(err))
	_, err = f.svc.GetPost(ctx, p.ID, Viewer{UserID: "stranger"})
	require.True(t, apperror.IsNotFound(err))

	got, err := f.svc.GetPost(ctx, p.ID, Viewer{UserID: f.author.ID})
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	_, err = f.svc.GetPost(ctx, p.ID, Viewer{UserID: f.admin.ID, IsAdmin: true})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.svc.GetPost(ctx, p.ID, Viewer{})
	require.NoError(t, err)
}

func TestConcurrentEditsLeavePostPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "Contended")
	_, err := f.svc.Approve(ctx, p.ID)
	require.NoError(t, err)

	const editors = 16
	titles := map[string]bool{}
	errs := make([]error, editors)
	var wg sync.WaitGroup
	for i := 0; i < editors; i++ {
		title := fmt.Sprintf("title %d", i)
		titles[title] = true
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.EditPost(ctx, p.ID, f.author.ID, UpdatePostRequest{Title: &title})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.FindPost(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalPending, got.Approval)
	require.True(t, titles[got.Title])
}

func TestPresentResolvesAuthorAndCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "One")
	b := f.create(t, "Two")
	orphan, err := f.store.InsertPost(ctx, &models.Post{Title: "Orphan", AuthorID: "gone", CategoryID: "gone"})
	require.NoError(t, err)

	views, err := f.svc.Present(ctx, a, b, orphan)
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views[:2] {
		require.Equal(t, f.author.ID, v.Author.ID)
		require.Equal(t, f.author.Username, v.Author.Username)
		require.Equal(t, f.category.Name, v.Category.Name)
	}
	require.Nil(t, views[2].Author)
	require.Nil(t, views[2].Category)
}

func TestViewerRules(t *testing.T) {
	post := &models.Post{AuthorID: "author", Approval: models.ApprovalPending}

	require.False(t, Viewer{}.CanSee(post))
	require.False(t, Viewer{}.CanModify(post))
	require.True(t, Viewer{UserID: "author"}.CanSee(post))
	require.True(t, Viewer{UserID: "author"}.CanModify(post))
	require.False(t, Viewer{UserID: "other"}.CanModify(post))
	require.True(t, Viewer{UserID: "admin", IsAdmin: true}.CanModify(post))

	post.Approval = models.ApprovalApproved
	require.True(t, Viewer{}.CanSee(post))
	require.False(t, Viewer{UserID: "other"}.CanModify(post))
}
