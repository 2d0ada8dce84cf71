// Package postgres implements store.Store on top of a pgx connection pool.
// The schema lives in the top-level `migrations` directory and is applied by `db.RunMigrations`.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	// `pgx.ErrNoRows` is returned by QueryRow(...).Scan when nothing matched.
	"github.com/jackc/pgx/v5"
	// `pgconn.PgError` carries the SQLSTATE code used to detect unique violations.
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

// uniqueViolation is the SQLSTATE for "duplicate key value violates unique constraint".
const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an already connected pool. The pool is owned by the store and closed by Close.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}

// mapError translates driver errors into the store sentinels so services never see pgx types.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

// --- users ---

const userColumns = `id, username, email, password, avatar, cover_image, is_admin,
	reset_token_hash, reset_token_expires_at, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.Avatar, &u.CoverImage, &u.IsAdmin,
		&u.ResetTokenHash, &u.ResetTokenExpiresAt, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if u.ResetTokenExpiresAt != nil {
		u.ResetTokenExpiresAt = models.Ptr(u.ResetTokenExpiresAt.UTC())
	}
	return &u, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	// Emails are compared case-insensitively everywhere, so they are stored lower-cased.
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password, avatar, cover_image, is_admin,
			reset_token_hash, reset_token_expires_at, created_at)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+userColumns,
		uuid.NewString(), user.Username, user.Email, user.HashedPassword, user.Avatar, user.CoverImage,
		user.IsAdmin, user.ResetTokenHash, user.ResetTokenExpiresAt, user.CreatedAt,
	)
	return scanUser(row)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email))
}

func (s *Store) FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2`,
		tokenHash, now,
	))
}

// UpdateUser builds a single UPDATE from the non-nil patch fields so the whole patch
// is applied atomically by the database.
func (s *Store) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.HashedPassword != nil {
		add("password", *patch.HashedPassword)
	}
	if patch.Avatar != nil {
		add("avatar", *patch.Avatar)
	}
	if patch.CoverImage != nil {
		add("cover_image", *patch.CoverImage)
	}
	if patch.IsAdmin != nil {
		add("is_admin", *patch.IsAdmin)
	}
	if patch.ClearResetToken {
		sets = append(sets, "reset_token_hash = NULL", "reset_token_expires_at = NULL")
	} else {
		if patch.ResetTokenHash != nil {
			add("reset_token_hash", *patch.ResetTokenHash)
		}
		if patch.ResetTokenExpiresAt != nil {
			add("reset_token_expires_at", *patch.ResetTokenExpiresAt)
		}
	}

	if len(sets) == 0 {
		return s.FindUserByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	return scanUser(s.db.QueryRow(ctx, query, args...))
}

func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, mapError(rows.Err())
}

func (s *Store) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= $1`, now)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// --- posts ---

const postColumns = `id, title, content, excerpt, tags, category_id, author_id, featured_image,
	status, approval, publish_date, created_at, updated_at`

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	var status, approval string
	err := row.Scan(
		&p.ID, &p.Title, &p.Content, &p.Excerpt, &p.Tags, &p.CategoryID, &p.AuthorID, &p.FeaturedImage,
		&status, &approval, &p.PublishDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	p.Status = models.PostStatus(status)
	p.Approval = models.ApprovalState(approval)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.PublishDate = p.PublishDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) InsertPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO posts (id, title, content, excerpt, tags, category_id, author_id, featured_image,
			status, approval, publish_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+postColumns,
		uuid.NewString(), post.Title, post.Content, post.Excerpt, tags, post.CategoryID, post.AuthorID,
		post.FeaturedImage, string(post.Status), string(post.Approval), post.PublishDate, post.CreatedAt,
		post.UpdatedAt,
	)
	return scanPost(row)
}

func (s *Store) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	return scanPost(s.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.Excerpt != nil {
		add("excerpt", *patch.Excerpt)
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		add("tags", tags)
	}
	if patch.CategoryID != nil {
		add("category_id", *patch.CategoryID)
	}
	if patch.FeaturedImage != nil {
		add("featured_image", *patch.FeaturedImage)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Approval != nil {
		add("approval", string(*patch.Approval))
	}
	if patch.UpdatedAt != nil {
		add("updated_at", *patch.UpdatedAt)
	}

	if len(sets) == 0 {
		return s.FindPostByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), postColumns)
	return scanPost(s.db.QueryRow(ctx, query, args...))
}

// DeletePost removes the post; its comments go with it through ON DELETE CASCADE.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindPosts(ctx context.Context, filter store.PostFilter) ([]*models.Post, error) {
	var conditions []string
	var args []any
	if filter.Approval != nil {
		args = append(args, string(*filter.Approval))
		conditions = append(conditions, fmt.Sprintf("approval = $%d", len(args)))
	}
	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, mapError(rows.Err())
}

// --- categories & tags ---

func (s *Store) InsertCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRow(ctx, `
		INSERT INTO categories (id, name, image) VALUES ($1, $2, $3)
		RETURNING id, name, image`,
		uuid.NewString(), category.Name, category.Image,
	).Scan(&c.ID, &c.Name, &c.Image)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (s *Store) FindCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRow(ctx, `SELECT id, name, image FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Image)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, image FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	// `pgx.CollectRows` drains and closes the rows for us.
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Category, error) {
		var c models.Category
		err := row.Scan(&c.ID, &c.Name, &c.Image)
		return &c, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	return categories, nil
}

func (s *Store) InsertTag(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	var t models.Tag
	err := s.db.QueryRow(ctx, `INSERT INTO tags (id, name) VALUES ($1, $2) RETURNING id, name`,
		uuid.NewString(), tag.Name,
	).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (s *Store) ListTags(ctx context.Context) ([]*models.Tag, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Tag, error) {
		var t models.Tag
		err := row.Scan(&t.ID, &t.Name)
		return &t, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	return tags, nil
}

// --- comments ---

func (s *Store) InsertComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	var c models.Comment
	err := s.db.QueryRow(ctx, `
		INSERT INTO comments (id, post_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, post_id, author_id, content, created_at`,
		uuid.NewString(), comment.PostID, comment.AuthorID, comment.Content, comment.CreatedAt,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) FindCommentsByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, author_id, content, created_at FROM comments
		WHERE post_id = $1 ORDER BY created_at DESC, id DESC`, postID)
	if err != nil {
		return nil, mapError(err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Comment, error) {
		var c models.Comment
		err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt)
		c.CreatedAt = c.CreatedAt.UTC()
		return &c, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}
