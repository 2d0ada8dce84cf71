// Package mongo implements store.Store on MongoDB, mirroring the document layout the
// blog originally used: one collection per entity, ObjectID primary keys and unique
// indexes on user email, category name and tag name.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

const (
	usersCollection      = "users"
	postsCollection      = "posts"
	categoriesCollection = "categories"
	tagsCollection       = "tags"
	commentsCollection   = "comments"
)

type Store struct {
	client     *mongo.Client
	users      *mongo.Collection
	posts      *mongo.Collection
	categories *mongo.Collection
	tags       *mongo.Collection
	comments   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New binds the store to database on client and makes sure the unique indexes exist.
func New(ctx context.Context, client *mongo.Client, database string) (*Store, error) {
	db := client.Database(database)
	s := &Store{
		client:     client,
		users:      db.Collection(usersCollection),
		posts:      db.Collection(postsCollection),
		categories: db.Collection(categoriesCollection),
		tags:       db.Collection(tagsCollection),
		comments:   db.Collection(commentsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "resetTokenHash", Value: 1}}}},
		{s.categories, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique}},
		{s.tags, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique}},
		{s.posts, mongo.IndexModel{Keys: bson.D{{Key: "approval", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{s.comments, mongo.IndexModel{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

// objectID parses a hex id. Ids that are not valid ObjectIDs cannot exist, so they map to ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, store.ErrNotFound
	}
	return oid, nil
}

// optionalObjectID is objectID for reference fields that may be empty.
func optionalObjectID(id string) primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

func hexOrEmpty(oid primitive.ObjectID) string {
	if oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// --- users ---

type userDocument struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Username            string             `bson:"username"`
	Email               string             `bson:"email"`
	Password            string             `bson:"password"`
	Avatar              string             `bson:"avatar"`
	CoverImage          string             `bson:"coverImage"`
	IsAdmin             bool               `bson:"isAdmin"`
	ResetTokenHash      *string            `bson:"resetTokenHash,omitempty"`
	ResetTokenExpiresAt *time.Time         `bson:"resetTokenExpiresAt,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt"`
}

func (d *userDocument) toModel() *models.User {
	u := &models.User{
		ID:             d.ID.Hex(),
		Username:       d.Username,
		Email:          d.Email,
		HashedPassword: d.Password,
		Avatar:         d.Avatar,
		CoverImage:     d.CoverImage,
		IsAdmin:        d.IsAdmin,
		ResetTokenHash: d.ResetTokenHash,
		CreatedAt:      d.CreatedAt.UTC(),
	}
	if d.ResetTokenExpiresAt != nil {
		u.ResetTokenExpiresAt = models.Ptr(d.ResetTokenExpiresAt.UTC())
	}
	return u
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	doc := userDocument{
		ID:                  primitive.NewObjectID(),
		Username:            user.Username,
		Email:               strings.ToLower(user.Email),
		Password:            user.HashedPassword,
		Avatar:              user.Avatar,
		CoverImage:          user.CoverImage,
		IsAdmin:             user.IsAdmin,
		ResetTokenHash:      user.ResetTokenHash,
		ResetTokenExpiresAt: user.ResetTokenExpiresAt,
		CreatedAt:           user.CreatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Store) FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.findUser(ctx, bson.M{
		"resetTokenHash":      tokenHash,
		"resetTokenExpiresAt": bson.M{"$gt": now},
	})
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	unset := bson.M{}
	if patch.HashedPassword != nil {
		set["password"] = *patch.HashedPassword
	}
	if patch.Avatar != nil {
		set["avatar"] = *patch.Avatar
	}
	if patch.CoverImage != nil {
		set["coverImage"] = *patch.CoverImage
	}
	if patch.IsAdmin != nil {
		set["isAdmin"] = *patch.IsAdmin
	}
	if patch.ClearResetToken {
		unset["resetTokenHash"] = ""
		unset["resetTokenExpiresAt"] = ""
	} else {
		if patch.ResetTokenHash != nil {
			set["resetTokenHash"] = *patch.ResetTokenHash
		}
		if patch.ResetTokenExpiresAt != nil {
			set["resetTokenExpiresAt"] = *patch.ResetTokenExpiresAt
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return s.FindUserByID(ctx, id)
	}

	var doc userDocument
	if err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, returnAfter()).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mapError(err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toModel())
	}
	return users, nil
}

func (s *Store) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.users.UpdateMany(ctx,
		bson.M{"resetTokenExpiresAt": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"resetTokenHash": "", "resetTokenExpiresAt": ""}},
	)
	if err != nil {
		return 0, mapError(err)
	}
	return res.ModifiedCount, nil
}

// --- posts ---

type postDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Content       string             `bson:"content"`
	Excerpt       string             `bson:"excerpt"`
	Tags          []string           `bson:"tags"`
	Category      primitive.ObjectID `bson:"category,omitempty"`
	Author        primitive.ObjectID `bson:"author"`
	FeaturedImage string             `bson:"featuredImage"`
	Status        string             `bson:"status"`
	Approval      string             `bson:"approval"`
	PublishDate   time.Time          `bson:"publishDate"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d *postDocument) toModel() *models.Post {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.Post{
		ID:            d.ID.Hex(),
		Title:         d.Title,
		Content:       d.Content,
		Excerpt:       d.Excerpt,
		Tags:          tags,
		CategoryID:    hexOrEmpty(d.Category),
		AuthorID:      hexOrEmpty(d.Author),
		FeaturedImage: d.FeaturedImage,
		Status:        models.PostStatus(d.Status),
		Approval:      models.ApprovalState(d.Approval),
		PublishDate:   d.PublishDate.UTC(),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func (s *Store) InsertPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	doc := postDocument{
		ID:            primitive.NewObjectID(),
		Title:         post.Title,
		Content:       post.Content,
		Excerpt:       post.Excerpt,
		Tags:          tags,
		Category:      optionalObjectID(post.CategoryID),
		Author:        optionalObjectID(post.AuthorID),
		FeaturedImage: post.FeaturedImage,
		Status:        string(post.Status),
		Approval:      string(post.Approval),
		PublishDate:   post.PublishDate,
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
	}
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *Store) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc postDocument
	if err := s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

// UpdatePost applies the patch with a single $set so concurrent patches never
// interleave inside one document.
func (s *Store) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Excerpt != nil {
		set["excerpt"] = *patch.Excerpt
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		set["tags"] = tags
	}
	if patch.CategoryID != nil {
		set["category"] = optionalObjectID(*patch.CategoryID)
	}
	if patch.FeaturedImage != nil {
		set["featuredImage"] = *patch.FeaturedImage
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.Approval != nil {
		set["approval"] = string(*patch.Approval)
	}
	if patch.UpdatedAt != nil {
		set["updatedAt"] = *patch.UpdatedAt
	}
	if len(set) == 0 {
		return s.FindPostByID(ctx, id)
	}

	var doc postDocument
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, returnAfter()).Decode(&doc)
	if err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

// DeletePost removes the post and then its comments.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	if _, err := s.comments.DeleteMany(ctx, bson.M{"postId": oid}); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) FindPosts(ctx context.Context, filter store.PostFilter) ([]*models.Post, error) {
	query := bson.M{}
	if filter.Approval != nil {
		query["approval"] = string(*filter.Approval)
	}
	if filter.AuthorID != nil {
		oid, err := primitive.ObjectIDFromHex(*filter.AuthorID)
		if err != nil {
			return []*models.Post{}, nil
		}
		query["author"] = oid
	}
	if filter.CategoryID != nil {
		oid, err := primitive.ObjectIDFromHex(*filter.CategoryID)
		if err != nil {
			return []*models.Post{}, nil
		}
		query["category"] = oid
	}

	// ObjectIDs grow monotonically, so _id breaks createdAt ties in insertion order.
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.posts.Find(ctx, query, opts)
	if err != nil {
		return nil, mapError(err)
	}
	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	posts := make([]*models.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docs[i].toModel())
	}
	return posts, nil
}

// --- categories & tags ---

type categoryDocument struct {
	ID    primitive.ObjectID `bson:"_id,omitempty"`
	Name  string             `bson:"name"`
	Image string             `bson:"image,omitempty"`
}

func (d *categoryDocument) toModel() *models.Category {
	return &models.Category{ID: d.ID.Hex(), Name: d.Name, Image: d.Image}
}

func (s *Store) InsertCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	doc := categoryDocument{ID: primitive.NewObjectID(), Name: category.Name, Image: category.Image}
	if _, err := s.categories.InsertOne(ctx, doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *Store) FindCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc categoryDocument
	if err := s.categories.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	cursor, err := s.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, mapError(err)
	}
	var docs []categoryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	categories := make([]*models.Category, 0, len(docs))
	for i := range docs {
		categories = append(categories, docs[i].toModel())
	}
	return categories, nil
}

type tagDocument struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
}

func (s *Store) InsertTag(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	doc := tagDocument{ID: primitive.NewObjectID(), Name: tag.Name}
	if _, err := s.tags.InsertOne(ctx, doc); err != nil {
		return nil, mapError(err)
	}
	return &models.Tag{ID: doc.ID.Hex(), Name: doc.Name}, nil
}

func (s *Store) ListTags(ctx context.Context) ([]*models.Tag, error) {
	cursor, err := s.tags.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, mapError(err)
	}
	var docs []tagDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	tags := make([]*models.Tag, 0, len(docs))
	for _, d := range docs {
		tags = append(tags, &models.Tag{ID: d.ID.Hex(), Name: d.Name})
	}
	return tags, nil
}

// --- comments ---

type commentDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	PostID    primitive.ObjectID `bson:"postId"`
	Author    primitive.ObjectID `bson:"author"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *commentDocument) toModel() *models.Comment {
	return &models.Comment{
		ID:        d.ID.Hex(),
		PostID:    hexOrEmpty(d.PostID),
		AuthorID:  hexOrEmpty(d.Author),
		Content:   d.Content,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (s *Store) InsertComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	doc := commentDocument{
		ID:        primitive.NewObjectID(),
		PostID:    optionalObjectID(comment.PostID),
		Author:    optionalObjectID(comment.AuthorID),
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}
	if _, err := s.comments.InsertOne(ctx, doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (s *Store) FindCommentsByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return []*models.Comment{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.comments.Find(ctx, bson.M{"postId": oid}, opts)
	if err != nil {
		return nil, mapError(err)
	}
	var docs []commentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapError(err)
	}
	comments := make([]*models.Comment, 0, len(docs))
	for i := range docs {
		comments = append(comments, docs[i].toModel())
	}
	return comments, nil
}
