package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	maxPostTitleLength = 200
	maxPostTags        = 20
	maxPostTagLength   = 40
)

// ErrSlugInUse is returned when another post already has the slug.
var ErrSlugInUse = fmt.Errorf("%w: Slug already in use", ErrConflict)

// IPostService manages the admin-written posts shown on the public site.
type IPostService interface {
	ListPublishedPosts(ctx context.Context, filter models.PostFilter) (*models.PostPage, error)
	FindPublishedPost(ctx context.Context, slug string) (*models.Post, error)
	ListAllPosts(ctx context.Context, actor models.Principal, filter models.PostFilter) (*models.PostPage, error)
	FindPost(ctx context.Context, actor models.Principal, slug string) (*models.Post, error)
	CreatePost(ctx context.Context, actor models.Principal, in models.PostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, actor models.Principal, slug string, in models.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, actor models.Principal, slug string) error
}

// postService implements IPostService.
type postService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewPostService creates a new PostService.
func NewPostService(db *mongo.Database, cfg *config.Config) IPostService {
	return &postService{db: db, cfg: cfg}
}

// pageWindow clamps a requested page and page size to the configured bounds.
func pageWindow(cfg *config.Config, page, limit int) (int, int) {
	if limit <= 0 {
		limit = cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 && limit > cfg.MaxPageSize {
		limit = cfg.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return page, limit
}

// normalizeSlug returns the slug when it is already in canonical form.
func normalizeSlug(raw string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if slug == "" || utils.Slugify(slug) != slug {
		return "", validationf("Invalid post slug")
	}
	return slug, nil
}

func (s *postService) ListPublishedPosts(ctx context.Context, filter models.PostFilter) (*models.PostPage, error) {
	return s.listPosts(ctx, bson.M{"published": true}, filter)
}

func (s *postService) ListAllPosts(ctx context.Context, actor models.Principal, filter models.PostFilter) (*models.PostPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.listPosts(ctx, bson.M{}, filter)
}

// listPosts pages through posts, newest first. Tag matches exactly, ignoring case; the query
// is a case-insensitive substring.
func (s *postService) listPosts(ctx context.Context, query bson.M, filter models.PostFilter) (*models.PostPage, error) {
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		query["tags"] = tag
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		query["$or"] = bson.A{bson.M{"title": pattern}, bson.M{"content": pattern}, bson.M{"tags": pattern}}
	}
	page, limit := pageWindow(s.cfg, filter.Page, filter.Limit)

	collection := s.db.Collection(db.PostsCollection)
	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.Post{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return &models.PostPage{Items: items, Total: total, Page: page, Pages: (total + int64(limit) - 1) / int64(limit)}, nil
}

// FindPublishedPost returns a published post. Drafts look exactly like missing posts.
func (s *postService) FindPublishedPost(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.findBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.Published {
		return nil, notFoundf("Post not found")
	}
	return post, nil
}

func (s *postService) FindPost(ctx context.Context, actor models.Principal, slug string) (*models.Post, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.findBySlug(ctx, slug)
}

func (s *postService) findBySlug(ctx context.Context, raw string) (*models.Post, error) {
	slug, err := normalizeSlug(raw)
	if err != nil {
		return nil, err
	}
	var post models.Post
	err = s.db.Collection(db.PostsCollection).FindOne(ctx, bson.M{"slug": slug}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "Post")
		}
		return nil, fmt.Errorf("error finding post %q: %w", slug, err)
	}
	return &post, nil
}

// applyPostInput copies the set fields of in onto p. An explicit slug is slugified; otherwise
// a new post takes its slug from the title.
func applyPostInput(p *models.Post, in models.PostInput) error {
	if in.Title != nil {
		title := utils.SanitizeText(*in.Title)
		if title == "" {
			return validationf("Title cannot be empty")
		}
		if utf8.RuneCountInString(title) > maxPostTitleLength {
			return validationf("Title cannot exceed %d characters", maxPostTitleLength)
		}
		p.Title = title
	}
	if in.Content != nil {
		content := utils.SanitizeRichText(*in.Content)
		if content == "" {
			return validationf("Content cannot be empty")
		}
		p.Content = content
	}
	if in.Slug != nil {
		slug := utils.Slugify(*in.Slug)
		if slug == "" {
			return validationf("Invalid post slug")
		}
		p.Slug = slug
	}
	if p.Slug == "" && p.Title != "" {
		p.Slug = utils.Slugify(p.Title)
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return err
		}
		p.Tags = tags
	}
	if in.Published != nil {
		p.Published = *in.Published
	}
	return nil
}

// normalizeTags lower-cases, trims and de-duplicates tags, keeping their order.
func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		tag := strings.ToLower(utils.SanitizeText(t))
		if tag == "" || seen[tag] {
			continue
		}
		if utf8.RuneCountInString(tag) > maxPostTagLength {
			return nil, validationf("Tag %q is too long", tag)
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	if len(tags) > maxPostTags {
		return nil, validationf("A post can have at most %d tags", maxPostTags)
	}
	return tags, nil
}

func slugConflict(err error) error {
	if db.IsMongoDuplicateKeyError(err) && strings.Contains(err.Error(), "slug_1") {
		return ErrSlugInUse
	}
	return err
}

func (s *postService) CreatePost(ctx context.Context, actor models.Principal, in models.PostInput) (*models.Post, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	draft := models.Post{AuthorID: actor.UserID, Tags: []string{}}
	if err := applyPostInput(&draft, in); err != nil {
		return nil, err
	}
	if draft.Title == "" || draft.Content == "" {
		return nil, validationf("Title and content are required")
	}
	if draft.Slug == "" {
		return nil, validationf("Invalid post slug")
	}

	collection := s.db.Collection(db.PostsCollection)
	now := time.Now().UTC()
	var post *models.Post
	err := db.Try(func() error {
		p := draft
		p.ID = utils.NewSixID()
		p.CreatedAt = now
		p.UpdatedAt = now
		post = &p
		_, insertErr := collection.InsertOne(ctx, post)
		return slugConflict(insertErr)
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert post %q: %w", draft.Slug, err)
	}
	log.Printf("Post %s (%s) created by %s", post.ID.String(), post.Slug, actor.UserID.String())
	return post, nil
}

// UpdatePost applies the set fields of in. Changing the title does not change the slug.
func (s *postService) UpdatePost(ctx context.Context, actor models.Principal, slug string, in models.PostInput) (*models.Post, error) {
	current, err := s.FindPost(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	updated := *current
	if err := applyPostInput(&updated, in); err != nil {
		return nil, err
	}

	set := bson.M{
		"title":      updated.Title,
		"slug":       updated.Slug,
		"content":    updated.Content,
		"tags":       updated.Tags,
		"published":  updated.Published,
		"updated_at": time.Now().UTC(),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err = s.db.Collection(db.PostsCollection).FindOneAndUpdate(ctx, bson.M{"_id": current.ID}, bson.M{"$set": set}, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "Post")
		}
		if conflict := slugConflict(err); errors.Is(conflict, ErrConflict) {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to update post %s: %w", current.ID.String(), err)
	}
	return &post, nil
}

func (s *postService) DeletePost(ctx context.Context, actor models.Principal, slug string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	normalized, err := normalizeSlug(slug)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(db.PostsCollection).DeleteOne(ctx, bson.M{"slug": normalized})
	if err != nil {
		return fmt.Errorf("db error deleting post %q: %w", normalized, err)
	}
	if res.DeletedCount == 0 {
		return notFoundf("Post not found")
	}
	log.Printf("Post %s deleted by %s", normalized, actor.UserID.String())
	return nil
}
