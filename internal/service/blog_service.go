package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
)

type blogRepository interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.BlogPost, int, error)
	FindByID(ctx context.Context, id string) (*models.BlogPost, error)
	Create(ctx context.Context, post *models.BlogPost) error
	Update(ctx context.Context, post *models.BlogPost) error
	Delete(ctx context.Context, id string) error
}

// CreateBlogPostRequest carries the author-supplied fields of a new post.
type CreateBlogPostRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Excerpt string `json:"excerpt" validate:"required,max=500"`
	Content string `json:"content" validate:"required"`
	Tags    string `json:"tags" validate:"omitempty,max=200"`
}

// UpdateBlogPostRequest carries the editable fields of a post.
type UpdateBlogPostRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Excerpt string `json:"excerpt" validate:"required,max=500"`
	Content string `json:"content" validate:"required"`
	Tags    string `json:"tags" validate:"omitempty,max=200"`
}

// BlogService manages member blog posts. Posts are held for moderation
// before publication.
type BlogService struct {
	repo     blogRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewBlogService constructs BlogService.
func NewBlogService(repo blogRepository, logger *zap.Logger) *BlogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlogService{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns posts visible to the actor.
func (s *BlogService) List(ctx context.Context, actor *models.JWTClaims, filter models.ContentFilter) ([]models.BlogPost, *models.Pagination, error) {
	if filter.Approval == "" {
		filter.Approval = models.ApprovalApproved
	}
	if !filter.Approval.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid approval filter")
	}
	if filter.Approval != models.ApprovalApproved && (actor == nil || !actor.Role.CanModerate()) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators may view unapproved content")
	}

	posts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list blog posts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return posts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one post. Unapproved posts are visible only to their author
// and moderators.
func (s *BlogService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.BlogPost, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load blog post")
	}
	if !post.Approved {
		if actor == nil || (actor.UserID != post.AuthorID && !actor.Role.CanModerate()) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
	}
	return post, nil
}

// Create submits a new post on behalf of the actor.
func (s *BlogService) Create(ctx context.Context, actor *models.JWTClaims, req CreateBlogPostRequest) (*models.BlogPost, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFields(err)
	}
	post := &models.BlogPost{
		Title:      req.Title,
		Excerpt:    req.Excerpt,
		Content:    req.Content,
		Tags:       req.Tags,
		AuthorID:   actor.UserID,
		AuthorName: actor.FullName,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to create blog post")
	}
	s.logger.Info("blog post submitted",
		zap.String("post_id", post.ID),
		zap.String("author_id", actor.UserID))
	return post, nil
}

// Update rewrites a post. Authors may edit their own; moderators any.
func (s *BlogService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateBlogPostRequest) (*models.BlogPost, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFields(err)
	}
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load blog post")
	}
	if post.AuthorID != actor.UserID && !actor.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only edit your own posts")
	}

	post.Title = req.Title
	post.Excerpt = req.Excerpt
	post.Content = req.Content
	post.Tags = req.Tags
	if err := s.repo.Update(ctx, post); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to update blog post")
	}
	return post, nil
}

// Delete removes a post. Authors may delete their own; moderators any.
func (s *BlogService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load blog post")
	}
	if post.AuthorID != actor.UserID && !actor.Role.CanModerate() {
		return appErrors.Clone(appErrors.ErrForbidden, "you may only delete your own posts")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to delete blog post")
	}
	return nil
}
