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

type resourceRepository interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.Resource, int, error)
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, resource *models.Resource) error
	Update(ctx context.Context, resource *models.Resource) error
	Delete(ctx context.Context, id string) error
}

// CreateResourceRequest carries the author-supplied fields of a new resource.
type CreateResourceRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required,max=100"`
	URL         string `json:"url" validate:"omitempty,url"`
}

// UpdateResourceRequest carries the editable fields of a resource.
type UpdateResourceRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required,max=100"`
	URL         string `json:"url" validate:"omitempty,url"`
}

// ResourceService manages the community resource library. New submissions
// always enter the moderation queue unapproved.
type ResourceService struct {
	repo     resourceRepository
	audit    auditLogger
	validate *validator.Validate
	logger   *zap.Logger
}

// NewResourceService constructs ResourceService.
func NewResourceService(repo resourceRepository, audit auditLogger, logger *zap.Logger) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{
		repo:     repo,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns resources visible to the actor. Members only see approved
// content; moderators see everything the filter selects.
func (s *ResourceService) List(ctx context.Context, actor *models.JWTClaims, filter models.ContentFilter) ([]models.Resource, *models.Pagination, error) {
	if filter.Approval == "" {
		filter.Approval = models.ApprovalApproved
	}
	if !filter.Approval.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid approval filter")
	}
	if filter.Approval != models.ApprovalApproved && (actor == nil || !actor.Role.CanModerate()) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators may view unapproved content")
	}

	resources, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list resources")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return resources, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one resource. Unapproved resources are visible only to their
// author and moderators.
func (s *ResourceService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Resource, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load resource")
	}
	if !resource.Approved {
		if actor == nil || (actor.UserID != resource.AuthorID && !actor.Role.CanModerate()) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
	}
	return resource, nil
}

// Create submits a new resource on behalf of the actor.
func (s *ResourceService) Create(ctx context.Context, actor *models.JWTClaims, req CreateResourceRequest) (*models.Resource, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFields(err)
	}
	resource := &models.Resource{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		URL:         req.URL,
		AuthorID:    actor.UserID,
		AuthorName:  actor.FullName,
	}
	if err := s.repo.Create(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to create resource")
	}
	s.logger.Info("resource submitted",
		zap.String("resource_id", resource.ID),
		zap.String("author_id", actor.UserID))
	return resource, nil
}

// Update rewrites a resource. Authors may edit their own submissions;
// moderators may edit any.
func (s *ResourceService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateResourceRequest) (*models.Resource, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFields(err)
	}
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load resource")
	}
	if resource.AuthorID != actor.UserID && !actor.Role.CanModerate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only edit your own resources")
	}

	resource.Title = req.Title
	resource.Description = req.Description
	resource.Category = req.Category
	resource.URL = req.URL
	if err := s.repo.Update(ctx, resource); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to update resource")
	}
	return resource, nil
}

// Delete removes a resource. Authors may delete their own; admins any.
func (s *ResourceService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load resource")
	}
	if resource.AuthorID != actor.UserID && !actor.Role.CanModerate() {
		return appErrors.Clone(appErrors.ErrForbidden, "you may only delete your own resources")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to delete resource")
	}
	if s.audit != nil {
		actorID := actor.UserID
		resourceID := id
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     "RESOURCE_DELETE",
			Resource:   "resource",
			ResourceID: &resourceID,
			IPAddress:  "system",
			UserAgent:  "resource-service",
		}); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return nil
}
