package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.MentorshipProgram, int, error)
	FindByID(ctx context.Context, id string) (*models.MentorshipProgram, error)
	Create(ctx context.Context, program *models.MentorshipProgram) error
	Update(ctx context.Context, program *models.MentorshipProgram) error
	Deactivate(ctx context.Context, id string) error
}

// CreateProgramRequest describes a new mentorship offering.
type CreateProgramRequest struct {
	Title               string     `json:"title" validate:"required"`
	Description         string     `json:"description" validate:"required"`
	FocusArea           string     `json:"focus_area" validate:"required"`
	MaxParticipants     int        `json:"max_participants" validate:"required,gt=0"`
	ApplicationDeadline *time.Time `json:"application_deadline"`
}

// UpdateProgramRequest carries the mentor-editable fields.
type UpdateProgramRequest struct {
	Title               string     `json:"title" validate:"required"`
	Description         string     `json:"description" validate:"required"`
	FocusArea           string     `json:"focus_area" validate:"required"`
	MaxParticipants     int        `json:"max_participants" validate:"required,gt=0"`
	ApplicationDeadline *time.Time `json:"application_deadline"`
}

// ProgramService manages mentorship program offerings.
type ProgramService struct {
	repo      programRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService. The cache client is optional;
// a nil client disables program detail caching.
func NewProgramService(repo programRepository, cache *redis.Client, cacheTTL time.Duration, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ProgramService{repo: repo, cache: cache, cacheTTL: cacheTTL, audit: audit, validator: validate, logger: logger}
}

// List returns programs with pagination metadata.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.MentorshipProgram, *models.Pagination, error) {
	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list programs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return programs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single program, served from cache when possible.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.MentorshipProgram, error) {
	if cached := s.cacheGet(ctx, id); cached != nil {
		return cached, nil
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentorship program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load program")
	}
	s.cacheSet(ctx, program)
	return program, nil
}

// Create registers a new program owned by the acting mentor.
func (s *ProgramService) Create(ctx context.Context, actor *models.JWTClaims, req CreateProgramRequest) (*models.MentorshipProgram, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleMentor && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only mentors may create programs")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFields(err)
	}

	program := &models.MentorshipProgram{
		MentorID:            actor.UserID,
		Title:               req.Title,
		Description:         req.Description,
		FocusArea:           req.FocusArea,
		MaxParticipants:     req.MaxParticipants,
		ApplicationDeadline: req.ApplicationDeadline,
	}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to create program")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionProgramCreate, program)
	return program, nil
}

// Update rewrites the mentor-editable fields of an owned program.
func (s *ProgramService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateProgramRequest) (*models.MentorshipProgram, error) {
	program, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFields(err)
	}
	if req.MaxParticipants < program.CurrentParticipants {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_participants may not drop below the current participant count")
	}

	program.Title = req.Title
	program.Description = req.Description
	program.FocusArea = req.FocusArea
	program.MaxParticipants = req.MaxParticipants
	program.ApplicationDeadline = req.ApplicationDeadline
	if err := s.repo.Update(ctx, program); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentorship program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to update program")
	}
	s.cacheInvalidate(ctx, id)
	return program, nil
}

// Deactivate soft-deletes a program; owners never hard-delete.
func (s *ProgramService) Deactivate(ctx context.Context, actor *models.JWTClaims, id string) error {
	program, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "mentorship program not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to deactivate program")
	}
	s.cacheInvalidate(ctx, id)
	s.emitAudit(ctx, actor.UserID, models.AuditActionProgramDeactivate, program)
	return nil
}

// InvalidateCache drops the cached detail for a program. Exposed so the
// application review path can evict stale participant counts.
func (s *ProgramService) InvalidateCache(ctx context.Context, id string) {
	s.cacheInvalidate(ctx, id)
}

func (s *ProgramService) loadOwned(ctx context.Context, actor *models.JWTClaims, id string) (*models.MentorshipProgram, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentorship program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load program")
	}
	if program.MentorID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "actor does not own this program")
	}
	return program, nil
}

func programCacheKey(id string) string {
	return fmt.Sprintf("program:%s", id)
}

func (s *ProgramService) cacheGet(ctx context.Context, id string) *models.MentorshipProgram {
	if s.cache == nil {
		return nil
	}
	payload, err := s.cache.Get(ctx, programCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("program cache read failed", zap.Error(err))
		}
		return nil
	}
	var program models.MentorshipProgram
	if err := json.Unmarshal(payload, &program); err != nil {
		return nil
	}
	return &program
}

func (s *ProgramService) cacheSet(ctx context.Context, program *models.MentorshipProgram) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(program)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, programCacheKey(program.ID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("program cache write failed", zap.Error(err))
	}
}

func (s *ProgramService) cacheInvalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, programCacheKey(id)).Err(); err != nil {
		s.logger.Warn("program cache invalidation failed", zap.Error(err))
	}
}

func (s *ProgramService) emitAudit(ctx context.Context, actorID, action string, program *models.MentorshipProgram) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(program)
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "mentorship_program",
		ResourceID: &program.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "program-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
