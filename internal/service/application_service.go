package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/internal/models"
	"github.com/umoja-platform/umoja-api/internal/repository"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/notify"
)

type applicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.MentorshipApplication, error)
	Exists(ctx context.Context, programID, studentID string) (bool, error)
	Create(ctx context.Context, application *models.MentorshipApplication) error
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	Delete(ctx context.Context, applicationID, programID string, releaseCapacity bool) error
}

type programReader interface {
	FindByID(ctx context.Context, id string) (*models.MentorshipProgram, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type transitionObserver interface {
	ObserveTransition(status models.ApplicationStatus)
}

// SubmitApplicationRequest is a student's request against a program.
type SubmitApplicationRequest struct {
	ProgramID string `json:"program_id" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// ReviewApplicationRequest carries a reviewer's decision.
type ReviewApplicationRequest struct {
	Status         models.ApplicationStatus `json:"status" validate:"required"`
	MentorResponse string                   `json:"mentor_response"`
}

// actorRelation is the actor's relationship to the application under review.
type actorRelation string

const (
	relationMentorOwner  actorRelation = "mentor_owner"
	relationStudentOwner actorRelation = "student_owner"
	relationAdmin        actorRelation = "admin"
	relationNone         actorRelation = "none"
)

// reviewPolicy maps an actor relation to the statuses it may request. Keeping
// the transition rules in one table makes them auditable and testable as a
// unit instead of scattering role conditionals through the handler code.
var reviewPolicy = map[actorRelation]map[models.ApplicationStatus]bool{
	relationMentorOwner: {
		models.ApplicationStatusAccepted: true,
		models.ApplicationStatusRejected: true,
	},
	relationStudentOwner: {
		models.ApplicationStatusWithdrawn: true,
	},
	relationAdmin: {
		models.ApplicationStatusPending:   true,
		models.ApplicationStatusAccepted:  true,
		models.ApplicationStatusRejected:  true,
		models.ApplicationStatusWithdrawn: true,
	},
}

// ApplicationService governs the mentorship application lifecycle and keeps
// the program participant counter consistent with committed statuses.
type ApplicationService struct {
	repo      applicationRepository
	programs  programReader
	audit     auditLogger
	notifier  notify.Notifier
	metrics   transitionObserver
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, programs programReader, audit auditLogger, notifier notify.Notifier, metrics transitionObserver, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &ApplicationService{
		repo:      repo,
		programs:  programs,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns applications visible to the actor.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter, actor *models.JWTClaims) ([]models.ApplicationDetail, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleChapterAdmin:
		// full access, no extra scoping
	case models.RoleMentor:
		filter.MentorID = actor.UserID
	default:
		filter.StudentID = actor.UserID
	}
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return applications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Submit creates a pending application. Preconditions are checked in a fixed
// order, each with a distinct failure kind. Capacity is reserved only on
// acceptance, so submitting never touches the participant counter.
func (s *ApplicationService) Submit(ctx context.Context, studentID string, req SubmitApplicationRequest) (*models.MentorshipApplication, error) {
	program, err := s.programs.FindByID(ctx, req.ProgramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentorship program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load program")
	}
	if !program.IsActive {
		return nil, appErrors.ErrProgramInactive
	}
	if program.CurrentParticipants >= program.MaxParticipants {
		return nil, appErrors.ErrProgramFull
	}
	if program.ApplicationDeadline != nil && s.now().After(*program.ApplicationDeadline) {
		return nil, appErrors.ErrDeadlinePassed
	}
	exists, err := s.repo.Exists(ctx, req.ProgramID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to check existing applications")
	}
	if exists {
		return nil, appErrors.ErrDuplicateApplication
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFields(err)
	}

	application := &models.MentorshipApplication{
		ProgramID: program.ID,
		MentorID:  program.MentorID,
		StudentID: studentID,
		Status:    models.ApplicationStatusPending,
		Message:   strings.TrimSpace(req.Message),
	}
	if err := s.repo.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to create application")
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(models.ApplicationStatusPending)
	}
	s.emitAudit(ctx, studentID, models.AuditActionApplicationSubmit, application)
	s.notifier.NotifyUser(ctx, program.MentorID, notify.KindSuccess, "a new mentorship application is waiting for review")
	return application, nil
}

// Review applies a reviewer decision. Authorization is evaluated as ordered
// relation cases against the policy table, then the transition guard, then
// the transactional commit that pairs the status write with its capacity
// side effect.
func (s *ApplicationService) Review(ctx context.Context, applicationID string, actor *models.JWTClaims, req ReviewApplicationRequest) (*models.MentorshipApplication, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported application status")
	}

	application, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load application")
	}

	relation := relationOf(actor, application)
	allowed := reviewPolicy[relation][req.Status]
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "actor may not perform this transition")
	}

	if relation != relationAdmin && application.Status != models.ApplicationStatusPending {
		// Students may still withdraw an accepted application; everything
		// else outside PENDING is terminal for non-admin actors.
		studentWithdraw := relation == relationStudentOwner &&
			req.Status == models.ApplicationStatusWithdrawn &&
			application.Status == models.ApplicationStatusAccepted
		if !studentWithdraw {
			return nil, appErrors.ErrAlreadyReviewed
		}
	}

	params := repository.UpdateStatusParams{
		ApplicationID: application.ID,
		ProgramID:     application.ProgramID,
		NewStatus:     req.Status,
		ReviewedAt:    s.now(),
		CapacityDelta: capacityDelta(application.Status, req.Status),
	}
	if response := strings.TrimSpace(req.MentorResponse); response != "" {
		params.MentorResponse = &response
	}

	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityExhausted):
			return nil, appErrors.ErrProgramFull
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to update application")
		}
	}

	previous := application.Status
	application.Status = req.Status
	application.ReviewedAt = &params.ReviewedAt
	application.MentorResponse = params.MentorResponse

	if s.metrics != nil {
		s.metrics.ObserveTransition(req.Status)
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionApplicationReview, application)
	s.notifyReview(ctx, application, previous)
	return application, nil
}

// Delete removes an application and returns the deleted row so callers can
// evict dependent caches. Admin only; an accepted application releases its
// capacity slot in the same committed operation as the delete.
func (s *ApplicationService) Delete(ctx context.Context, applicationID string, actor *models.JWTClaims) (*models.MentorshipApplication, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may delete applications")
	}

	application, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load application")
	}

	releaseCapacity := application.Status == models.ApplicationStatusAccepted
	if err := s.repo.Delete(ctx, application.ID, application.ProgramID, releaseCapacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to delete application")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionApplicationDelete, application)
	return application, nil
}

// relationOf evaluates the actor's relation to the application as ordered
// cases; the first match wins.
func relationOf(actor *models.JWTClaims, application *models.MentorshipApplication) actorRelation {
	switch {
	case actor.UserID == application.MentorID:
		return relationMentorOwner
	case actor.UserID == application.StudentID:
		return relationStudentOwner
	case actor.Role == models.RoleAdmin:
		return relationAdmin
	default:
		return relationNone
	}
}

// capacityDelta computes the participant counter adjustment for a committed
// transition. Only entering or leaving ACCEPTED moves the counter.
func capacityDelta(current, next models.ApplicationStatus) int {
	switch {
	case current != models.ApplicationStatusAccepted && next == models.ApplicationStatusAccepted:
		return 1
	case current == models.ApplicationStatusAccepted && next != models.ApplicationStatusAccepted:
		return -1
	default:
		return 0
	}
}

func (s *ApplicationService) notifyReview(ctx context.Context, application *models.MentorshipApplication, previous models.ApplicationStatus) {
	switch application.Status {
	case models.ApplicationStatusAccepted:
		s.notifier.NotifyUser(ctx, application.StudentID, notify.KindSuccess, "your mentorship application was accepted")
	case models.ApplicationStatusRejected:
		s.notifier.NotifyUser(ctx, application.StudentID, notify.KindWarning, "your mentorship application was not accepted")
	case models.ApplicationStatusWithdrawn:
		if previous != models.ApplicationStatusWithdrawn {
			s.notifier.NotifyUser(ctx, application.MentorID, notify.KindWarning, "an applicant withdrew from your program")
		}
	}
}

func (s *ApplicationService) emitAudit(ctx context.Context, actorID, action string, application *models.MentorshipApplication) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(application)
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "mentorship_application",
		ResourceID: &application.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "application-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// validationFields converts validator errors into a ValidationError naming
// the offending fields.
func validationFields(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return appErrors.Validationf(fields...)
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
