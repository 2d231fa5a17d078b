package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/internal/moderation"
	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/notify"
)

// ContentSource binds one moderated content kind to its persistence layer.
type ContentSource struct {
	Store moderation.ItemStore
	List  func(ctx context.Context, filter models.ContentFilter) ([]models.Approvable, int, error)
	Find  func(ctx context.Context, id string) (models.Approvable, error)
}

type moderationObserver interface {
	ObserveModeration(kind string, approved bool)
}

// ModerationService runs the approval engine over registered content kinds.
// Every decision, single or batch, goes through the engine so the HTTP
// surface and the engine share one code path.
type ModerationService struct {
	sources    map[string]ContentSource
	auth       moderation.Authorizer
	notifier   notify.Notifier
	metrics    moderationObserver
	batchLimit int
	logger     *zap.Logger
}

// NewModerationService constructs ModerationService.
func NewModerationService(sources map[string]ContentSource, auth moderation.Authorizer, notifier notify.Notifier, metrics moderationObserver, batchLimit int, logger *zap.Logger) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &ModerationService{
		sources:    sources,
		auth:       auth,
		notifier:   notifier,
		metrics:    metrics,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// Queue returns the moderated view of one content kind.
func (s *ModerationService) Queue(ctx context.Context, kind string, filter models.ContentFilter) ([]models.Approvable, *models.Pagination, error) {
	source, err := s.source(kind)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := source.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list moderation queue")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Decide applies a single approval decision through the engine.
func (s *ModerationService) Decide(ctx context.Context, kind string, actorID, itemID string, approved bool) error {
	source, err := s.source(kind)
	if err != nil {
		return err
	}
	item, err := source.Find(ctx, itemID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}

	engine := moderation.NewEngine(source.Store, s.auth, s.notifier, s.logger, []models.Approvable{item})
	if err := engine.SetApproval(ctx, actorID, itemID, approved); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveModeration(kind, approved)
	}
	return nil
}

// DecideBatch applies one decision to a set of items through the engine's
// concurrent batch path. Per-item failures are aggregated, never propagated
// as a batch-wide error.
func (s *ModerationService) DecideBatch(ctx context.Context, kind string, actorID string, ids []string, approved bool) (moderation.BatchResult, error) {
	source, err := s.source(kind)
	if err != nil {
		return moderation.BatchResult{}, err
	}
	if len(ids) > s.batchLimit {
		return moderation.BatchResult{}, appErrors.Clone(appErrors.ErrValidation, "too many items in one batch")
	}

	items, _, err := source.List(ctx, models.ContentFilter{Approval: models.ApprovalAll, PageSize: s.batchLimit})
	if err != nil {
		return moderation.BatchResult{}, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load moderation collection")
	}

	engine := moderation.NewEngine(source.Store, s.auth, s.notifier, s.logger, items)
	for _, id := range ids {
		engine.Select(id, true)
	}
	result, err := engine.SetBatchApproval(ctx, actorID, approved)
	if err != nil {
		return moderation.BatchResult{}, err
	}
	if s.metrics != nil {
		for i := 0; i < result.Succeeded; i++ {
			s.metrics.ObserveModeration(kind, approved)
		}
	}
	return result, nil
}

func (s *ModerationService) source(kind string) (ContentSource, error) {
	source, ok := s.sources[kind]
	if !ok {
		return ContentSource{}, appErrors.Clone(appErrors.ErrNotFound, "unknown content kind: "+kind)
	}
	return source, nil
}
