package moderation

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/notify"
)

// ItemStore persists approval decisions for a moderated collection.
type ItemStore interface {
	UpdateApproval(ctx context.Context, id string, approved bool) error
}

// Authorizer resolves the role of an acting user.
type Authorizer interface {
	RoleOf(ctx context.Context, actorID string) (models.UserRole, error)
}

// FilterKey selects which moderation filter a SetFilter call updates.
type FilterKey string

const (
	FilterSearch   FilterKey = "search"
	FilterApproval FilterKey = "approval"
)

// BatchResult aggregates per-item outcomes of a batch approval run.
type BatchResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// Mutable is implemented by approvable items that can produce a copy with a
// different approval state. The engine uses it to update its local view only
// after the store has confirmed a write.
type Mutable interface {
	models.Approvable
	WithApproved(approved bool) models.Approvable
}

// Engine maintains the moderation view over a homogeneous collection:
// filtering, selection, and single or batch approval with per-item in-flight
// state. The collection itself is owned by the caller; the engine owns only
// its view of it.
type Engine struct {
	store    ItemStore
	auth     Authorizer
	notifier notify.Notifier
	logger   *zap.Logger

	mu            sync.Mutex
	items         []models.Approvable
	search        string
	approval      models.ApprovalState
	selected      map[string]struct{}
	updating      string
	batchInFlight bool
}

// NewEngine constructs an Engine over the given collection.
func NewEngine(store ItemStore, auth Authorizer, notifier notify.Notifier, logger *zap.Logger, items []models.Approvable) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Engine{
		store:    store,
		auth:     auth,
		notifier: notifier,
		logger:   logger,
		items:    append([]models.Approvable(nil), items...),
		approval: models.ApprovalAll,
		selected: make(map[string]struct{}),
	}
}

// Reset replaces the collection, dropping selection state.
func (e *Engine) Reset(items []models.Approvable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append([]models.Approvable(nil), items...)
	e.selected = make(map[string]struct{})
}

// SetFilter updates one of the view filters. Pure state update; it always
// succeeds for known keys.
func (e *Engine) SetFilter(key FilterKey, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch key {
	case FilterSearch:
		e.search = strings.TrimSpace(value)
	case FilterApproval:
		state := models.ApprovalState(value)
		if !state.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "unknown approval filter: "+value)
		}
		e.approval = state
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown filter key: "+string(key))
	}
	return nil
}

// VisibleItems returns the subset matching the active filters.
func (e *Engine) VisibleItems() []models.Approvable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleLocked()
}

func (e *Engine) visibleLocked() []models.Approvable {
	visible := make([]models.Approvable, 0, len(e.items))
	for _, item := range e.items {
		if e.matchesLocked(item) {
			visible = append(visible, item)
		}
	}
	return visible
}

func (e *Engine) matchesLocked(item models.Approvable) bool {
	switch e.approval {
	case models.ApprovalApproved:
		if !item.IsApproved() {
			return false
		}
	case models.ApprovalPending:
		if item.IsApproved() {
			return false
		}
	}
	if e.search == "" {
		return true
	}
	needle := strings.ToLower(e.search)
	for _, field := range item.SearchText() {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Select marks or unmarks a single item for batch operations.
func (e *Engine) Select(id string, selected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if selected {
		e.selected[id] = struct{}{}
	} else {
		delete(e.selected, id)
	}
}

// SelectAll selects exactly the currently filtered subset, never items the
// active filter excludes. SelectAll(false) clears the selection.
func (e *Engine) SelectAll(selected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = make(map[string]struct{})
	if !selected {
		return
	}
	for _, item := range e.visibleLocked() {
		e.selected[item.ItemID()] = struct{}{}
	}
}

// SelectedIDs returns the selected ids in stable order.
func (e *Engine) SelectedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.selected))
	for id := range e.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Updating returns the id of the item with a single update in flight, or "".
func (e *Engine) Updating() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updating
}

// BatchUpdating reports whether a batch run is in flight.
func (e *Engine) BatchUpdating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchInFlight
}

// SetApproval persists a single approval decision and, only after the store
// confirms it, updates the local copy. On any failure the local view is left
// untouched. Concurrent calls for the same id are allowed to race; the last
// store response wins.
func (e *Engine) SetApproval(ctx context.Context, actorID, itemID string, approved bool) error {
	if err := e.authorize(ctx, actorID); err != nil {
		return err
	}

	e.mu.Lock()
	if _, ok := e.indexOfLocked(itemID); !ok {
		e.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "item not found: "+itemID)
	}
	e.updating = itemID
	e.mu.Unlock()

	err := e.store.UpdateApproval(ctx, itemID, approved)

	e.mu.Lock()
	if e.updating == itemID {
		e.updating = ""
	}
	if err == nil {
		e.applyLocked(itemID, approved)
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("approval update failed", zap.String("item_id", itemID), zap.Error(err))
		e.notifier.Notify(ctx, notify.KindError, "failed to update approval")
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to update approval")
	}
	e.notifier.Notify(ctx, notify.KindSuccess, "approval updated")
	return nil
}

// SetBatchApproval applies one approval decision to every selected item. The
// store calls run concurrently and are all joined; one item's failure never
// aborts the others. Items that succeeded have their local copy updated, the
// selection is cleared unconditionally, and the result reports per-item
// outcomes.
func (e *Engine) SetBatchApproval(ctx context.Context, actorID string, approved bool) (BatchResult, error) {
	if err := e.authorize(ctx, actorID); err != nil {
		return BatchResult{}, err
	}

	e.mu.Lock()
	ids := make([]string, 0, len(e.selected))
	for id := range e.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		e.mu.Unlock()
		e.notifier.Notify(ctx, notify.KindWarning, "no items selected")
		return BatchResult{}, nil
	}
	e.batchInFlight = true
	e.mu.Unlock()

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = e.store.UpdateApproval(ctx, id, approved)
		}(i, id)
	}
	wg.Wait()

	var result BatchResult
	e.mu.Lock()
	for i, id := range ids {
		if errs[i] != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		result.Succeeded++
		e.applyLocked(id, approved)
	}
	// Selection is cleared even on partial failure; failed items must be
	// re-selected before a retry.
	e.selected = make(map[string]struct{})
	e.batchInFlight = false
	e.mu.Unlock()

	switch {
	case result.Failed == 0:
		e.notifier.Notify(ctx, notify.KindSuccess, "batch approval applied")
	case result.Succeeded == 0:
		e.notifier.Notify(ctx, notify.KindError, "batch approval failed")
	default:
		e.notifier.Notify(ctx, notify.KindWarning, "batch approval partially applied")
	}
	return result, nil
}

func (e *Engine) authorize(ctx context.Context, actorID string) error {
	role, err := e.auth.RoleOf(ctx, actorID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "failed to resolve actor role")
	}
	if !role.CanModerate() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "actor may not moderate content")
	}
	return nil
}

func (e *Engine) indexOfLocked(id string) (int, bool) {
	for i, item := range e.items {
		if item.ItemID() == id {
			return i, true
		}
	}
	return 0, false
}

func (e *Engine) applyLocked(id string, approved bool) {
	i, ok := e.indexOfLocked(id)
	if !ok {
		return
	}
	if m, ok := e.items[i].(Mutable); ok {
		e.items[i] = m.WithApproved(approved)
	}
}
