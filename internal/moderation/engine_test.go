package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
)

type mockItemStore struct {
	mu      sync.Mutex
	failIDs map[string]bool
	failAll bool
	updates map[string]bool
	calls   int
}

func (m *mockItemStore) UpdateApproval(ctx context.Context, id string, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll || m.failIDs[id] {
		return errors.New("store unavailable")
	}
	if m.updates == nil {
		m.updates = make(map[string]bool)
	}
	m.updates[id] = approved
	return nil
}

type mockAuthorizer struct {
	roles map[string]models.UserRole
	err   error
}

func (m *mockAuthorizer) RoleOf(ctx context.Context, actorID string) (models.UserRole, error) {
	if m.err != nil {
		return "", m.err
	}
	if role, ok := m.roles[actorID]; ok {
		return role, nil
	}
	return models.RoleStudent, nil
}

func testItems() []models.Approvable {
	return []models.Approvable{
		models.Resource{ID: "r1", Title: "Intro to Go", Category: "programming", Approved: false},
		models.Resource{ID: "r2", Title: "Budgeting 101", Category: "finance", Approved: true},
		models.Resource{ID: "r3", Title: "Go Concurrency Patterns", Category: "programming", Approved: false},
		models.Resource{ID: "r4", Title: "Interview Prep", Category: "career", Approved: false},
		models.Resource{ID: "r5", Title: "Advanced Go", Category: "programming", Approved: true},
	}
}

func newTestEngine(store *mockItemStore) *Engine {
	auth := &mockAuthorizer{roles: map[string]models.UserRole{
		"admin":   models.RoleAdmin,
		"chapter": models.RoleChapterAdmin,
		"student": models.RoleStudent,
	}}
	return NewEngine(store, auth, nil, zap.NewNop(), testItems())
}

func TestEngineFilterByApprovalState(t *testing.T) {
	engine := newTestEngine(&mockItemStore{})

	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalPending)))
	visible := engine.VisibleItems()
	require.Len(t, visible, 3)
	for _, item := range visible {
		assert.False(t, item.IsApproved())
	}

	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalApproved)))
	visible = engine.VisibleItems()
	require.Len(t, visible, 2)
	for _, item := range visible {
		assert.True(t, item.IsApproved())
	}

	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalAll)))
	assert.Len(t, engine.VisibleItems(), 5)
}

func TestEngineFilterBySearchTerm(t *testing.T) {
	engine := newTestEngine(&mockItemStore{})

	require.NoError(t, engine.SetFilter(FilterSearch, "go"))
	visible := engine.VisibleItems()
	require.Len(t, visible, 3)

	// Search combines with the approval filter.
	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalPending)))
	assert.Len(t, engine.VisibleItems(), 2)
}

func TestEngineSetFilterRejectsUnknownValues(t *testing.T) {
	engine := newTestEngine(&mockItemStore{})

	err := engine.SetFilter(FilterApproval, "sort-of-approved")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = engine.SetFilter(FilterKey("color"), "red")
	require.Error(t, err)
}

func TestEngineSelectAllSelectsOnlyFilteredSubset(t *testing.T) {
	engine := newTestEngine(&mockItemStore{})
	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalPending)))

	engine.SelectAll(true)
	assert.Equal(t, []string{"r1", "r3", "r4"}, engine.SelectedIDs())

	engine.SelectAll(false)
	assert.Empty(t, engine.SelectedIDs())
}

func TestEngineSetApprovalUpdatesLocalStateAfterConfirm(t *testing.T) {
	store := &mockItemStore{}
	engine := newTestEngine(store)

	err := engine.SetApproval(context.Background(), "admin", "r1", true)
	require.NoError(t, err)
	assert.True(t, store.updates["r1"])

	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalApproved)))
	ids := make([]string, 0)
	for _, item := range engine.VisibleItems() {
		ids = append(ids, item.ItemID())
	}
	assert.Contains(t, ids, "r1")
	assert.Empty(t, engine.Updating())
}

func TestEngineSetApprovalFailureLeavesStateUnchanged(t *testing.T) {
	store := &mockItemStore{failIDs: map[string]bool{"r1": true}}
	engine := newTestEngine(store)

	err := engine.SetApproval(context.Background(), "admin", "r1", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStore)

	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalPending)))
	ids := make([]string, 0)
	for _, item := range engine.VisibleItems() {
		ids = append(ids, item.ItemID())
	}
	assert.Contains(t, ids, "r1")
}

func TestEngineSetApprovalUnauthorized(t *testing.T) {
	store := &mockItemStore{}
	engine := newTestEngine(store)

	err := engine.SetApproval(context.Background(), "student", "r1", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Zero(t, store.calls, "authorization failures must precede any store call")
}

func TestEngineSetApprovalUnknownItem(t *testing.T) {
	engine := newTestEngine(&mockItemStore{})

	err := engine.SetApproval(context.Background(), "admin", "missing", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEngineBatchApprovalPartialFailure(t *testing.T) {
	store := &mockItemStore{failIDs: map[string]bool{"r2": true, "r4": true}}
	engine := newTestEngine(store)
	engine.SelectAll(true)
	require.Len(t, engine.SelectedIDs(), 5)

	result, err := engine.SetBatchApproval(context.Background(), "chapter", true)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.ElementsMatch(t, []string{"r2", "r4"}, result.FailedIDs)

	// Selection is cleared even though two items failed.
	assert.Empty(t, engine.SelectedIDs())
	assert.False(t, engine.BatchUpdating())

	// Succeeded items show the new state, failed ones keep the old one.
	require.NoError(t, engine.SetFilter(FilterApproval, string(models.ApprovalApproved)))
	approved := make(map[string]bool)
	for _, item := range engine.VisibleItems() {
		approved[item.ItemID()] = true
	}
	assert.True(t, approved["r1"])
	assert.True(t, approved["r3"])
	assert.True(t, approved["r5"])
	assert.False(t, approved["r4"])
}

func TestEngineBatchApprovalEmptySelectionIsNoOp(t *testing.T) {
	store := &mockItemStore{}
	engine := newTestEngine(store)

	result, err := engine.SetBatchApproval(context.Background(), "admin", true)
	require.NoError(t, err)
	assert.Zero(t, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Zero(t, store.calls)
}

func TestEngineBatchApprovalUnauthorized(t *testing.T) {
	store := &mockItemStore{}
	engine := newTestEngine(store)
	engine.SelectAll(true)

	_, err := engine.SetBatchApproval(context.Background(), "student", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Zero(t, store.calls)
	// Unauthorized batch attempts keep the selection intact.
	assert.Len(t, engine.SelectedIDs(), 5)
}

func TestEngineAuthorizerFailureSurfacesAsUnauthorized(t *testing.T) {
	store := &mockItemStore{}
	auth := &mockAuthorizer{err: errors.New("directory down")}
	engine := NewEngine(store, auth, nil, zap.NewNop(), testItems())

	err := engine.SetApproval(context.Background(), "admin", "r1", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Zero(t, store.calls)
}
