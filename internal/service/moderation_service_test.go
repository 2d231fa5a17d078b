package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
)

type modStore struct {
	mu      sync.Mutex
	updates map[string]bool
	failIDs map[string]bool
}

func (s *modStore) UpdateApproval(ctx context.Context, id string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[id] {
		return fmt.Errorf("update %s: connection reset", id)
	}
	if s.updates == nil {
		s.updates = map[string]bool{}
	}
	s.updates[id] = approved
	return nil
}

type modAuth struct {
	roles map[string]models.UserRole
}

func (a *modAuth) RoleOf(ctx context.Context, actorID string) (models.UserRole, error) {
	role, ok := a.roles[actorID]
	if !ok {
		return "", fmt.Errorf("unknown actor %s", actorID)
	}
	return role, nil
}

func moderationFixture(store *modStore, resources []models.Resource) *ModerationService {
	list := func(ctx context.Context, filter models.ContentFilter) ([]models.Approvable, int, error) {
		var out []models.Approvable
		for _, r := range resources {
			out = append(out, r)
		}
		return out, len(out), nil
	}
	find := func(ctx context.Context, id string) (models.Approvable, error) {
		for _, r := range resources {
			if r.ID == id {
				return r, nil
			}
		}
		return nil, fmt.Errorf("resource %s not found", id)
	}
	sources := map[string]ContentSource{
		"resources": {Store: store, List: list, Find: find},
	}
	auth := &modAuth{roles: map[string]models.UserRole{
		"admin-1":   models.RoleAdmin,
		"chapter-1": models.RoleChapterAdmin,
		"student-1": models.RoleStudent,
	}}
	return NewModerationService(sources, auth, nil, nil, 10, nil)
}

func sampleResources(ids ...string) []models.Resource {
	out := make([]models.Resource, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Resource{ID: id, Title: "resource " + id})
	}
	return out
}

func TestDecideUnknownKind(t *testing.T) {
	svc := moderationFixture(&modStore{}, nil)
	err := svc.Decide(context.Background(), "events", "admin-1", "r1", true)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDecidePersistsApproval(t *testing.T) {
	store := &modStore{}
	svc := moderationFixture(store, sampleResources("r1"))

	require.NoError(t, svc.Decide(context.Background(), "resources", "admin-1", "r1", true))
	assert.Equal(t, map[string]bool{"r1": true}, store.updates)
}

func TestDecideRejectsNonModerator(t *testing.T) {
	store := &modStore{}
	svc := moderationFixture(store, sampleResources("r1"))

	err := svc.Decide(context.Background(), "resources", "student-1", "r1", true)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Empty(t, store.updates)
}

func TestDecideBatchAggregatesFailures(t *testing.T) {
	store := &modStore{failIDs: map[string]bool{"r2": true}}
	svc := moderationFixture(store, sampleResources("r1", "r2", "r3"))

	result, err := svc.DecideBatch(context.Background(), "resources", "chapter-1", []string{"r1", "r2", "r3"}, true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"r2"}, result.FailedIDs)
	assert.Equal(t, map[string]bool{"r1": true, "r3": true}, store.updates)
}

func TestDecideBatchEnforcesLimit(t *testing.T) {
	svc := moderationFixture(&modStore{}, sampleResources("r1"))

	ids := make([]string, 11)
	for i := range ids {
		ids[i] = fmt.Sprintf("r%d", i)
	}
	_, err := svc.DecideBatch(context.Background(), "resources", "admin-1", ids, true)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
