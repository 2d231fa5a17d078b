package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-platform/umoja-api/internal/middleware"
	"github.com/umoja-platform/umoja-api/internal/models"
	"github.com/umoja-platform/umoja-api/internal/service"
)

type recordingStore struct {
	mu      sync.Mutex
	updates map[string]bool
	failIDs map[string]bool
}

func (s *recordingStore) UpdateApproval(ctx context.Context, id string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[id] {
		return fmt.Errorf("update %s: store unavailable", id)
	}
	if s.updates == nil {
		s.updates = map[string]bool{}
	}
	s.updates[id] = approved
	return nil
}

type staticAuthorizer struct {
	roles map[string]models.UserRole
}

func (a *staticAuthorizer) RoleOf(ctx context.Context, actorID string) (models.UserRole, error) {
	role, ok := a.roles[actorID]
	if !ok {
		return "", fmt.Errorf("unknown actor")
	}
	return role, nil
}

func newModerationHandler(store *recordingStore, resources []models.Resource) *ModerationHandler {
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
		return nil, fmt.Errorf("not found")
	}
	svc := service.NewModerationService(
		map[string]service.ContentSource{"resources": {Store: store, List: list, Find: find}},
		&staticAuthorizer{roles: map[string]models.UserRole{"admin-1": models.RoleAdmin, "student-1": models.RoleStudent}},
		nil, nil, 50, nil)
	return NewModerationHandler(svc)
}

func moderationRequest(t *testing.T, method, path string, payload interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func TestModerationDecideApproves(t *testing.T) {
	store := &recordingStore{}
	handler := newModerationHandler(store, []models.Resource{{ID: "r1", Title: "intro to goroutines"}})

	approved := true
	w, c := moderationRequest(t, http.MethodPatch, "/moderation/resources/r1/approval", map[string]interface{}{"approved": &approved})
	c.Params = gin.Params{{Key: "kind", Value: "resources"}, {Key: "id", Value: "r1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"r1": true}, store.updates)
}

func TestModerationDecideRejectsStudent(t *testing.T) {
	store := &recordingStore{}
	handler := newModerationHandler(store, []models.Resource{{ID: "r1"}})

	w, c := moderationRequest(t, http.MethodPatch, "/moderation/resources/r1/approval", map[string]interface{}{"approved": false})
	c.Params = gin.Params{{Key: "kind", Value: "resources"}, {Key: "id", Value: "r1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Decide(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, store.updates)
}

func TestModerationBatchPartialFailureReportsMultiStatus(t *testing.T) {
	store := &recordingStore{failIDs: map[string]bool{"r2": true}}
	handler := newModerationHandler(store, []models.Resource{{ID: "r1"}, {ID: "r2"}, {ID: "r3"}})

	w, c := moderationRequest(t, http.MethodPost, "/moderation/resources/approval/batch", map[string]interface{}{
		"ids":      []string{"r1", "r2", "r3"},
		"approved": true,
	})
	c.Params = gin.Params{{Key: "kind", Value: "resources"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.DecideBatch(c)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Equal(t, map[string]bool{"r1": true, "r3": true}, store.updates)

	var envelope struct {
		Data struct {
			Succeeded int      `json:"succeeded"`
			Failed    int      `json:"failed"`
			FailedIDs []string `json:"failed_ids"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.Succeeded)
	assert.Equal(t, []string{"r2"}, envelope.Data.FailedIDs)
}

func TestModerationDecideMissingBody(t *testing.T) {
	handler := newModerationHandler(&recordingStore{}, nil)

	w, c := moderationRequest(t, http.MethodPatch, "/moderation/resources/r1/approval", nil)
	c.Params = gin.Params{{Key: "kind", Value: "resources"}, {Key: "id", Value: "r1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Decide(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
