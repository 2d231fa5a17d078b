package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-platform/umoja-api/internal/middleware"
	"github.com/umoja-platform/umoja-api/internal/models"
	"github.com/umoja-platform/umoja-api/internal/repository"
	"github.com/umoja-platform/umoja-api/internal/service"
)

type stubApplicationRepo struct {
	application *models.MentorshipApplication
	deleted     bool
}

func (r *stubApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	return nil, 0, nil
}

func (r *stubApplicationRepo) FindByID(ctx context.Context, id string) (*models.MentorshipApplication, error) {
	return r.application, nil
}

func (r *stubApplicationRepo) Exists(ctx context.Context, programID, studentID string) (bool, error) {
	return false, nil
}

func (r *stubApplicationRepo) Create(ctx context.Context, application *models.MentorshipApplication) error {
	return nil
}

func (r *stubApplicationRepo) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	return nil
}

func (r *stubApplicationRepo) Delete(ctx context.Context, applicationID, programID string, releaseCapacity bool) error {
	r.deleted = true
	return nil
}

type stubProgramReader struct{}

func (r *stubProgramReader) FindByID(ctx context.Context, id string) (*models.MentorshipProgram, error) {
	return &models.MentorshipProgram{ID: id}, nil
}

type recordingProgramCache struct {
	evicted []string
}

func (c *recordingProgramCache) InvalidateCache(ctx context.Context, programID string) {
	c.evicted = append(c.evicted, programID)
}

func TestApplicationDeleteEvictsProgramCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubApplicationRepo{application: &models.MentorshipApplication{
		ID:        "app-1",
		ProgramID: "prog-1",
		Status:    models.ApplicationStatusAccepted,
	}}
	cache := &recordingProgramCache{}
	svc := service.NewApplicationService(repo, &stubProgramReader{}, nil, nil, nil, nil, nil)
	handler := NewApplicationHandler(svc, cache)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodDelete, "/mentorship/applications/app-1", nil)
	require.NoError(t, err)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, repo.deleted)
	assert.Equal(t, []string{"prog-1"}, cache.evicted, "cached participant counts go stale without eviction")
}
