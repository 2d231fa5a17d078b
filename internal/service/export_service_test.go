package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/storage"
)

// mockRosterRepo pages accepted applications the way the real repository
// does, including its per-page cap.
type mockRosterRepo struct {
	accepted []models.ApplicationDetail
}

func (m *mockRosterRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(m.accepted) {
		return nil, len(m.accepted), nil
	}
	end := start + size
	if end > len(m.accepted) {
		end = len(m.accepted)
	}
	return m.accepted[start:end], len(m.accepted), nil
}

type mockExportPrograms struct {
	program *models.MentorshipProgram
}

func (m *mockExportPrograms) FindByID(ctx context.Context, id string) (*models.MentorshipProgram, error) {
	return m.program, nil
}

func acceptedRoster(n int) []models.ApplicationDetail {
	now := time.Now().UTC()
	roster := make([]models.ApplicationDetail, n)
	for i := range roster {
		roster[i] = models.ApplicationDetail{
			MentorshipApplication: models.MentorshipApplication{
				ID:        fmt.Sprintf("app-%d", i+1),
				ProgramID: "prog-1",
				Status:    models.ApplicationStatusAccepted,
				CreatedAt: now,
			},
			StudentName: fmt.Sprintf("Student %d", i+1),
		}
	}
	return roster
}

func newExportFixture(t *testing.T, accepted int, maxParticipants int) *ExportService {
	t.Helper()
	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewExportService(
		&mockRosterRepo{accepted: acceptedRoster(accepted)},
		&mockExportPrograms{program: &models.MentorshipProgram{
			ID:              "prog-1",
			MentorID:        "mentor-1",
			Title:           "Go Mentorship",
			MaxParticipants: maxParticipants,
		}},
		archive,
		storage.NewSignedURLSigner("export-secret", time.Hour),
		nil,
	)
}

func TestRosterDownloadRoundTrip(t *testing.T) {
	svc := newExportFixture(t, 3, 5)
	mentor := &models.JWTClaims{UserID: "mentor-1", Role: models.RoleMentor}

	result, err := svc.Roster(context.Background(), mentor, "prog-1", ExportFormatCSV)
	require.NoError(t, err)
	require.NotEmpty(t, result.DownloadToken, "archived exports must carry a token")

	downloaded, err := svc.Download(result.DownloadToken)
	require.NoError(t, err)
	assert.Equal(t, result.Data, downloaded.Data)
	assert.Equal(t, "text/csv", downloaded.ContentType)
	assert.Equal(t, result.FileName, downloaded.FileName)
}

func TestRosterPagesThroughLargePrograms(t *testing.T) {
	svc := newExportFixture(t, 150, 200)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	result, err := svc.Roster(context.Background(), admin, "prog-1", ExportFormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	assert.Len(t, lines, 151, "header plus every accepted participant")
}

func TestRosterForbidsOtherMentor(t *testing.T) {
	svc := newExportFixture(t, 1, 5)
	other := &models.JWTClaims{UserID: "mentor-2", Role: models.RoleMentor}

	_, err := svc.Roster(context.Background(), other, "prog-1", ExportFormatCSV)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDownloadRejectsTamperedToken(t *testing.T) {
	svc := newExportFixture(t, 1, 5)
	mentor := &models.JWTClaims{UserID: "mentor-1", Role: models.RoleMentor}

	result, err := svc.Roster(context.Background(), mentor, "prog-1", ExportFormatCSV)
	require.NoError(t, err)

	_, err = svc.Download(result.DownloadToken + "0")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
