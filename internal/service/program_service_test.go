package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
)

type mockProgramRepo struct {
	programs    map[string]*models.MentorshipProgram
	created     []*models.MentorshipProgram
	updated     []*models.MentorshipProgram
	deactivated []string
}

func newMockProgramRepo() *mockProgramRepo {
	return &mockProgramRepo{programs: map[string]*models.MentorshipProgram{}}
}

func (m *mockProgramRepo) List(ctx context.Context, filter models.ProgramFilter) ([]models.MentorshipProgram, int, error) {
	var out []models.MentorshipProgram
	for _, p := range m.programs {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.MentorID != "" && p.MentorID != filter.MentorID {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockProgramRepo) FindByID(ctx context.Context, id string) (*models.MentorshipProgram, error) {
	p, ok := m.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockProgramRepo) Create(ctx context.Context, program *models.MentorshipProgram) error {
	if program.ID == "" {
		program.ID = "prog-new"
	}
	program.IsActive = true
	m.programs[program.ID] = program
	m.created = append(m.created, program)
	return nil
}

func (m *mockProgramRepo) Update(ctx context.Context, program *models.MentorshipProgram) error {
	if _, ok := m.programs[program.ID]; !ok {
		return sql.ErrNoRows
	}
	m.programs[program.ID] = program
	m.updated = append(m.updated, program)
	return nil
}

func (m *mockProgramRepo) Deactivate(ctx context.Context, id string) error {
	p, ok := m.programs[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.IsActive = false
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newProgramService(repo *mockProgramRepo) *ProgramService {
	return NewProgramService(repo, nil, 0, &mockAudit{}, nil, nil)
}

func TestCreateProgramRequiresMentorRole(t *testing.T) {
	repo := newMockProgramRepo()
	svc := newProgramService(repo)

	req := CreateProgramRequest{
		Title:           "backend mentorship",
		Description:     "pairing on production Go services",
		FocusArea:       "backend",
		MaxParticipants: 4,
	}

	_, err := svc.Create(context.Background(), claims("student-1", models.RoleStudent), req)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	program, err := svc.Create(context.Background(), claims("mentor-1", models.RoleMentor), req)
	require.NoError(t, err)
	assert.Equal(t, "mentor-1", program.MentorID)
	assert.True(t, program.IsActive)
	assert.Zero(t, program.CurrentParticipants)
}

func TestCreateProgramValidatesCapacity(t *testing.T) {
	svc := newProgramService(newMockProgramRepo())

	_, err := svc.Create(context.Background(), claims("mentor-1", models.RoleMentor), CreateProgramRequest{
		Title:           "x",
		Description:     "y",
		FocusArea:       "z",
		MaxParticipants: 0,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUpdateProgramOwnership(t *testing.T) {
	repo := newMockProgramRepo()
	repo.programs["prog-1"] = activeProgram("prog-1", "mentor-1", 4)
	svc := newProgramService(repo)

	req := UpdateProgramRequest{
		Title:           "updated title",
		Description:     "updated description",
		FocusArea:       "backend",
		MaxParticipants: 6,
	}

	_, err := svc.Update(context.Background(), claims("mentor-2", models.RoleMentor), "prog-1", req)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	program, err := svc.Update(context.Background(), claims("mentor-1", models.RoleMentor), "prog-1", req)
	require.NoError(t, err)
	assert.Equal(t, 6, program.MaxParticipants)

	// Admins may edit any program.
	_, err = svc.Update(context.Background(), claims("admin-1", models.RoleAdmin), "prog-1", req)
	require.NoError(t, err)
}

func TestUpdateProgramRejectsShrinkBelowParticipants(t *testing.T) {
	repo := newMockProgramRepo()
	program := activeProgram("prog-1", "mentor-1", 5)
	program.CurrentParticipants = 3
	repo.programs["prog-1"] = program
	svc := newProgramService(repo)

	_, err := svc.Update(context.Background(), claims("mentor-1", models.RoleMentor), "prog-1", UpdateProgramRequest{
		Title:           "t",
		Description:     "d",
		FocusArea:       "f",
		MaxParticipants: 2,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, repo.updated)
}

func TestDeactivateProgramSoftDeletes(t *testing.T) {
	repo := newMockProgramRepo()
	repo.programs["prog-1"] = activeProgram("prog-1", "mentor-1", 4)
	svc := newProgramService(repo)

	err := svc.Deactivate(context.Background(), claims("student-1", models.RoleStudent), "prog-1")
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Deactivate(context.Background(), claims("mentor-1", models.RoleMentor), "prog-1"))
	assert.Equal(t, []string{"prog-1"}, repo.deactivated)
	assert.False(t, repo.programs["prog-1"].IsActive)
}

func TestGetProgramNotFound(t *testing.T) {
	svc := newProgramService(newMockProgramRepo())
	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
