package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umoja-platform/umoja-api/internal/models"
)

// ProgramRepository handles persistence of mentorship programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

const programColumns = `id, mentor_id, title, description, focus_area, max_participants, current_participants, is_active, application_deadline, created_at, updated_at`

// List returns programs filtered by the provided criteria.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.MentorshipProgram, int, error) {
	base := `FROM mentorship_programs WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.FocusArea != "" {
		conditions = append(conditions, fmt.Sprintf("focus_area = $%d", len(args)+1))
		args = append(args, filter.FocusArea)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(focus_area) LIKE $%d)", n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{"created_at": true, "title": true, "application_deadline": true}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", programColumns, base+clause, sortBy, order, size, offset)

	var programs []models.MentorshipProgram
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.MentorshipProgram, error) {
	query := fmt.Sprintf("SELECT %s FROM mentorship_programs WHERE id = $1", programColumns)
	var program models.MentorshipProgram
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// Create persists a new program with an empty participant counter.
func (r *ProgramRepository) Create(ctx context.Context, program *models.MentorshipProgram) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CurrentParticipants = 0
	program.IsActive = true
	program.CreatedAt = now
	program.UpdatedAt = now
	const query = `INSERT INTO mentorship_programs (id, mentor_id, title, description, focus_area, max_participants, current_participants, is_active, application_deadline, created_at, updated_at)
        VALUES (:id, :mentor_id, :title, :description, :focus_area, :max_participants, :current_participants, :is_active, :application_deadline, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update rewrites the mentor-editable fields. The participant counter is
// deliberately not touched here; only application transitions write it.
func (r *ProgramRepository) Update(ctx context.Context, program *models.MentorshipProgram) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mentorship_programs SET title = :title, description = :description, focus_area = :focus_area, max_participants = :max_participants, application_deadline = :application_deadline, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, program)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft-deletes a program. Programs are never hard-deleted by
// their owner.
func (r *ProgramRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE mentorship_programs SET is_active = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate program: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
