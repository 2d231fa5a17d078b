package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umoja-platform/umoja-api/internal/models"
)

// ErrCapacityExhausted signals that a conditional capacity increment matched
// no row: the program was already full at commit time.
var ErrCapacityExhausted = errors.New("program capacity exhausted")

// ApplicationRepository handles persistence of mentorship applications. The
// status transitions with capacity side effects run inside a single
// transaction so the counter and the status never diverge.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, program_id, mentor_id, student_id, status, message, mentor_response, reviewed_at, created_at, updated_at`

// List returns applications joined with program and participant context.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM mentorship_applications a
LEFT JOIN mentorship_programs p ON p.id = a.program_id
LEFT JOIN users s ON s.id = a.student_id
LEFT JOIN users m ON m.id = a.mentor_id`
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("a.mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT a.id, a.program_id, a.mentor_id, a.student_id, a.status, a.message, a.mentor_response, a.reviewed_at, a.created_at, a.updated_at,
        p.title AS program_title, s.full_name AS student_name, m.full_name AS mentor_name
        %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.MentorshipApplication, error) {
	query := fmt.Sprintf("SELECT %s FROM mentorship_applications WHERE id = $1", applicationColumns)
	var application models.MentorshipApplication
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// Exists reports whether any application exists for the program/student pair.
func (r *ApplicationRepository) Exists(ctx context.Context, programID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM mentorship_applications WHERE program_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, programID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check application exists: %w", err)
	}
	return true, nil
}

// Create persists a new pending application. It never touches the program's
// participant counter; capacity is reserved only on acceptance.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.MentorshipApplication) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	application.Status = models.ApplicationStatusPending
	application.CreatedAt = now
	application.UpdatedAt = now
	const query = `INSERT INTO mentorship_applications (id, program_id, mentor_id, student_id, status, message, mentor_response, reviewed_at, created_at, updated_at)
        VALUES (:id, :program_id, :mentor_id, :student_id, :status, :message, :mentor_response, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatusParams describes one committed status transition. CapacityDelta
// is +1 for a transition into ACCEPTED, -1 for a transition out of it, and 0
// otherwise.
type UpdateStatusParams struct {
	ApplicationID  string
	ProgramID      string
	NewStatus      models.ApplicationStatus
	MentorResponse *string
	ReviewedAt     time.Time
	CapacityDelta  int
}

// UpdateStatus commits a status transition and its capacity side effect as
// one transaction. The increment is conditional on capacity still being
// available, so concurrent accepts on a near-full program cannot over-admit:
// when the guard matches no row the whole transaction rolls back with
// ErrCapacityExhausted.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := applyCapacityDelta(ctx, tx, params.ProgramID, params.CapacityDelta); err != nil {
		return err
	}

	const query = `UPDATE mentorship_applications SET status = $2, mentor_response = $3, reviewed_at = $4, updated_at = $5 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, params.ApplicationID, params.NewStatus, params.MentorResponse, params.ReviewedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}
	return nil
}

// Delete removes an application, reversing its capacity effect in the same
// transaction when it was accepted.
func (r *ApplicationRepository) Delete(ctx context.Context, applicationID, programID string, releaseCapacity bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if releaseCapacity {
		if err := applyCapacityDelta(ctx, tx, programID, -1); err != nil {
			return err
		}
	}

	const query = `DELETE FROM mentorship_applications WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, applicationID)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

func applyCapacityDelta(ctx context.Context, tx *sqlx.Tx, programID string, delta int) error {
	switch {
	case delta > 0:
		const query = `UPDATE mentorship_programs SET current_participants = current_participants + 1, updated_at = $2
            WHERE id = $1 AND current_participants < max_participants`
		res, err := tx.ExecContext(ctx, query, programID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("increment participants: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrCapacityExhausted
		}
	case delta < 0:
		const query = `UPDATE mentorship_programs SET current_participants = current_participants - 1, updated_at = $2
            WHERE id = $1 AND current_participants > 0`
		res, err := tx.ExecContext(ctx, query, programID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("decrement participants: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("decrement participants: counter already at zero for program %s", programID)
		}
	}
	return nil
}
