package models

import "time"

// ApplicationStatus captures the mentorship application lifecycle states.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusAccepted  ApplicationStatus = "ACCEPTED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusWithdrawn ApplicationStatus = "WITHDRAWN"
)

// Valid returns true when the status is a supported value.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected, ApplicationStatusWithdrawn:
		return true
	default:
		return false
	}
}

// MentorshipProgram is a capacity-limited offering owned by a mentor.
// CurrentParticipants is a derived counter; its sole writers are the
// application review and delete paths.
type MentorshipProgram struct {
	ID                  string     `db:"id" json:"id"`
	MentorID            string     `db:"mentor_id" json:"mentor_id"`
	Title               string     `db:"title" json:"title"`
	Description         string     `db:"description" json:"description"`
	FocusArea           string     `db:"focus_area" json:"focus_area"`
	MaxParticipants     int        `db:"max_participants" json:"max_participants"`
	CurrentParticipants int        `db:"current_participants" json:"current_participants"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	ApplicationDeadline *time.Time `db:"application_deadline" json:"application_deadline,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// MentorshipApplication is a student's request against a program.
type MentorshipApplication struct {
	ID             string            `db:"id" json:"id"`
	ProgramID      string            `db:"program_id" json:"program_id"`
	MentorID       string            `db:"mentor_id" json:"mentor_id"`
	StudentID      string            `db:"student_id" json:"student_id"`
	Status         ApplicationStatus `db:"status" json:"status"`
	Message        string            `db:"message" json:"message"`
	MentorResponse *string           `db:"mentor_response" json:"mentor_response,omitempty"`
	ReviewedAt     *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail joins the application with program and student context.
type ApplicationDetail struct {
	MentorshipApplication
	ProgramTitle string `db:"program_title" json:"program_title"`
	StudentName  string `db:"student_name" json:"student_name"`
	MentorName   string `db:"mentor_name" json:"mentor_name"`
}

// ProgramFilter constrains program listings.
type ProgramFilter struct {
	MentorID   string
	FocusArea  string
	ActiveOnly bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ApplicationFilter constrains application listings.
type ApplicationFilter struct {
	ProgramID string
	MentorID  string
	StudentID string
	Status    ApplicationStatus
	Page      int
	PageSize  int
}
