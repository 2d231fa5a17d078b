package models

import "time"

// Resource represents a member-contributed library item awaiting moderation.
type Resource struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	URL         string    `db:"url" json:"url"`
	AuthorID    string    `db:"author_id" json:"author_id"`
	AuthorName  string    `db:"author_name" json:"author_name"`
	Approved    bool      `db:"approved" json:"approved"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ItemID implements Approvable.
func (r Resource) ItemID() string { return r.ID }

// IsApproved implements Approvable.
func (r Resource) IsApproved() bool { return r.Approved }

// SearchText implements Approvable.
func (r Resource) SearchText() []string {
	return []string{r.Title, r.Description, r.Category, r.AuthorName}
}

// WithApproved returns a copy with the approval flag set.
func (r Resource) WithApproved(approved bool) Approvable {
	r.Approved = approved
	return r
}
