package models

import "time"

// BlogPost represents a member-authored post moderated before publication.
type BlogPost struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Excerpt    string    `db:"excerpt" json:"excerpt"`
	Content    string    `db:"content" json:"content"`
	Tags       string    `db:"tags" json:"tags"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Approved   bool      `db:"approved" json:"approved"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ItemID implements Approvable.
func (p BlogPost) ItemID() string { return p.ID }

// IsApproved implements Approvable.
func (p BlogPost) IsApproved() bool { return p.Approved }

// SearchText implements Approvable.
func (p BlogPost) SearchText() []string {
	return []string{p.Title, p.Excerpt, p.Tags, p.AuthorName}
}

// WithApproved returns a copy with the approval flag set.
func (p BlogPost) WithApproved(approved bool) Approvable {
	p.Approved = approved
	return p
}
