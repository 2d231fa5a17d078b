package models

// Approvable is the capability surface shared by every moderated content
// type. The moderation engine operates purely over this interface and never
// inspects concrete entity fields.
type Approvable interface {
	ItemID() string
	IsApproved() bool
	// SearchText returns the fields matched case-insensitively against the
	// moderation search term.
	SearchText() []string
}

// ApprovalState filters a moderated collection by approval status.
type ApprovalState string

const (
	ApprovalAll      ApprovalState = "all"
	ApprovalApproved ApprovalState = "approved"
	ApprovalPending  ApprovalState = "pending"
)

// Valid returns true when the state is a supported filter value.
func (s ApprovalState) Valid() bool {
	switch s {
	case ApprovalAll, ApprovalApproved, ApprovalPending:
		return true
	default:
		return false
	}
}

// ContentFilter narrows moderated content listings.
type ContentFilter struct {
	Search    string
	Approval  ApprovalState
	Category  string
	AuthorID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
