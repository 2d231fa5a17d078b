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

// BlogRepository handles persistence of blog posts.
type BlogRepository struct {
	db *sqlx.DB
}

// NewBlogRepository constructs the repository.
func NewBlogRepository(db *sqlx.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

const blogColumns = `id, title, excerpt, content, tags, author_id, author_name, approved, created_at, updated_at`

// List returns blog posts filtered by the provided criteria.
func (r *BlogRepository) List(ctx context.Context, filter models.ContentFilter) ([]models.BlogPost, int, error) {
	base := `FROM blog_posts WHERE 1=1`
	var conditions []string
	var args []interface{}

	switch filter.Approval {
	case models.ApprovalApproved:
		conditions = append(conditions, "approved = TRUE")
	case models.ApprovalPending:
		conditions = append(conditions, "approved = FALSE")
	}
	if filter.AuthorID != "" {
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)+1))
		args = append(args, filter.AuthorID)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(excerpt) LIKE $%d OR LOWER(tags) LIKE $%d OR LOWER(author_name) LIKE $%d)", n, n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{"created_at": true, "updated_at": true, "title": true}
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", blogColumns, base+clause, sortBy, order, size, offset)

	var posts []models.BlogPost
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list blog posts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count blog posts: %w", err)
	}
	return posts, total, nil
}

// FindByID returns a blog post by its ID.
func (r *BlogRepository) FindByID(ctx context.Context, id string) (*models.BlogPost, error) {
	query := fmt.Sprintf("SELECT %s FROM blog_posts WHERE id = $1", blogColumns)
	var post models.BlogPost
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		return nil, err
	}
	return &post, nil
}

// Create persists a new post. New posts always start unapproved.
func (r *BlogRepository) Create(ctx context.Context, post *models.BlogPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.Approved = false
	post.CreatedAt = now
	post.UpdatedAt = now
	const query = `INSERT INTO blog_posts (id, title, excerpt, content, tags, author_id, author_name, approved, created_at, updated_at)
        VALUES (:id, :title, :excerpt, :content, :tags, :author_id, :author_name, :approved, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("create blog post: %w", err)
	}
	return nil
}

// Update rewrites the author-editable fields.
func (r *BlogRepository) Update(ctx context.Context, post *models.BlogPost) error {
	post.UpdatedAt = time.Now().UTC()
	const query = `UPDATE blog_posts SET title = :title, excerpt = :excerpt, content = :content, tags = :tags, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, post)
	if err != nil {
		return fmt.Errorf("update blog post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateApproval flips the approval flag. Implements the moderation engine's
// ItemStore contract.
func (r *BlogRepository) UpdateApproval(ctx context.Context, id string, approved bool) error {
	const query = `UPDATE blog_posts SET approved = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, approved, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update blog post approval: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a blog post.
func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM blog_posts WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete blog post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
