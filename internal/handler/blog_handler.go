package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umoja-platform/umoja-api/internal/middleware"
	"github.com/umoja-platform/umoja-api/internal/service"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/response"
)

// BlogHandler wires HTTP endpoints to the blog service.
type BlogHandler struct {
	service *service.BlogService
}

// NewBlogHandler creates a new handler.
func NewBlogHandler(svc *service.BlogService) *BlogHandler {
	return &BlogHandler{service: svc}
}

// List godoc
// @Summary List blog posts
// @Description List blog posts with filtering and pagination
// @Tags Blog
// @Produce json
// @Param search query string false "Search term"
// @Param approval query string false "Approval filter (all|approved|pending)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /blog-posts [get]
func (h *BlogHandler) List(c *gin.Context) {
	posts, pagination, err := h.service.List(c.Request.Context(), middleware.CurrentUser(c), contentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posts, pagination)
}

// Get godoc
// @Summary Get blog post
// @Description Get a single blog post by id
// @Tags Blog
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /blog-posts/{id} [get]
func (h *BlogHandler) Get(c *gin.Context) {
	post, err := h.service.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, post, nil)
}

// Create godoc
// @Summary Submit blog post
// @Description Submit a new blog post for moderation
// @Tags Blog
// @Accept json
// @Produce json
// @Param payload body service.CreateBlogPostRequest true "Post payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /blog-posts [post]
func (h *BlogHandler) Create(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateBlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blog post payload"))
		return
	}
	post, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

// Update godoc
// @Summary Update blog post
// @Description Update an owned blog post
// @Tags Blog
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param payload body service.UpdateBlogPostRequest true "Post payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /blog-posts/{id} [put]
func (h *BlogHandler) Update(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateBlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blog post payload"))
		return
	}
	post, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, post, nil)
}

// Delete godoc
// @Summary Delete blog post
// @Description Delete an owned blog post
// @Tags Blog
// @Param id path string true "Post ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /blog-posts/{id} [delete]
func (h *BlogHandler) Delete(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
