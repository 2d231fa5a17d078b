package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/umoja-platform/umoja-api/internal/middleware"
	"github.com/umoja-platform/umoja-api/internal/models"
	"github.com/umoja-platform/umoja-api/internal/service"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/response"
)

// programCache evicts cached program details after capacity-moving changes.
type programCache interface {
	InvalidateCache(ctx context.Context, programID string)
}

// ApplicationHandler wires HTTP endpoints to the application lifecycle service.
type ApplicationHandler struct {
	service  *service.ApplicationService
	programs programCache
}

// NewApplicationHandler creates a new handler. The program cache is evicted
// after capacity-moving reviews and deletes.
func NewApplicationHandler(svc *service.ApplicationService, programs programCache) *ApplicationHandler {
	return &ApplicationHandler{service: svc, programs: programs}
}

// List godoc
// @Summary List mentorship applications
// @Description List applications scoped to the actor's role
// @Tags Mentorship
// @Produce json
// @Param program_id query string false "Program filter"
// @Param status query string false "Status filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /mentorship/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	filter := models.ApplicationFilter{
		ProgramID: c.Query("program_id"),
		Status:    models.ApplicationStatus(c.Query("status")),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.Query("page_size")); err == nil {
		filter.PageSize = size
	}

	applications, pagination, err := h.service.List(c.Request.Context(), filter, middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, pagination)
}

// Submit godoc
// @Summary Submit mentorship application
// @Description Apply to a mentorship program
// @Tags Mentorship
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mentorship/applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	application, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, application)
}

// Review godoc
// @Summary Review mentorship application
// @Description Accept, reject, or withdraw an application
// @Tags Mentorship
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.ReviewApplicationRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mentorship/applications/{id}/review [patch]
func (h *ApplicationHandler) Review(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	application, err := h.service.Review(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.programs != nil {
		h.programs.InvalidateCache(c.Request.Context(), application.ProgramID)
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// Delete godoc
// @Summary Delete mentorship application
// @Description Remove an application; accepted applications release their slot
// @Tags Mentorship
// @Param id path string true "Application ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mentorship/applications/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	application, err := h.service.Delete(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.programs != nil {
		h.programs.InvalidateCache(c.Request.Context(), application.ProgramID)
	}
	response.NoContent(c)
}
