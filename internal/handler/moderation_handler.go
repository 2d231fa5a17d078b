package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umoja-platform/umoja-api/internal/middleware"
	"github.com/umoja-platform/umoja-api/internal/service"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/response"
)

// ModerationHandler exposes approval decisions over registered content kinds.
type ModerationHandler struct {
	service *service.ModerationService
}

// NewModerationHandler creates a new handler.
func NewModerationHandler(svc *service.ModerationService) *ModerationHandler {
	return &ModerationHandler{service: svc}
}

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

type batchApprovalRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1"`
	Approved *bool    `json:"approved" binding:"required"`
}

// Queue godoc
// @Summary Moderation queue
// @Description List items of one content kind for moderation
// @Tags Moderation
// @Produce json
// @Param kind path string true "Content kind (resources|blog-posts)"
// @Param approval query string false "Approval filter (all|approved|pending)"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /moderation/{kind} [get]
func (h *ModerationHandler) Queue(c *gin.Context) {
	items, pagination, err := h.service.Queue(c.Request.Context(), c.Param("kind"), contentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Decide godoc
// @Summary Approve or reject one item
// @Description Apply a single approval decision to one item
// @Tags Moderation
// @Accept json
// @Produce json
// @Param kind path string true "Content kind (resources|blog-posts)"
// @Param id path string true "Item ID"
// @Param payload body approvalRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /moderation/{kind}/{id}/approval [patch]
func (h *ModerationHandler) Decide(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}
	if err := h.service.Decide(c.Request.Context(), c.Param("kind"), claims.UserID, c.Param("id"), *req.Approved); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "approved": *req.Approved}, nil)
}

// DecideBatch godoc
// @Summary Approve or reject a batch
// @Description Apply one decision to a set of items; per-item failures are reported, not fatal
// @Tags Moderation
// @Accept json
// @Produce json
// @Param kind path string true "Content kind (resources|blog-posts)"
// @Param payload body batchApprovalRequest true "Batch decision payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /moderation/{kind}/approval/batch [post]
func (h *ModerationHandler) DecideBatch(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req batchApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.service.DecideBatch(c.Request.Context(), c.Param("kind"), claims.UserID, req.IDs, *req.Approved)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result, nil)
}
