package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/http/response"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/services"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type ApprovalHandler struct {
	log             *logger.Logger
	approvalService services.ApprovalService
}

func NewApprovalHandler(log *logger.Logger, approvalService services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{
		log:             log.With("handler", "ApprovalHandler"),
		approvalService: approvalService,
	}
}

// GET /api/approvals?limit=50&offset=0
// The review queue: pending requests, newest first.
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	requests, err := h.approvalService.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error("ListPending failed", "error", err)
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"approval_requests": requests})
}

// GET /api/approvals/:id
func (h *ApprovalHandler) Get(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req, err := h.approvalService.Get(c.Request.Context(), requestID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"approval_request": req})
}

// GET /api/students/:id/approvals
func (h *ApprovalHandler) ListByStudent(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	requests, err := h.approvalService.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"approval_requests": requests})
}

// POST /api/approvals/:id/decide
// { "approve": true } or { "approve": false, "note": "why" }
func (h *ApprovalHandler) Decide(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var req struct {
		Approve *bool  `json:"approve"`
		Note    string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Approve == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	decided, err := h.approvalService.Decide(c.Request.Context(), requestID, *req.Approve, req.Note)
	if err != nil {
		if versioning.CodeOf(err) == "" {
			h.log.Error("Decide failed", "error", err, "request_id", requestID)
		}
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"approval_request": decided})
}
