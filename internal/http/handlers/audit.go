package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/http/response"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/services"
)

type AuditHandler struct {
	log     *logger.Logger
	service services.AuditService
}

func NewAuditHandler(log *logger.Logger, service services.AuditService) *AuditHandler {
	return &AuditHandler{
		log:     log.With("handler", "AuditHandler"),
		service: service,
	}
}

// GET /api/students/:id/audit?limit=100
func (h *AuditHandler) ListByStudent(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := h.service.ListByStudent(c.Request.Context(), studentID, limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"events": events})
}

// GET /api/audit/:kind/:id
func (h *AuditHandler) ListByEntity(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	events, err := h.service.ListByEntity(c.Request.Context(), c.Param("kind"), entityID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"events": events})
}
