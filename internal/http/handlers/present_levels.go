package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/http/response"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/services"
)

type PresentLevelHandler struct {
	log     *logger.Logger
	service services.PresentLevelService
}

func NewPresentLevelHandler(log *logger.Logger, service services.PresentLevelService) *PresentLevelHandler {
	return &PresentLevelHandler{
		log:     log.With("handler", "PresentLevelHandler"),
		service: service,
	}
}

// POST /api/students/:id/present-levels
// { "academic_year": "2024-2025", "content": { ... } }
func (h *PresentLevelHandler) CreateDraft(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var req struct {
		AcademicYear string          `json:"academic_year"`
		Content      json.RawMessage `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	created, err := h.service.CreateDraft(c.Request.Context(), studentID, req.AcademicYear, req.Content)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"assessment": created})
}

// GET /api/students/:id/present-levels/latest?academic_year=2024-2025
func (h *PresentLevelHandler) GetLatest(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.service.GetLatest(c.Request.Context(), studentID, c.Query("academic_year"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": rec})
}

// GET /api/students/:id/present-levels/versions/:version?academic_year=2024-2025
func (h *PresentLevelHandler) GetVersion(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.service.GetVersion(c.Request.Context(), studentID, c.Query("academic_year"), version)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": rec})
}

// GET /api/students/:id/present-levels/history?academic_year=2024-2025
func (h *PresentLevelHandler) History(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	lineage, err := h.service.History(c.Request.Context(), studentID, c.Query("academic_year"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessments": lineage})
}

// POST /api/students/:id/present-levels/finalize
// { "academic_year": "2024-2025" }
func (h *PresentLevelHandler) Finalize(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var req struct {
		AcademicYear string `json:"academic_year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	rec, err := h.service.Finalize(c.Request.Context(), studentID, req.AcademicYear)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": rec})
}
