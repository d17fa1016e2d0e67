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
	"github.com/brightpath/iep-backend/internal/versioning"
)

type IEPHandler struct {
	log        *logger.Logger
	iepService services.IEPService
}

func NewIEPHandler(log *logger.Logger, iepService services.IEPService) *IEPHandler {
	return &IEPHandler{
		log:        log.With("handler", "IEPHandler"),
		iepService: iepService,
	}
}

// POST /api/students/:id/ieps
// { "academic_year": "2024-2025", "content": { ... } }
func (h *IEPHandler) CreateDraft(c *gin.Context) {
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

	created, err := h.iepService.CreateDraft(c.Request.Context(), studentID, req.AcademicYear, req.Content)
	if err != nil {
		if versioning.CodeOf(err) == "" {
			h.log.Error("CreateDraft failed", "error", err, "student_id", studentID)
		}
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"iep": created})
}

// GET /api/students/:id/ieps/latest?academic_year=2024-2025
func (h *IEPHandler) GetLatest(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.iepService.GetLatest(c.Request.Context(), studentID, c.Query("academic_year"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"iep": rec})
}

// GET /api/students/:id/ieps/versions/:version?academic_year=2024-2025
func (h *IEPHandler) GetVersion(c *gin.Context) {
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
	rec, err := h.iepService.GetVersion(c.Request.Context(), studentID, c.Query("academic_year"), version)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"iep": rec})
}

// GET /api/students/:id/ieps/history?academic_year=2024-2025
func (h *IEPHandler) History(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	lineage, err := h.iepService.History(c.Request.Context(), studentID, c.Query("academic_year"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ieps": lineage})
}

// POST /api/ieps/:id/submit
func (h *IEPHandler) Submit(c *gin.Context) {
	iepID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req, err := h.iepService.Submit(c.Request.Context(), iepID)
	if err != nil {
		if versioning.CodeOf(err) == "" {
			h.log.Error("Submit failed", "error", err, "iep_id", iepID)
		}
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"approval_request": req})
}
