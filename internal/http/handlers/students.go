package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/http/response"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/services"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type StudentHandler struct {
	log            *logger.Logger
	studentService services.StudentService
}

func NewStudentHandler(log *logger.Logger, studentService services.StudentService) *StudentHandler {
	return &StudentHandler{
		log:            log.With("handler", "StudentHandler"),
		studentService: studentService,
	}
}

// POST /api/students
// { "external_ref": "...", "first_name": "...", "last_name": "...", "grade_level": "...",
//   "date_of_birth": "2015-04-02", "primary_disability": "...", "case_manager": "..." }
func (h *StudentHandler) Create(c *gin.Context) {
	var req struct {
		ExternalRef       string `json:"external_ref"`
		FirstName         string `json:"first_name"`
		LastName          string `json:"last_name"`
		GradeLevel        string `json:"grade_level"`
		DateOfBirth       string `json:"date_of_birth"`
		PrimaryDisability string `json:"primary_disability"`
		CaseManager       string `json:"case_manager"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	input := services.CreateStudentInput{
		ExternalRef:       req.ExternalRef,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		GradeLevel:        req.GradeLevel,
		PrimaryDisability: req.PrimaryDisability,
		CaseManager:       req.CaseManager,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		input.DateOfBirth = &dob
	}

	student, err := h.studentService.Create(c.Request.Context(), input)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"student": student})
}

// GET /api/students?limit=50&offset=0
// GET /api/students?external_ref=S-1001
func (h *StudentHandler) List(c *gin.Context) {
	if ref := c.Query("external_ref"); ref != "" {
		student, err := h.studentService.GetByExternalRef(c.Request.Context(), ref)
		if err != nil {
			response.RespondServiceError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"students": []any{student}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	students, err := h.studentService.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error("List students failed", "error", err)
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"students": students})
}

// GET /api/students/:id
func (h *StudentHandler) Get(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	student, err := h.studentService.Get(c.Request.Context(), studentID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"student": student})
}

// PATCH /api/students/:id
// Any subset of the create fields except external_ref.
func (h *StudentHandler) Update(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var req struct {
		FirstName         *string `json:"first_name"`
		LastName          *string `json:"last_name"`
		GradeLevel        *string `json:"grade_level"`
		DateOfBirth       *string `json:"date_of_birth"`
		PrimaryDisability *string `json:"primary_disability"`
		CaseManager       *string `json:"case_manager"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	input := services.UpdateStudentInput{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		GradeLevel:        req.GradeLevel,
		PrimaryDisability: req.PrimaryDisability,
		CaseManager:       req.CaseManager,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		input.DateOfBirth = &dob
	}

	student, err := h.studentService.Update(c.Request.Context(), studentID, input)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"student": student})
}

// DELETE /api/students/:id
func (h *StudentHandler) Delete(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.studentService.Delete(c.Request.Context(), studentID); err != nil {
		if versioning.CodeOf(err) == "" {
			h.log.Error("Delete student failed", "error", err, "student_id", studentID)
		}
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}
