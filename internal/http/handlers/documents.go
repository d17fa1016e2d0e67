package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/http/response"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/services"
)

type DocumentHandler struct {
	log     *logger.Logger
	service services.DocumentService
}

func NewDocumentHandler(log *logger.Logger, service services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		log:     log.With("handler", "DocumentHandler"),
		service: service,
	}
}

// POST /api/students/:id/documents
// { "file_name": "...", "content_type": "...", "size_bytes": 123,
//   "storage_key": "...", "category": "evaluation", "metadata": { ... } }
func (h *DocumentHandler) Attach(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var req struct {
		FileName    string          `json:"file_name"`
		ContentType string          `json:"content_type"`
		SizeBytes   int64           `json:"size_bytes"`
		StorageKey  string          `json:"storage_key"`
		Category    string          `json:"category"`
		Metadata    json.RawMessage `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	doc, err := h.service.Attach(c.Request.Context(), studentID, services.AttachDocumentInput{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		StorageKey:  req.StorageKey,
		Category:    req.Category,
		Metadata:    req.Metadata,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"document": doc})
}

// GET /api/students/:id/documents?category=evaluation
func (h *DocumentHandler) ListByStudent(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	docs, err := h.service.ListByStudent(c.Request.Context(), studentID, c.Query("category"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"documents": docs})
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	doc, err := h.service.Get(c.Request.Context(), documentID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), documentID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}
