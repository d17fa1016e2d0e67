package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/iep-backend/internal/versioning"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondServiceError maps the service error taxonomy onto HTTP statuses.
// Errors without a known code respond 500 with a generic message so driver
// internals never reach the client.
func RespondServiceError(c *gin.Context, err error) {
	code := versioning.CodeOf(err)
	switch code {
	case versioning.CodeValidation:
		RespondError(c, http.StatusBadRequest, string(code), err)
	case versioning.CodeNotFound:
		RespondError(c, http.StatusNotFound, string(code), err)
	case versioning.CodeConflict, versioning.CodeRetryExhausted:
		RespondError(c, http.StatusConflict, string(code), err)
	case versioning.CodeTransient:
		RespondError(c, http.StatusServiceUnavailable, string(code), err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", nil)
	}
}
