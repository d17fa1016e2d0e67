package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/iep-backend/internal/platform/ctxutil"
)

func TestAttachActorContextForwardsHeaders(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AttachActorContext())
	var got *ctxutil.Actor
	r.GET("/api/students", func(c *gin.Context) {
		got = ctxutil.GetActor(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Header.Set("X-Actor-Id", "case-manager-7")
	req.Header.Set("X-Actor-Role", "case_manager")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got == nil || got.ID != "case-manager-7" || got.Role != "case_manager" {
		t.Fatalf("actor not attached: %+v", got)
	}
}

func TestAttachActorContextWithoutHeaders(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AttachActorContext())
	var got *ctxutil.Actor
	r.GET("/api/students", func(c *gin.Context) {
		got = ctxutil.GetActor(c.Request.Context())
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("request without actor must pass: status=%d", rec.Code)
	}
	if got != nil {
		t.Fatalf("expected no actor, got %+v", got)
	}
}
