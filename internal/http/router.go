package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/brightpath/iep-backend/internal/http/handlers"
	httpMW "github.com/brightpath/iep-backend/internal/http/middleware"
	"github.com/brightpath/iep-backend/internal/observability"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	HealthHandler       *httpH.HealthHandler
	StudentHandler      *httpH.StudentHandler
	IEPHandler          *httpH.IEPHandler
	ApprovalHandler     *httpH.ApprovalHandler
	PresentLevelHandler *httpH.PresentLevelHandler
	DocumentHandler     *httpH.DocumentHandler
	AuditHandler        *httpH.AuditHandler
	EventsHandler       *httpH.EventsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("iep-backend"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachActorContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readycheck", cfg.HealthHandler.ReadyCheck)
	}

	api := r.Group("/api")
	{
		// Students
		if cfg.StudentHandler != nil {
			api.POST("/students", cfg.StudentHandler.Create)
			api.GET("/students", cfg.StudentHandler.List)
			api.GET("/students/:id", cfg.StudentHandler.Get)
			api.PATCH("/students/:id", cfg.StudentHandler.Update)
			api.DELETE("/students/:id", cfg.StudentHandler.Delete)
		}

		// Plans (versioned per student and academic year)
		if cfg.IEPHandler != nil {
			api.POST("/students/:id/ieps", cfg.IEPHandler.CreateDraft)
			api.GET("/students/:id/ieps/latest", cfg.IEPHandler.GetLatest)
			api.GET("/students/:id/ieps/history", cfg.IEPHandler.History)
			api.GET("/students/:id/ieps/versions/:version", cfg.IEPHandler.GetVersion)
			api.POST("/ieps/:id/submit", cfg.IEPHandler.Submit)
		}

		// Review queue
		if cfg.ApprovalHandler != nil {
			api.GET("/approvals", cfg.ApprovalHandler.ListPending)
			api.GET("/approvals/:id", cfg.ApprovalHandler.Get)
			api.POST("/approvals/:id/decide", cfg.ApprovalHandler.Decide)
			api.GET("/students/:id/approvals", cfg.ApprovalHandler.ListByStudent)
		}

		// Present levels
		if cfg.PresentLevelHandler != nil {
			api.POST("/students/:id/present-levels", cfg.PresentLevelHandler.CreateDraft)
			api.GET("/students/:id/present-levels/latest", cfg.PresentLevelHandler.GetLatest)
			api.GET("/students/:id/present-levels/history", cfg.PresentLevelHandler.History)
			api.GET("/students/:id/present-levels/versions/:version", cfg.PresentLevelHandler.GetVersion)
			api.POST("/students/:id/present-levels/finalize", cfg.PresentLevelHandler.Finalize)
		}

		// Documents
		if cfg.DocumentHandler != nil {
			api.POST("/students/:id/documents", cfg.DocumentHandler.Attach)
			api.GET("/students/:id/documents", cfg.DocumentHandler.ListByStudent)
			api.GET("/documents/:id", cfg.DocumentHandler.Get)
			api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
		}

		// Audit trail
		if cfg.AuditHandler != nil {
			api.GET("/students/:id/audit", cfg.AuditHandler.ListByStudent)
			api.GET("/audit/:kind/:id", cfg.AuditHandler.ListByEntity)
		}

		// Realtime (SSE)
		if cfg.EventsHandler != nil {
			api.GET("/events/stream", cfg.EventsHandler.Stream)
			api.POST("/events/subscribe", cfg.EventsHandler.Subscribe)
			api.POST("/events/unsubscribe", cfg.EventsHandler.Unsubscribe)
		}
	}

	return r
}
