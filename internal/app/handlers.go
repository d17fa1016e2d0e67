package app

import (
	"gorm.io/gorm"

	httpH "github.com/brightpath/iep-backend/internal/http/handlers"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime"
)

type Handlers struct {
	Health       *httpH.HealthHandler
	Student      *httpH.StudentHandler
	IEP          *httpH.IEPHandler
	Approval     *httpH.ApprovalHandler
	PresentLevel *httpH.PresentLevelHandler
	Document     *httpH.DocumentHandler
	Audit        *httpH.AuditHandler
	Events       *httpH.EventsHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(db),
		Student:      httpH.NewStudentHandler(log, services.Student),
		IEP:          httpH.NewIEPHandler(log, services.IEP),
		Approval:     httpH.NewApprovalHandler(log, services.Approval),
		PresentLevel: httpH.NewPresentLevelHandler(log, services.PresentLevel),
		Document:     httpH.NewDocumentHandler(log, services.Document),
		Audit:        httpH.NewAuditHandler(log, services.Audit),
		Events:       httpH.NewEventsHandler(log, hub),
	}
}
