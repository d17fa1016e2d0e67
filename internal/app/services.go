package app

import (
	"gorm.io/gorm"

	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/observability"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime/bus"
	"github.com/brightpath/iep-backend/internal/services"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type Services struct {
	Student      services.StudentService
	IEP          services.IEPService
	Approval     services.ApprovalService
	PresentLevel services.PresentLevelService
	Document     services.DocumentService
	Audit        services.AuditService
}

// wireServices builds the versioning managers and the service layer on top
// of them. dialect decides the sequencing strategy when the policy says
// auto: advisory locks on postgres, optimistic inserts elsewhere.
func wireServices(db *gorm.DB, dialect string, log *logger.Logger, r Repos, eventBus bus.Bus, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	policy := versioning.LoadPolicy(log)
	runner := versioning.NewGormTxRunner(db)
	sink := wireRetrySink(log, metrics)

	iepClassifier := versioning.NewConstraintClassifier(types.IEPVersionConstraints, types.IEPNaturalKeys)
	iepCoord := versioning.NewCoordinator(policy, iepClassifier, sink, log)
	iepSeq := versioning.NewSequencer(policy.Strategy, dialect, "iep", r.IEP)
	iepMgr := versioning.NewManager[*types.IEP]("iep", runner, r.IEP, iepSeq, iepCoord, log)

	plClassifier := versioning.NewConstraintClassifier(types.PresentLevelVersionConstraints, nil)
	plCoord := versioning.NewCoordinator(policy, plClassifier, sink, log)
	plSeq := versioning.NewSequencer(policy.Strategy, dialect, "present_level", r.PresentLevel)
	plMgr := versioning.NewManager[*types.PresentLevelAssessment]("present_level", runner, r.PresentLevel, plSeq, plCoord, log)

	return Services{
		Student:      services.NewStudentService(db, log, r.Student, r.Audit),
		IEP:          services.NewIEPService(db, log, iepMgr, r.IEP, r.Student, r.Approval, r.Audit, eventBus),
		Approval:     services.NewApprovalService(db, log, r.Approval, r.IEP, r.Audit, eventBus),
		PresentLevel: services.NewPresentLevelService(db, log, plMgr, r.PresentLevel, r.Student, r.Audit, eventBus),
		Document:     services.NewDocumentService(db, log, r.Document, r.Student, r.Audit, eventBus),
		Audit:        services.NewAuditService(db, log, r.Audit),
	}
}

func wireRetrySink(log *logger.Logger, metrics *observability.Metrics) versioning.Sink {
	logSink := versioning.NewLogSink(log)
	if metrics == nil {
		return logSink
	}
	return versioning.FanoutSink{logSink, &retryMetricsSink{metrics: metrics}}
}
