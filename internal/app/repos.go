package app

import (
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

type Repos struct {
	Student      repos.StudentRepo
	Document     repos.DocumentRepo
	IEP          repos.IEPStore
	PresentLevel repos.PresentLevelStore
	Approval     repos.ApprovalRepo
	Audit        repos.AuditRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	audit := repos.NewAuditRepo(db, log)
	return Repos{
		Student:      repos.NewStudentRepo(db, log),
		Document:     repos.NewDocumentRepo(db, log),
		IEP:          repos.NewIEPStore(db, audit, log),
		PresentLevel: repos.NewPresentLevelStore(db, audit, log),
		Approval:     repos.NewApprovalRepo(db, log),
		Audit:        audit,
	}
}
