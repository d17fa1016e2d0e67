package repos

import (
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos/approvals"
	"github.com/brightpath/iep-backend/internal/data/repos/audit"
	"github.com/brightpath/iep-backend/internal/data/repos/documents"
	"github.com/brightpath/iep-backend/internal/data/repos/ieps"
	"github.com/brightpath/iep-backend/internal/data/repos/presentlevels"
	"github.com/brightpath/iep-backend/internal/data/repos/students"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

type StudentRepo = students.StudentRepo
type DocumentRepo = documents.DocumentRepo

type IEPStore = ieps.IEPStore
type PresentLevelStore = presentlevels.PresentLevelStore

type ApprovalRepo = approvals.ApprovalRepo
type AuditRepo = audit.AuditRepo

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return students.NewStudentRepo(db, baseLog)
}
func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return documents.NewDocumentRepo(db, baseLog)
}

func NewIEPStore(db *gorm.DB, auditRepo AuditRepo, baseLog *logger.Logger) IEPStore {
	return ieps.NewIEPStore(db, auditRepo, baseLog)
}
func NewPresentLevelStore(db *gorm.DB, auditRepo AuditRepo, baseLog *logger.Logger) PresentLevelStore {
	return presentlevels.NewPresentLevelStore(db, auditRepo, baseLog)
}

func NewApprovalRepo(db *gorm.DB, baseLog *logger.Logger) ApprovalRepo {
	return approvals.NewApprovalRepo(db, baseLog)
}
func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return audit.NewAuditRepo(db, baseLog)
}
