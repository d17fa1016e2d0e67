package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos"
	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/versioning"
)

// AuditService reads the trail. Writing happens inside the transactions
// that change records; nothing appends through this surface.
type AuditService interface {
	ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]*types.AuditEvent, error)
	ListByEntity(ctx context.Context, entityKind string, entityID uuid.UUID) ([]*types.AuditEvent, error)
}

type auditService struct {
	db        *gorm.DB
	log       *logger.Logger
	auditRepo repos.AuditRepo
}

var validAuditEntityKinds = map[string]struct{}{
	"iep":           {},
	"present_level": {},
	"approval":      {},
	"student":       {},
	"document":      {},
}

func NewAuditService(db *gorm.DB, log *logger.Logger, auditRepo repos.AuditRepo) AuditService {
	serviceLog := log.With("service", "AuditService")
	return &auditService{db: db, log: serviceLog, auditRepo: auditRepo}
}

func (as *auditService) ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]*types.AuditEvent, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "audit.list_by_student", "student id is required", nil)
	}
	return as.auditRepo.ListByStudent(dbctx.Context{Ctx: ctx}, studentID, limit)
}

func (as *auditService) ListByEntity(ctx context.Context, entityKind string, entityID uuid.UUID) ([]*types.AuditEvent, error) {
	entityKind = strings.ToLower(strings.TrimSpace(entityKind))
	if _, ok := validAuditEntityKinds[entityKind]; !ok {
		return nil, versioning.NewError(versioning.CodeValidation, "audit.list_by_entity", "unknown entity kind", nil)
	}
	if entityID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "audit.list_by_entity", "entity id is required", nil)
	}
	return as.auditRepo.ListByEntity(dbctx.Context{Ctx: ctx}, entityKind, entityID)
}
