package audit

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

type AuditRepo interface {
	Record(dbc dbctx.Context, event *types.AuditEvent) error
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID, limit int) ([]*types.AuditEvent, error)
	ListByEntity(dbc dbctx.Context, entityKind string, entityID uuid.UUID) ([]*types.AuditEvent, error)
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	repoLog := baseLog.With("repo", "AuditRepo")
	return &auditRepo{db: db, log: repoLog}
}

// Record appends one trail row. Pass the surrounding write transaction so
// the trail commits or rolls back with the change itself.
func (ar *auditRepo) Record(dbc dbctx.Context, event *types.AuditEvent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	return transaction.WithContext(dbc.Ctx).Create(event).Error
}

func (ar *auditRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID, limit int) ([]*types.AuditEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var results []*types.AuditEvent
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *auditRepo) ListByEntity(dbc dbctx.Context, entityKind string, entityID uuid.UUID) ([]*types.AuditEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.AuditEvent
	err := transaction.WithContext(dbc.Ctx).
		Where("entity_kind = ? AND entity_id = ?", entityKind, entityID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
