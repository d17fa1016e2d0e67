package ieps

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos/audit"
	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/ctxutil"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/versioning"
)

// IEPStore is the durable surface behind the IEP version manager, plus the
// status transitions the approval flow drives. InsertVersion returns the
// driver error untouched; the conflict classifier needs the raw constraint
// detail. A successful insert also writes its version_created audit row in
// the same transaction, so the trail cannot miss a committed version.
type IEPStore interface {
	versioning.Store[*types.IEP]

	GetByID(dbc dbctx.Context, iepID uuid.UUID) (*types.IEP, error)
	UpdateStatus(dbc dbctx.Context, iepID uuid.UUID, fromStatuses []string, toStatus string) (bool, error)
}

type iepStore struct {
	db    *gorm.DB
	audit audit.AuditRepo
	log   *logger.Logger
}

func NewIEPStore(db *gorm.DB, auditRepo audit.AuditRepo, baseLog *logger.Logger) IEPStore {
	repoLog := baseLog.With("repo", "IEPStore")
	return &iepStore{db: db, audit: auditRepo, log: repoLog}
}

func (is *iepStore) InsertVersion(dbc dbctx.Context, rec *types.IEP) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = is.db
	}

	if err := transaction.WithContext(dbc.Ctx).Create(rec).Error; err != nil {
		return err
	}

	detail, _ := json.Marshal(map[string]any{
		"version":           rec.Version,
		"parent_version_id": rec.ParentVersionID,
		"academic_year":     rec.AcademicYear,
	})
	event := &types.AuditEvent{
		EntityKind: "iep",
		EntityID:   rec.ID,
		StudentID:  rec.StudentID,
		Action:     types.AuditActionVersionCreated,
		Detail:     datatypes.JSON(detail),
	}
	if actor := ctxutil.GetActor(dbc.Ctx); actor != nil {
		event.ActorID = actor.ID
		event.ActorRole = actor.Role
	}
	return is.audit.Record(dbc, event)
}

func (is *iepStore) MaxVersion(dbc dbctx.Context, scope versioning.ScopeKey) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = is.db
	}

	var max int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.IEP{}).
		Where("student_id = ? AND academic_year = ?", scope.SubjectID, scope.PeriodKey).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (is *iepStore) Latest(dbc dbctx.Context, scope versioning.ScopeKey) (*types.IEP, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = is.db
	}

	var result types.IEP
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND academic_year = ?", scope.SubjectID, scope.PeriodKey).
		Order("version DESC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "iep.latest", err)
		}
		return nil, err
	}
	return &result, nil
}

func (is *iepStore) GetVersion(dbc dbctx.Context, scope versioning.ScopeKey, version int) (*types.IEP, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = is.db
	}

	var result types.IEP
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND academic_year = ? AND version = ?", scope.SubjectID, scope.PeriodKey, version).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "iep.get_version", err)
		}
		return nil, err
	}
	return &result, nil
}

func (is *iepStore) ListLineage(dbc dbctx.Context, scope versioning.ScopeKey) ([]*types.IEP, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = is.db
	}

	var results []*types.IEP
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND academic_year = ?", scope.SubjectID, scope.PeriodKey).
		Order("version ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (is *iepStore) GetByID(dbc dbctx.Context, iepID uuid.UUID) (*types.IEP, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = is.db
	}

	var result types.IEP
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", iepID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "iep.get_by_id", err)
		}
		return nil, err
	}
	return &result, nil
}

// UpdateStatus moves one row between statuses with compare-and-set
// semantics. False means the guard did not match, either because the row
// is gone or because someone else moved it first.
func (is *iepStore) UpdateStatus(dbc dbctx.Context, iepID uuid.UUID, fromStatuses []string, toStatus string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = is.db
	}

	if iepID == uuid.Nil || len(fromStatuses) == 0 {
		return false, versioning.NewError(versioning.CodeValidation, "iep.update_status", "id and from statuses are required", nil)
	}

	res := transaction.WithContext(dbc.Ctx).
		Model(&types.IEP{}).
		Where("id = ? AND status IN ?", iepID, fromStatuses).
		Updates(map[string]any{
			"status":     toStatus,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
