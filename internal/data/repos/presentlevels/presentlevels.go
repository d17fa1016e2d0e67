package presentlevels

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

// PresentLevelStore backs the present-level version manager. Same contract
// as the IEP store: raw insert errors, CodeNotFound on empty reads, audit
// row in the insert transaction.
type PresentLevelStore interface {
	versioning.Store[*types.PresentLevelAssessment]

	UpdateStatus(dbc dbctx.Context, assessmentID uuid.UUID, fromStatuses []string, toStatus string) (bool, error)
}

type presentLevelStore struct {
	db    *gorm.DB
	audit audit.AuditRepo
	log   *logger.Logger
}

func NewPresentLevelStore(db *gorm.DB, auditRepo audit.AuditRepo, baseLog *logger.Logger) PresentLevelStore {
	repoLog := baseLog.With("repo", "PresentLevelStore")
	return &presentLevelStore{db: db, audit: auditRepo, log: repoLog}
}

func (ps *presentLevelStore) InsertVersion(dbc dbctx.Context, rec *types.PresentLevelAssessment) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ps.db
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
		EntityKind: "present_level",
		EntityID:   rec.ID,
		StudentID:  rec.StudentID,
		Action:     types.AuditActionVersionCreated,
		Detail:     datatypes.JSON(detail),
	}
	if actor := ctxutil.GetActor(dbc.Ctx); actor != nil {
		event.ActorID = actor.ID
		event.ActorRole = actor.Role
	}
	return ps.audit.Record(dbc, event)
}

func (ps *presentLevelStore) MaxVersion(dbc dbctx.Context, scope versioning.ScopeKey) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ps.db
	}

	var max int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.PresentLevelAssessment{}).
		Where("student_id = ? AND academic_year = ?", scope.SubjectID, scope.PeriodKey).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (ps *presentLevelStore) Latest(dbc dbctx.Context, scope versioning.ScopeKey) (*types.PresentLevelAssessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ps.db
	}

	var result types.PresentLevelAssessment
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND academic_year = ?", scope.SubjectID, scope.PeriodKey).
		Order("version DESC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "present_level.latest", err)
		}
		return nil, err
	}
	return &result, nil
}

func (ps *presentLevelStore) GetVersion(dbc dbctx.Context, scope versioning.ScopeKey, version int) (*types.PresentLevelAssessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ps.db
	}

	var result types.PresentLevelAssessment
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND academic_year = ? AND version = ?", scope.SubjectID, scope.PeriodKey, version).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "present_level.get_version", err)
		}
		return nil, err
	}
	return &result, nil
}

func (ps *presentLevelStore) ListLineage(dbc dbctx.Context, scope versioning.ScopeKey) ([]*types.PresentLevelAssessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ps.db
	}

	var results []*types.PresentLevelAssessment
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND academic_year = ?", scope.SubjectID, scope.PeriodKey).
		Order("version ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ps *presentLevelStore) UpdateStatus(dbc dbctx.Context, assessmentID uuid.UUID, fromStatuses []string, toStatus string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ps.db
	}

	if assessmentID == uuid.Nil || len(fromStatuses) == 0 {
		return false, versioning.NewError(versioning.CodeValidation, "present_level.update_status", "id and from statuses are required", nil)
	}

	res := transaction.WithContext(dbc.Ctx).
		Model(&types.PresentLevelAssessment{}).
		Where("id = ? AND status IN ?", assessmentID, fromStatuses).
		Updates(map[string]any{
			"status":     toStatus,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
