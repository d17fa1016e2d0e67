package approvals

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type ApprovalRepo interface {
	Create(dbc dbctx.Context, req *types.ApprovalRequest) (*types.ApprovalRequest, error)
	GetByID(dbc dbctx.Context, requestID uuid.UUID) (*types.ApprovalRequest, error)
	ListPending(dbc dbctx.Context, limit, offset int) ([]*types.ApprovalRequest, error)
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.ApprovalRequest, error)
	Decide(dbc dbctx.Context, requestID uuid.UUID, toStatus, decidedBy, note string, at time.Time) (bool, error)
	SupersedePending(dbc dbctx.Context, studentID uuid.UUID, academicYear string) ([]*types.ApprovalRequest, error)
}

type approvalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApprovalRepo(db *gorm.DB, baseLog *logger.Logger) ApprovalRepo {
	repoLog := baseLog.With("repo", "ApprovalRepo")
	return &approvalRepo{db: db, log: repoLog}
}

func (ar *approvalRepo) Create(dbc dbctx.Context, req *types.ApprovalRequest) (*types.ApprovalRequest, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = types.ApprovalPending
	}

	if err := transaction.WithContext(dbc.Ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

func (ar *approvalRepo) GetByID(dbc dbctx.Context, requestID uuid.UUID) (*types.ApprovalRequest, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var result types.ApprovalRequest
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", requestID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "approval.get_by_id", err)
		}
		return nil, err
	}
	return &result, nil
}

func (ar *approvalRepo) ListPending(dbc dbctx.Context, limit, offset int) ([]*types.ApprovalRequest, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var results []*types.ApprovalRequest
	err := transaction.WithContext(dbc.Ctx).
		Where("status = ?", types.ApprovalPending).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *approvalRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.ApprovalRequest, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.ApprovalRequest
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Decide resolves one pending request. False means it was no longer
// pending, so someone else decided or superseded it first.
func (ar *approvalRepo) Decide(dbc dbctx.Context, requestID uuid.UUID, toStatus, decidedBy, note string, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if requestID == uuid.Nil {
		return false, versioning.NewError(versioning.CodeValidation, "approval.decide", "request id is required", nil)
	}

	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ApprovalRequest{}).
		Where("id = ? AND status = ?", requestID, types.ApprovalPending).
		Updates(map[string]any{
			"status":        toStatus,
			"decided_by":    decidedBy,
			"decision_note": note,
			"decided_at":    at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SupersedePending flips every pending request in the scope and returns
// the rows it flipped. Called before a new submission, and when a newer
// draft lands while review is open; the caller audits each returned row
// and reverts the IEP versions they pointed at.
func (ar *approvalRepo) SupersedePending(dbc dbctx.Context, studentID uuid.UUID, academicYear string) ([]*types.ApprovalRequest, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var pending []*types.ApprovalRequest
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND academic_year = ? AND status = ?", studentID, academicYear, types.ApprovalPending).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, req := range pending {
		ids = append(ids, req.ID)
	}

	now := time.Now().UTC()
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ApprovalRequest{}).
		Where("id IN ? AND status = ?", ids, types.ApprovalPending).
		Updates(map[string]any{
			"status":     types.ApprovalSuperseded,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	for _, req := range pending {
		req.Status = types.ApprovalSuperseded
		req.UpdatedAt = now
	}
	return pending, nil
}
