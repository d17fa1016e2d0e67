package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos"
	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime"
	"github.com/brightpath/iep-backend/internal/realtime/bus"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type IEPService interface {
	CreateDraft(ctx context.Context, studentID uuid.UUID, academicYear string, content []byte) (*types.IEP, error)
	GetLatest(ctx context.Context, studentID uuid.UUID, academicYear string) (*types.IEP, error)
	GetVersion(ctx context.Context, studentID uuid.UUID, academicYear string, version int) (*types.IEP, error)
	History(ctx context.Context, studentID uuid.UUID, academicYear string) ([]*types.IEP, error)
	Submit(ctx context.Context, iepID uuid.UUID) (*types.ApprovalRequest, error)
}

type iepService struct {
	db           *gorm.DB
	log          *logger.Logger
	mgr          *versioning.Manager[*types.IEP]
	iepStore     repos.IEPStore
	studentRepo  repos.StudentRepo
	approvalRepo repos.ApprovalRepo
	auditRepo    repos.AuditRepo
	classifier   versioning.Classifier
	eventBus     bus.Bus
}

func NewIEPService(
	db *gorm.DB,
	log *logger.Logger,
	mgr *versioning.Manager[*types.IEP],
	iepStore repos.IEPStore,
	studentRepo repos.StudentRepo,
	approvalRepo repos.ApprovalRepo,
	auditRepo repos.AuditRepo,
	eventBus bus.Bus,
) IEPService {
	serviceLog := log.With("service", "IEPService")
	return &iepService{
		db:           db,
		log:          serviceLog,
		mgr:          mgr,
		iepStore:     iepStore,
		studentRepo:  studentRepo,
		approvalRepo: approvalRepo,
		auditRepo:    auditRepo,
		classifier:   versioning.NewConstraintClassifier(types.IEPVersionConstraints, types.IEPNaturalKeys),
		eventBus:     eventBus,
	}
}

// CreateDraft appends the next version of the student's plan for the given
// year. Any still-pending review in the scope now covers a stale version,
// so it gets superseded right after the new version lands.
func (is *iepService) CreateDraft(ctx context.Context, studentID uuid.UUID, academicYear string, content []byte) (*types.IEP, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "iep.create_draft", "student id is required", nil)
	}
	if err := validateAcademicYear(academicYear); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		content = []byte("{}")
	}
	if !json.Valid(content) {
		return nil, versioning.NewError(versioning.CodeValidation, "iep.create_draft", "content must be valid JSON", nil)
	}

	if _, err := is.studentRepo.GetByID(dbctx.Context{Ctx: ctx}, studentID); err != nil {
		return nil, err
	}

	actorID, _ := actorLabel(ctx)
	scope := versioning.NewScopeKey(studentID, academicYear)
	rec := &types.IEP{
		Status:    types.IEPStatusDraft,
		Content:   datatypes.JSON(content),
		CreatedBy: actorID,
	}

	created, err := is.mgr.CreateNewVersion(ctx, scope, rec)
	if err != nil {
		return nil, err
	}

	if err := is.supersedeStaleReviews(ctx, scope, created.Version); err != nil {
		// The decision path re-checks against the latest version, so a
		// failed tidy here cannot let a stale review be approved.
		is.log.Warn("Failed to supersede stale reviews", "studentID", studentID, "academicYear", academicYear, "error", err)
	}

	publish(ctx, is.eventBus, is.log, realtime.SSEMessage{
		Channel: realtime.StudentChannel(studentID),
		Event:   realtime.SSEEventIEPVersionCreated,
		Data: map[string]any{
			"iep_id":        created.ID,
			"student_id":    studentID,
			"academic_year": academicYear,
			"version":       created.Version,
		},
	})
	return created, nil
}

func (is *iepService) GetLatest(ctx context.Context, studentID uuid.UUID, academicYear string) (*types.IEP, error) {
	return is.mgr.GetLatest(ctx, versioning.NewScopeKey(studentID, academicYear))
}

func (is *iepService) GetVersion(ctx context.Context, studentID uuid.UUID, academicYear string, version int) (*types.IEP, error) {
	return is.mgr.GetVersion(ctx, versioning.NewScopeKey(studentID, academicYear), version)
}

func (is *iepService) History(ctx context.Context, studentID uuid.UUID, academicYear string) ([]*types.IEP, error) {
	return is.mgr.ListLineage(ctx, versioning.NewScopeKey(studentID, academicYear))
}

// Submit opens review for a draft plan. Only the latest version of a scope
// can go to review; older pending requests are superseded in the same
// transaction, and their plan versions drop back to draft.
func (is *iepService) Submit(ctx context.Context, iepID uuid.UUID) (*types.ApprovalRequest, error) {
	if iepID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "iep.submit", "iep id is required", nil)
	}

	actorID, actorRole := actorLabel(ctx)
	var out *types.ApprovalRequest
	var studentID uuid.UUID

	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		rec, err := is.iepStore.GetByID(dbc, iepID)
		if err != nil {
			return err
		}
		studentID = rec.StudentID
		scope := rec.Scope()

		latest, err := is.iepStore.Latest(dbc, scope)
		if err != nil {
			return err
		}
		if latest.ID != rec.ID {
			return versioning.NewError(versioning.CodeConflict, "iep.submit", "a newer version exists; submit the latest version", nil)
		}
		if rec.Status != types.IEPStatusDraft {
			return versioning.NewError(versioning.CodeConflict, "iep.submit", "only draft plans can be submitted", nil)
		}

		if err := is.supersedeInTx(dbc, scope, actorID, actorRole); err != nil {
			return err
		}

		req, err := is.approvalRepo.Create(dbc, &types.ApprovalRequest{
			IEPID:        rec.ID,
			StudentID:    rec.StudentID,
			AcademicYear: rec.AcademicYear,
			IEPVersion:   rec.Version,
			RequestedBy:  actorID,
		})
		if err != nil {
			classified := is.classifier.Classify(err, scope, rec.Version)
			if versioning.IsCode(classified, versioning.CodeConflict) {
				return versioning.NewError(versioning.CodeConflict, "iep.submit", "a review is already open for this student and year", err)
			}
			return err
		}

		ok, err := is.iepStore.UpdateStatus(dbc, rec.ID, []string{types.IEPStatusDraft}, types.IEPStatusPendingApproval)
		if err != nil {
			return err
		}
		if !ok {
			return versioning.NewError(versioning.CodeConflict, "iep.submit", "plan changed while submitting", nil)
		}

		detail, _ := json.Marshal(map[string]any{
			"version":             rec.Version,
			"approval_request_id": req.ID,
		})
		err = is.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "iep",
			EntityID:   rec.ID,
			StudentID:  rec.StudentID,
			Action:     types.AuditActionSubmitted,
			ActorID:    actorID,
			ActorRole:  actorRole,
			Detail:     datatypes.JSON(detail),
		})
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := map[string]any{
		"approval_request_id": out.ID,
		"iep_id":              out.IEPID,
		"student_id":          out.StudentID,
		"academic_year":       out.AcademicYear,
		"version":             out.IEPVersion,
	}
	publish(ctx, is.eventBus, is.log, realtime.SSEMessage{
		Channel: realtime.StudentChannel(studentID),
		Event:   realtime.SSEEventIEPSubmitted,
		Data:    msg,
	})
	publish(ctx, is.eventBus, is.log, realtime.SSEMessage{
		Channel: realtime.ChannelApprovals,
		Event:   realtime.SSEEventIEPSubmitted,
		Data:    msg,
	})
	return out, nil
}

// supersedeStaleReviews runs its own transaction after a new draft version
// commits.
func (is *iepService) supersedeStaleReviews(ctx context.Context, scope versioning.ScopeKey, newVersion int) error {
	actorID, actorRole := actorLabel(ctx)
	var flipped []*types.ApprovalRequest

	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		rows, err := is.flipPending(dbc, scope, actorID, actorRole)
		if err != nil {
			return err
		}
		flipped = rows
		return nil
	})
	if err != nil {
		return err
	}

	for _, req := range flipped {
		publish(ctx, is.eventBus, is.log, realtime.SSEMessage{
			Channel: realtime.ChannelApprovals,
			Event:   realtime.SSEEventApprovalSuperseded,
			Data: map[string]any{
				"approval_request_id": req.ID,
				"iep_id":              req.IEPID,
				"student_id":          req.StudentID,
				"superseded_by":       newVersion,
			},
		})
	}
	return nil
}

func (is *iepService) supersedeInTx(dbc dbctx.Context, scope versioning.ScopeKey, actorID, actorRole string) error {
	_, err := is.flipPending(dbc, scope, actorID, actorRole)
	return err
}

// flipPending supersedes every pending request in the scope and walks the
// plan versions they reviewed back to draft.
func (is *iepService) flipPending(dbc dbctx.Context, scope versioning.ScopeKey, actorID, actorRole string) ([]*types.ApprovalRequest, error) {
	flipped, err := is.approvalRepo.SupersedePending(dbc, scope.SubjectID, scope.PeriodKey)
	if err != nil {
		return nil, err
	}

	for _, req := range flipped {
		if _, err := is.iepStore.UpdateStatus(dbc, req.IEPID, []string{types.IEPStatusPendingApproval}, types.IEPStatusDraft); err != nil {
			return nil, err
		}
		detail, _ := json.Marshal(map[string]any{
			"iep_id":      req.IEPID,
			"iep_version": req.IEPVersion,
		})
		err = is.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "approval",
			EntityID:   req.ID,
			StudentID:  req.StudentID,
			Action:     types.AuditActionSuperseded,
			ActorID:    actorID,
			ActorRole:  actorRole,
			Detail:     datatypes.JSON(detail),
		})
		if err != nil {
			return nil, err
		}
	}
	return flipped, nil
}
