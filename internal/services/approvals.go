package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

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

type ApprovalService interface {
	Get(ctx context.Context, requestID uuid.UUID) (*types.ApprovalRequest, error)
	ListPending(ctx context.Context, limit, offset int) ([]*types.ApprovalRequest, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*types.ApprovalRequest, error)
	Decide(ctx context.Context, requestID uuid.UUID, approve bool, note string) (*types.ApprovalRequest, error)
}

type approvalService struct {
	db           *gorm.DB
	log          *logger.Logger
	approvalRepo repos.ApprovalRepo
	iepStore     repos.IEPStore
	auditRepo    repos.AuditRepo
	eventBus     bus.Bus
}

func NewApprovalService(
	db *gorm.DB,
	log *logger.Logger,
	approvalRepo repos.ApprovalRepo,
	iepStore repos.IEPStore,
	auditRepo repos.AuditRepo,
	eventBus bus.Bus,
) ApprovalService {
	serviceLog := log.With("service", "ApprovalService")
	return &approvalService{
		db:           db,
		log:          serviceLog,
		approvalRepo: approvalRepo,
		iepStore:     iepStore,
		auditRepo:    auditRepo,
		eventBus:     eventBus,
	}
}

func (as *approvalService) Get(ctx context.Context, requestID uuid.UUID) (*types.ApprovalRequest, error) {
	if requestID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "approval.get", "request id is required", nil)
	}
	return as.approvalRepo.GetByID(dbctx.Context{Ctx: ctx}, requestID)
}

func (as *approvalService) ListPending(ctx context.Context, limit, offset int) ([]*types.ApprovalRequest, error) {
	return as.approvalRepo.ListPending(dbctx.Context{Ctx: ctx}, limit, offset)
}

func (as *approvalService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*types.ApprovalRequest, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "approval.list_by_student", "student id is required", nil)
	}
	return as.approvalRepo.ListByStudent(dbctx.Context{Ctx: ctx}, studentID)
}

// Decide resolves one pending request and moves its plan version to
// approved or rejected. A request whose plan is no longer the latest
// version is superseded here instead of decided; the draft that replaced
// it must go through its own submission.
func (as *approvalService) Decide(ctx context.Context, requestID uuid.UUID, approve bool, note string) (*types.ApprovalRequest, error) {
	if requestID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "approval.decide", "request id is required", nil)
	}
	note = strings.TrimSpace(note)
	if !approve && note == "" {
		return nil, versioning.NewError(versioning.CodeValidation, "approval.decide", "a rejection needs a decision note", nil)
	}

	actorID, actorRole := actorLabel(ctx)
	var out *types.ApprovalRequest
	var staleSuperseded bool

	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		req, err := as.approvalRepo.GetByID(dbc, requestID)
		if err != nil {
			return err
		}
		if req.Status != types.ApprovalPending {
			return versioning.NewError(versioning.CodeConflict, "approval.decide", "request is already "+req.Status, nil)
		}

		scope := versioning.NewScopeKey(req.StudentID, req.AcademicYear)
		latest, err := as.iepStore.Latest(dbc, scope)
		if err != nil {
			return err
		}
		if latest.ID != req.IEPID {
			// Commit the supersede, then report the conflict; a rollback
			// here would leave the stale request pending forever.
			if err := as.supersedeStale(dbc, req, latest.Version, actorID, actorRole); err != nil {
				return err
			}
			out = req
			staleSuperseded = true
			return nil
		}

		toStatus := types.ApprovalApproved
		action := types.AuditActionApproved
		iepStatus := types.IEPStatusApproved
		if !approve {
			toStatus = types.ApprovalRejected
			action = types.AuditActionRejected
			iepStatus = types.IEPStatusRejected
		}

		now := time.Now().UTC()
		ok, err := as.approvalRepo.Decide(dbc, requestID, toStatus, actorID, note, now)
		if err != nil {
			return err
		}
		if !ok {
			return versioning.NewError(versioning.CodeConflict, "approval.decide", "request was decided by someone else", nil)
		}

		ok, err = as.iepStore.UpdateStatus(dbc, req.IEPID, []string{types.IEPStatusPendingApproval}, iepStatus)
		if err != nil {
			return err
		}
		if !ok {
			return versioning.NewError(versioning.CodeConflict, "approval.decide", "plan state changed during decision", nil)
		}

		detail, _ := json.Marshal(map[string]any{
			"iep_id":      req.IEPID,
			"iep_version": req.IEPVersion,
			"note":        note,
		})
		err = as.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "approval",
			EntityID:   req.ID,
			StudentID:  req.StudentID,
			Action:     action,
			ActorID:    actorID,
			ActorRole:  actorRole,
			Detail:     datatypes.JSON(detail),
		})
		if err != nil {
			return err
		}

		req.Status = toStatus
		req.DecidedBy = actorID
		req.DecisionNote = note
		req.DecidedAt = &now
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	if staleSuperseded {
		publish(ctx, as.eventBus, as.log, realtime.SSEMessage{
			Channel: realtime.ChannelApprovals,
			Event:   realtime.SSEEventApprovalSuperseded,
			Data: map[string]any{
				"approval_request_id": out.ID,
				"iep_id":              out.IEPID,
				"student_id":          out.StudentID,
			},
		})
		return nil, versioning.NewError(versioning.CodeConflict, "approval.decide", "request was superseded by a newer version", nil)
	}

	msg := map[string]any{
		"approval_request_id": out.ID,
		"iep_id":              out.IEPID,
		"student_id":          out.StudentID,
		"academic_year":       out.AcademicYear,
		"version":             out.IEPVersion,
		"status":              out.Status,
		"decided_by":          out.DecidedBy,
	}
	publish(ctx, as.eventBus, as.log, realtime.SSEMessage{
		Channel: realtime.StudentChannel(out.StudentID),
		Event:   realtime.SSEEventApprovalDecided,
		Data:    msg,
	})
	publish(ctx, as.eventBus, as.log, realtime.SSEMessage{
		Channel: realtime.ChannelApprovals,
		Event:   realtime.SSEEventApprovalDecided,
		Data:    msg,
	})
	return out, nil
}

// supersedeStale closes a request that points at an outdated plan version.
// This is the safety net for a crash between a new version landing and its
// review tidy running.
func (as *approvalService) supersedeStale(dbc dbctx.Context, req *types.ApprovalRequest, latestVersion int, actorID, actorRole string) error {
	flipped, err := as.approvalRepo.SupersedePending(dbc, req.StudentID, req.AcademicYear)
	if err != nil {
		return err
	}
	for _, stale := range flipped {
		if _, err := as.iepStore.UpdateStatus(dbc, stale.IEPID, []string{types.IEPStatusPendingApproval}, types.IEPStatusDraft); err != nil {
			return err
		}
		detail, _ := json.Marshal(map[string]any{
			"iep_id":        stale.IEPID,
			"iep_version":   stale.IEPVersion,
			"superseded_by": latestVersion,
		})
		err = as.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "approval",
			EntityID:   stale.ID,
			StudentID:  stale.StudentID,
			Action:     types.AuditActionSuperseded,
			ActorID:    actorID,
			ActorRole:  actorRole,
			Detail:     datatypes.JSON(detail),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
