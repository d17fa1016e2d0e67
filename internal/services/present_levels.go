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

// PresentLevelService versions the PLAAFP assessments that ground a plan's
// goals. Same lineage rules as plans; the approval workflow does not apply,
// a draft is simply finalized in place.
type PresentLevelService interface {
	CreateDraft(ctx context.Context, studentID uuid.UUID, academicYear string, content []byte) (*types.PresentLevelAssessment, error)
	GetLatest(ctx context.Context, studentID uuid.UUID, academicYear string) (*types.PresentLevelAssessment, error)
	GetVersion(ctx context.Context, studentID uuid.UUID, academicYear string, version int) (*types.PresentLevelAssessment, error)
	History(ctx context.Context, studentID uuid.UUID, academicYear string) ([]*types.PresentLevelAssessment, error)
	Finalize(ctx context.Context, studentID uuid.UUID, academicYear string) (*types.PresentLevelAssessment, error)
}

type presentLevelService struct {
	db          *gorm.DB
	log         *logger.Logger
	mgr         *versioning.Manager[*types.PresentLevelAssessment]
	store       repos.PresentLevelStore
	studentRepo repos.StudentRepo
	auditRepo   repos.AuditRepo
	eventBus    bus.Bus
}

func NewPresentLevelService(
	db *gorm.DB,
	log *logger.Logger,
	mgr *versioning.Manager[*types.PresentLevelAssessment],
	store repos.PresentLevelStore,
	studentRepo repos.StudentRepo,
	auditRepo repos.AuditRepo,
	eventBus bus.Bus,
) PresentLevelService {
	serviceLog := log.With("service", "PresentLevelService")
	return &presentLevelService{
		db:          db,
		log:         serviceLog,
		mgr:         mgr,
		store:       store,
		studentRepo: studentRepo,
		auditRepo:   auditRepo,
		eventBus:    eventBus,
	}
}

func (ps *presentLevelService) CreateDraft(ctx context.Context, studentID uuid.UUID, academicYear string, content []byte) (*types.PresentLevelAssessment, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "present_level.create_draft", "student id is required", nil)
	}
	if err := validateAcademicYear(academicYear); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		content = []byte("{}")
	}
	if !json.Valid(content) {
		return nil, versioning.NewError(versioning.CodeValidation, "present_level.create_draft", "content must be valid JSON", nil)
	}

	if _, err := ps.studentRepo.GetByID(dbctx.Context{Ctx: ctx}, studentID); err != nil {
		return nil, err
	}

	actorID, _ := actorLabel(ctx)
	scope := versioning.NewScopeKey(studentID, academicYear)
	rec := &types.PresentLevelAssessment{
		Status:     types.PresentLevelDraft,
		Content:    datatypes.JSON(content),
		AssessedBy: actorID,
	}

	created, err := ps.mgr.CreateNewVersion(ctx, scope, rec)
	if err != nil {
		return nil, err
	}

	publish(ctx, ps.eventBus, ps.log, realtime.SSEMessage{
		Channel: realtime.StudentChannel(studentID),
		Event:   realtime.SSEEventPresentLevelVersionCreated,
		Data: map[string]any{
			"assessment_id": created.ID,
			"student_id":    studentID,
			"academic_year": academicYear,
			"version":       created.Version,
		},
	})
	return created, nil
}

func (ps *presentLevelService) GetLatest(ctx context.Context, studentID uuid.UUID, academicYear string) (*types.PresentLevelAssessment, error) {
	return ps.mgr.GetLatest(ctx, versioning.NewScopeKey(studentID, academicYear))
}

func (ps *presentLevelService) GetVersion(ctx context.Context, studentID uuid.UUID, academicYear string, version int) (*types.PresentLevelAssessment, error) {
	return ps.mgr.GetVersion(ctx, versioning.NewScopeKey(studentID, academicYear), version)
}

func (ps *presentLevelService) History(ctx context.Context, studentID uuid.UUID, academicYear string) ([]*types.PresentLevelAssessment, error) {
	return ps.mgr.ListLineage(ctx, versioning.NewScopeKey(studentID, academicYear))
}

// Finalize marks the latest draft assessment final. Further edits need a
// new version.
func (ps *presentLevelService) Finalize(ctx context.Context, studentID uuid.UUID, academicYear string) (*types.PresentLevelAssessment, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "present_level.finalize", "student id is required", nil)
	}
	if err := validateAcademicYear(academicYear); err != nil {
		return nil, err
	}

	actorID, actorRole := actorLabel(ctx)
	scope := versioning.NewScopeKey(studentID, academicYear)
	var out *types.PresentLevelAssessment

	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		latest, err := ps.store.Latest(dbc, scope)
		if err != nil {
			return err
		}
		ok, err := ps.store.UpdateStatus(dbc, latest.ID, []string{types.PresentLevelDraft}, types.PresentLevelFinal)
		if err != nil {
			return err
		}
		if !ok {
			return versioning.NewError(versioning.CodeConflict, "present_level.finalize", "latest assessment is already final", nil)
		}

		detail, _ := json.Marshal(map[string]any{
			"version": latest.Version,
			"status":  types.PresentLevelFinal,
		})
		err = ps.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "present_level",
			EntityID:   latest.ID,
			StudentID:  studentID,
			Action:     types.AuditActionUpdated,
			ActorID:    actorID,
			ActorRole:  actorRole,
			Detail:     datatypes.JSON(detail),
		})
		if err != nil {
			return err
		}

		latest.Status = types.PresentLevelFinal
		out = latest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
