package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos"
	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type CreateStudentInput struct {
	ExternalRef       string
	FirstName         string
	LastName          string
	GradeLevel        string
	DateOfBirth       *time.Time
	PrimaryDisability string
	CaseManager       string
}

type UpdateStudentInput struct {
	FirstName         *string
	LastName          *string
	GradeLevel        *string
	DateOfBirth       *time.Time
	PrimaryDisability *string
	CaseManager       *string
}

type StudentService interface {
	Create(ctx context.Context, input CreateStudentInput) (*types.Student, error)
	Get(ctx context.Context, studentID uuid.UUID) (*types.Student, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*types.Student, error)
	List(ctx context.Context, limit, offset int) ([]*types.Student, error)
	Update(ctx context.Context, studentID uuid.UUID, input UpdateStudentInput) (*types.Student, error)
	Delete(ctx context.Context, studentID uuid.UUID) error
}

type studentService struct {
	db          *gorm.DB
	log         *logger.Logger
	studentRepo repos.StudentRepo
	auditRepo   repos.AuditRepo
	classifier  versioning.Classifier
}

func NewStudentService(db *gorm.DB, log *logger.Logger, studentRepo repos.StudentRepo, auditRepo repos.AuditRepo) StudentService {
	serviceLog := log.With("service", "StudentService")
	return &studentService{
		db:          db,
		log:         serviceLog,
		studentRepo: studentRepo,
		auditRepo:   auditRepo,
		classifier:  versioning.NewConstraintClassifier(nil, types.IEPNaturalKeys),
	}
}

func (ss *studentService) Create(ctx context.Context, input CreateStudentInput) (*types.Student, error) {
	input.ExternalRef = strings.TrimSpace(input.ExternalRef)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if input.ExternalRef == "" {
		return nil, versioning.NewError(versioning.CodeValidation, "student.create", "external_ref is required", nil)
	}
	if input.FirstName == "" || input.LastName == "" {
		return nil, versioning.NewError(versioning.CodeValidation, "student.create", "first_name and last_name are required", nil)
	}

	actorID, actorRole := actorLabel(ctx)
	row := &types.Student{
		ExternalRef:       input.ExternalRef,
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		GradeLevel:        strings.TrimSpace(input.GradeLevel),
		DateOfBirth:       input.DateOfBirth,
		PrimaryDisability: strings.TrimSpace(input.PrimaryDisability),
		CaseManager:       strings.TrimSpace(input.CaseManager),
	}

	var out *types.Student
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		created, err := ss.studentRepo.Create(dbc, row)
		if err != nil {
			return err
		}
		err = ss.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "student",
			EntityID:   created.ID,
			StudentID:  created.ID,
			Action:     types.AuditActionCreated,
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		// A live duplicate of the district number surfaces as the
		// natural-key constraint; withdrawn students do not block reuse.
		classified := ss.classifier.Classify(err, versioning.ScopeKey{}, 0)
		if col, ok := versioning.AsCollision(classified); ok && col.Reason == versioning.ReasonDuplicateNaturalKey {
			return nil, versioning.NewError(versioning.CodeConflict, "student.create", "external_ref is already registered", err)
		}
		return nil, err
	}
	return out, nil
}

func (ss *studentService) Get(ctx context.Context, studentID uuid.UUID) (*types.Student, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "student.get", "student id is required", nil)
	}
	return ss.studentRepo.GetByID(dbctx.Context{Ctx: ctx}, studentID)
}

func (ss *studentService) GetByExternalRef(ctx context.Context, externalRef string) (*types.Student, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, versioning.NewError(versioning.CodeValidation, "student.get_by_external_ref", "external_ref is required", nil)
	}
	return ss.studentRepo.GetByExternalRef(dbctx.Context{Ctx: ctx}, externalRef)
}

func (ss *studentService) List(ctx context.Context, limit, offset int) ([]*types.Student, error) {
	return ss.studentRepo.List(dbctx.Context{Ctx: ctx}, limit, offset)
}

func (ss *studentService) Update(ctx context.Context, studentID uuid.UUID, input UpdateStudentInput) (*types.Student, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "student.update", "student id is required", nil)
	}

	fields := map[string]any{}
	if input.FirstName != nil {
		if strings.TrimSpace(*input.FirstName) == "" {
			return nil, versioning.NewError(versioning.CodeValidation, "student.update", "first_name cannot be blank", nil)
		}
		fields["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		if strings.TrimSpace(*input.LastName) == "" {
			return nil, versioning.NewError(versioning.CodeValidation, "student.update", "last_name cannot be blank", nil)
		}
		fields["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.GradeLevel != nil {
		fields["grade_level"] = strings.TrimSpace(*input.GradeLevel)
	}
	if input.DateOfBirth != nil {
		fields["date_of_birth"] = input.DateOfBirth
	}
	if input.PrimaryDisability != nil {
		fields["primary_disability"] = strings.TrimSpace(*input.PrimaryDisability)
	}
	if input.CaseManager != nil {
		fields["case_manager"] = strings.TrimSpace(*input.CaseManager)
	}
	if len(fields) == 0 {
		return nil, versioning.NewError(versioning.CodeValidation, "student.update", "no changes provided", nil)
	}

	actorID, actorRole := actorLabel(ctx)
	var out *types.Student
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if _, err := ss.studentRepo.GetByID(dbc, studentID); err != nil {
			return err
		}
		if err := ss.studentRepo.Update(dbc, studentID, fields); err != nil {
			return err
		}
		err := ss.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "student",
			EntityID:   studentID,
			StudentID:  studentID,
			Action:     types.AuditActionUpdated,
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
		if err != nil {
			return err
		}

		reloaded, err := ss.studentRepo.GetByID(dbc, studentID)
		if err != nil {
			return err
		}
		out = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete withdraws a student. The row is soft deleted so versioned plans
// keep their lineage; the district number frees up for re-registration.
func (ss *studentService) Delete(ctx context.Context, studentID uuid.UUID) error {
	if studentID == uuid.Nil {
		return versioning.NewError(versioning.CodeValidation, "student.delete", "student id is required", nil)
	}

	actorID, actorRole := actorLabel(ctx)
	return ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if _, err := ss.studentRepo.GetByID(dbc, studentID); err != nil {
			return err
		}
		if err := ss.studentRepo.Delete(dbc, studentID); err != nil {
			return err
		}
		return ss.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "student",
			EntityID:   studentID,
			StudentID:  studentID,
			Action:     types.AuditActionDeleted,
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
	})
}
