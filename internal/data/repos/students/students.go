package students

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type StudentRepo interface {
	Create(dbc dbctx.Context, student *types.Student) (*types.Student, error)
	GetByID(dbc dbctx.Context, studentID uuid.UUID) (*types.Student, error)
	GetByExternalRef(dbc dbctx.Context, externalRef string) (*types.Student, error)
	List(dbc dbctx.Context, limit, offset int) ([]*types.Student, error)
	Update(dbc dbctx.Context, studentID uuid.UUID, fields map[string]any) error
	Delete(dbc dbctx.Context, studentID uuid.UUID) error
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	repoLog := baseLog.With("repo", "StudentRepo")
	return &studentRepo{db: db, log: repoLog}
}

func (sr *studentRepo) Create(dbc dbctx.Context, student *types.Student) (*types.Student, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	if student.ID == uuid.Nil {
		student.ID = uuid.New()
	}

	if err := transaction.WithContext(dbc.Ctx).Create(student).Error; err != nil {
		return nil, err
	}
	return student, nil
}

func (sr *studentRepo) GetByID(dbc dbctx.Context, studentID uuid.UUID) (*types.Student, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	var result types.Student
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", studentID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "student.get_by_id", err)
		}
		return nil, err
	}
	return &result, nil
}

func (sr *studentRepo) GetByExternalRef(dbc dbctx.Context, externalRef string) (*types.Student, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	var result types.Student
	err := transaction.WithContext(dbc.Ctx).
		Where("external_ref = ?", externalRef).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "student.get_by_external_ref", err)
		}
		return nil, err
	}
	return &result, nil
}

func (sr *studentRepo) List(dbc dbctx.Context, limit, offset int) ([]*types.Student, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var results []*types.Student
	if err := transaction.WithContext(dbc.Ctx).
		Order("last_name, first_name").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *studentRepo) Update(dbc dbctx.Context, studentID uuid.UUID, fields map[string]any) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Student{}).
		Where("id = ?", studentID).
		Updates(fields).Error
}

func (sr *studentRepo) Delete(dbc dbctx.Context, studentID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id = ?", studentID).
		Delete(&types.Student{}).Error
}
