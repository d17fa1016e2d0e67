package documents

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/versioning"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, doc *types.StudentDocument) (*types.StudentDocument, error)
	GetByID(dbc dbctx.Context, documentID uuid.UUID) (*types.StudentDocument, error)
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID, category string) ([]*types.StudentDocument, error)
	Delete(dbc dbctx.Context, documentID uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	repoLog := baseLog.With("repo", "DocumentRepo")
	return &documentRepo{db: db, log: repoLog}
}

func (dr *documentRepo) Create(dbc dbctx.Context, doc *types.StudentDocument) (*types.StudentDocument, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = dr.db
	}

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	if err := transaction.WithContext(dbc.Ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (dr *documentRepo) GetByID(dbc dbctx.Context, documentID uuid.UUID) (*types.StudentDocument, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.StudentDocument
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", documentID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versioning.Wrap(versioning.CodeNotFound, "document.get_by_id", err)
		}
		return nil, err
	}
	return &result, nil
}

func (dr *documentRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID, category string) ([]*types.StudentDocument, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = dr.db
	}

	q := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID)
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var results []*types.StudentDocument
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) Delete(dbc dbctx.Context, documentID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id = ?", documentID).
		Delete(&types.StudentDocument{}).Error
}
