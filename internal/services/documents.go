package services

import (
	"context"
	"encoding/json"
	"strings"

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

type AttachDocumentInput struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	Category    string
	Metadata    []byte
}

type DocumentService interface {
	Attach(ctx context.Context, studentID uuid.UUID, input AttachDocumentInput) (*types.StudentDocument, error)
	Get(ctx context.Context, documentID uuid.UUID) (*types.StudentDocument, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, category string) ([]*types.StudentDocument, error)
	Delete(ctx context.Context, documentID uuid.UUID) error
}

type documentService struct {
	db          *gorm.DB
	log         *logger.Logger
	docRepo     repos.DocumentRepo
	studentRepo repos.StudentRepo
	auditRepo   repos.AuditRepo
	eventBus    bus.Bus
}

var validDocumentCategories = map[string]struct{}{
	"evaluation":      {},
	"progress_report": {},
	"medical":         {},
	"referral":        {},
	"other":           {},
}

func NewDocumentService(
	db *gorm.DB,
	log *logger.Logger,
	docRepo repos.DocumentRepo,
	studentRepo repos.StudentRepo,
	auditRepo repos.AuditRepo,
	eventBus bus.Bus,
) DocumentService {
	serviceLog := log.With("service", "DocumentService")
	return &documentService{
		db:          db,
		log:         serviceLog,
		docRepo:     docRepo,
		studentRepo: studentRepo,
		auditRepo:   auditRepo,
		eventBus:    eventBus,
	}
}

// Attach records document metadata against a student. The file body lives
// with the upstream document pipeline; only the reference is kept here.
func (ds *documentService) Attach(ctx context.Context, studentID uuid.UUID, input AttachDocumentInput) (*types.StudentDocument, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "document.attach", "student id is required", nil)
	}
	input.FileName = strings.TrimSpace(input.FileName)
	if input.FileName == "" {
		return nil, versioning.NewError(versioning.CodeValidation, "document.attach", "file_name is required", nil)
	}

	category := strings.ToLower(strings.TrimSpace(input.Category))
	if category != "" {
		if _, ok := validDocumentCategories[category]; !ok {
			return nil, versioning.NewError(versioning.CodeValidation, "document.attach", "unknown category", nil)
		}
	}
	if len(input.Metadata) > 0 && !json.Valid(input.Metadata) {
		return nil, versioning.NewError(versioning.CodeValidation, "document.attach", "metadata must be valid JSON", nil)
	}

	if _, err := ds.studentRepo.GetByID(dbctx.Context{Ctx: ctx}, studentID); err != nil {
		return nil, err
	}

	actorID, actorRole := actorLabel(ctx)
	row := &types.StudentDocument{
		StudentID:   studentID,
		FileName:    input.FileName,
		ContentType: strings.TrimSpace(input.ContentType),
		SizeBytes:   input.SizeBytes,
		StorageKey:  strings.TrimSpace(input.StorageKey),
		Category:    category,
		UploadedBy:  actorID,
	}
	if len(input.Metadata) > 0 {
		row.Metadata = datatypes.JSON(input.Metadata)
	}

	var out *types.StudentDocument
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		created, err := ds.docRepo.Create(dbc, row)
		if err != nil {
			return err
		}
		detail, _ := json.Marshal(map[string]any{
			"file_name": created.FileName,
			"category":  created.Category,
		})
		err = ds.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "document",
			EntityID:   created.ID,
			StudentID:  studentID,
			Action:     types.AuditActionCreated,
			ActorID:    actorID,
			ActorRole:  actorRole,
			Detail:     datatypes.JSON(detail),
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, ds.eventBus, ds.log, realtime.SSEMessage{
		Channel: realtime.StudentChannel(studentID),
		Event:   realtime.SSEEventDocumentAdded,
		Data: map[string]any{
			"document_id": out.ID,
			"student_id":  studentID,
			"file_name":   out.FileName,
			"category":    out.Category,
		},
	})
	return out, nil
}

func (ds *documentService) Get(ctx context.Context, documentID uuid.UUID) (*types.StudentDocument, error) {
	if documentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "document.get", "document id is required", nil)
	}
	return ds.docRepo.GetByID(dbctx.Context{Ctx: ctx}, documentID)
}

func (ds *documentService) ListByStudent(ctx context.Context, studentID uuid.UUID, category string) ([]*types.StudentDocument, error) {
	if studentID == uuid.Nil {
		return nil, versioning.NewError(versioning.CodeValidation, "document.list_by_student", "student id is required", nil)
	}
	return ds.docRepo.ListByStudent(dbctx.Context{Ctx: ctx}, studentID, strings.ToLower(strings.TrimSpace(category)))
}

func (ds *documentService) Delete(ctx context.Context, documentID uuid.UUID) error {
	if documentID == uuid.Nil {
		return versioning.NewError(versioning.CodeValidation, "document.delete", "document id is required", nil)
	}

	actorID, actorRole := actorLabel(ctx)
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		doc, err := ds.docRepo.GetByID(dbc, documentID)
		if err != nil {
			return err
		}
		if err := ds.docRepo.Delete(dbc, documentID); err != nil {
			return err
		}
		detail, _ := json.Marshal(map[string]any{
			"file_name": doc.FileName,
		})
		return ds.auditRepo.Record(dbc, &types.AuditEvent{
			EntityKind: "document",
			EntityID:   doc.ID,
			StudentID:  doc.StudentID,
			Action:     types.AuditActionDeleted,
			ActorID:    actorID,
			ActorRole:  actorRole,
			Detail:     datatypes.JSON(detail),
		})
	})
}
