package db

import (
	"fmt"

	types "github.com/brightpath/iep-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Students + documents
		// =========================
		&types.Student{},
		&types.StudentDocument{},

		// =========================
		// Versioned records
		// =========================
		&types.IEP{},
		&types.PresentLevelAssessment{},

		// =========================
		// Approval workflow
		// =========================
		&types.ApprovalRequest{},

		// =========================
		// Audit trail
		// =========================
		&types.AuditEvent{},
	)
}

// EnsureIEPIndexes creates the indexes AutoMigrate cannot express through
// tags. Partial uniques and DESC orderings work the same way on postgres
// and sqlite, so the statements run unchanged on both.
func EnsureIEPIndexes(db *gorm.DB) error {
	// student: one active registration per external ref, soft-deleted rows excluded
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_student_external_ref
		ON student (external_ref)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create uq_student_external_ref: %w", err)
	}
	// approval_request: at most one pending request per scope
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_approval_pending_scope
		ON approval_request (student_id, academic_year)
		WHERE status = 'pending';
	`).Error; err != nil {
		return fmt.Errorf("create uq_approval_pending_scope: %w", err)
	}
	// Fast pending-queue listing for reviewers.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_approval_request_status_created
		ON approval_request (status, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_approval_request_status_created: %w", err)
	}
	// Audit timeline per student.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_event_student_created
		ON audit_event (student_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_audit_event_student_created: %w", err)
	}
	// Document listing per student.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_student_document_student_created
		ON student_document (student_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_student_document_student_created: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureIEPIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
