package iep

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/brightpath/iep-backend/internal/versioning"
)

const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
)

// Constraint identifiers the conflict classifier attributes violations to.
// The second entry of each pair is the column form sqlite reports.
var (
	VersionConstraints = []string{"idx_iep_scope_version", "iep.version"}
	NaturalKeys        = []string{"uq_student_external_ref", "student.external_ref"}
)

// IEP is one immutable version of a student's plan for an academic year.
// Rows are superseded by higher versions, never rewritten; only status
// moves after creation.
type IEP struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	StudentID    uuid.UUID `gorm:"type:uuid;not null;index:idx_iep_scope_version,unique,priority:1;index" json:"student_id"`
	AcademicYear string    `gorm:"column:academic_year;not null;index:idx_iep_scope_version,unique,priority:2" json:"academic_year"`
	Version      int       `gorm:"column:version;not null;index:idx_iep_scope_version,unique,priority:3" json:"version"`

	ParentVersionID *uuid.UUID `gorm:"type:uuid;index" json:"parent_version_id,omitempty"`

	// draft|pending_approval|approved|rejected
	Status  string         `gorm:"column:status;not null;default:'draft';index" json:"status"`
	Content datatypes.JSON `gorm:"column:content;type:jsonb" json:"content,omitempty"`

	CreatedBy string `gorm:"column:created_by" json:"created_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (IEP) TableName() string { return "iep" }

func (r *IEP) RecordID() uuid.UUID { return r.ID }
func (r *IEP) VersionNumber() int  { return r.Version }

func (r *IEP) ApplyVersion(id uuid.UUID, scope versioning.ScopeKey, version int, parentVersionID *uuid.UUID, at time.Time) {
	r.ID = id
	r.StudentID = scope.SubjectID
	r.AcademicYear = scope.PeriodKey
	r.Version = version
	r.ParentVersionID = parentVersionID
	r.CreatedAt = at
	r.UpdatedAt = at
}

// Scope returns the version sequence this row belongs to.
func (r *IEP) Scope() versioning.ScopeKey {
	return versioning.NewScopeKey(r.StudentID, r.AcademicYear)
}
