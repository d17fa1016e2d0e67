package iep

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/brightpath/iep-backend/internal/versioning"
)

const (
	PresentLevelDraft = "draft"
	PresentLevelFinal = "final"
)

var PresentLevelVersionConstraints = []string{"idx_present_level_scope_version", "present_level_assessment.version"}

// PresentLevelAssessment versions a student's present-levels narrative
// (PLAAFP) per academic year, independently of the plan itself.
type PresentLevelAssessment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	StudentID    uuid.UUID `gorm:"type:uuid;not null;index:idx_present_level_scope_version,unique,priority:1;index" json:"student_id"`
	AcademicYear string    `gorm:"column:academic_year;not null;index:idx_present_level_scope_version,unique,priority:2" json:"academic_year"`
	Version      int       `gorm:"column:version;not null;index:idx_present_level_scope_version,unique,priority:3" json:"version"`

	ParentVersionID *uuid.UUID `gorm:"type:uuid;index" json:"parent_version_id,omitempty"`

	// draft|final
	Status  string         `gorm:"column:status;not null;default:'draft';index" json:"status"`
	Content datatypes.JSON `gorm:"column:content;type:jsonb" json:"content,omitempty"`

	AssessedBy string `gorm:"column:assessed_by" json:"assessed_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PresentLevelAssessment) TableName() string { return "present_level_assessment" }

func (r *PresentLevelAssessment) RecordID() uuid.UUID { return r.ID }
func (r *PresentLevelAssessment) VersionNumber() int  { return r.Version }

func (r *PresentLevelAssessment) ApplyVersion(id uuid.UUID, scope versioning.ScopeKey, version int, parentVersionID *uuid.UUID, at time.Time) {
	r.ID = id
	r.StudentID = scope.SubjectID
	r.AcademicYear = scope.PeriodKey
	r.Version = version
	r.ParentVersionID = parentVersionID
	r.CreatedAt = at
	r.UpdatedAt = at
}

func (r *PresentLevelAssessment) Scope() versioning.ScopeKey {
	return versioning.NewScopeKey(r.StudentID, r.AcademicYear)
}
