package students

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student is the roster row IEP scopes hang off. ExternalRef is the
// district student number and the natural key uploads and imports key on;
// its uniqueness comes from uq_student_external_ref, a partial index in
// EnsureIEPIndexes that skips soft-deleted rows.
type Student struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalRef string    `gorm:"column:external_ref;not null" json:"external_ref"`

	FirstName   string     `gorm:"not null;column:first_name" json:"first_name"`
	LastName    string     `gorm:"not null;column:last_name" json:"last_name"`
	GradeLevel  string     `gorm:"column:grade_level" json:"grade_level"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth" json:"date_of_birth,omitempty"`

	PrimaryDisability string `gorm:"column:primary_disability" json:"primary_disability,omitempty"`
	CaseManager       string `gorm:"column:case_manager" json:"case_manager,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Student) TableName() string { return "student" }
