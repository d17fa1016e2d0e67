package iep

import (
	"time"

	"github.com/google/uuid"
)

const (
	ApprovalPending    = "pending"
	ApprovalApproved   = "approved"
	ApprovalRejected   = "rejected"
	ApprovalSuperseded = "superseded"
)

// ApprovalRequest tracks one submitted plan version through review. A newer
// submission for the same scope supersedes any still-pending request.
type ApprovalRequest struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	IEPID        uuid.UUID `gorm:"type:uuid;not null;index" json:"iep_id"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;index" json:"student_id"`
	AcademicYear string    `gorm:"column:academic_year;not null;index" json:"academic_year"`
	IEPVersion   int       `gorm:"column:iep_version;not null" json:"iep_version"`

	// pending|approved|rejected|superseded
	Status string `gorm:"column:status;not null;default:'pending';index" json:"status"`

	RequestedBy  string     `gorm:"column:requested_by" json:"requested_by,omitempty"`
	DecidedBy    string     `gorm:"column:decided_by" json:"decided_by,omitempty"`
	DecisionNote string     `gorm:"column:decision_note" json:"decision_note,omitempty"`
	DecidedAt    *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ApprovalRequest) TableName() string { return "approval_request" }
