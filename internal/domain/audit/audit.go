package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionVersionCreated = "version_created"
	ActionSubmitted      = "submitted"
	ActionApproved       = "approved"
	ActionRejected       = "rejected"
	ActionSuperseded     = "superseded"
	ActionCreated        = "created"
	ActionUpdated        = "updated"
	ActionDeleted        = "deleted"
)

// AuditEvent is the append-only trail row. Writes happen in the same
// transaction as the change they describe, so the trail cannot miss a
// committed version.
type AuditEvent struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// iep|present_level|approval|student|document
	EntityKind string    `gorm:"column:entity_kind;not null;index" json:"entity_kind"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index" json:"entity_id"`
	StudentID  uuid.UUID `gorm:"type:uuid;index" json:"student_id,omitempty"`

	Action    string `gorm:"column:action;not null;index" json:"action"`
	ActorID   string `gorm:"column:actor_id" json:"actor_id,omitempty"`
	ActorRole string `gorm:"column:actor_role" json:"actor_role,omitempty"`

	Detail datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (AuditEvent) TableName() string { return "audit_event" }
