package students

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StudentDocument is metadata only. File bodies live with the upstream
// document pipeline; this row is what versioned plans cite.
type StudentDocument struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index" json:"student_id"`

	FileName    string `gorm:"column:file_name;not null" json:"file_name"`
	ContentType string `gorm:"column:content_type" json:"content_type,omitempty"`
	SizeBytes   int64  `gorm:"column:size_bytes" json:"size_bytes,omitempty"`
	StorageKey  string `gorm:"column:storage_key" json:"storage_key,omitempty"`

	// evaluation|progress_report|medical|referral|other
	Category   string         `gorm:"column:category;index" json:"category,omitempty"`
	UploadedBy string         `gorm:"column:uploaded_by" json:"uploaded_by,omitempty"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (StudentDocument) TableName() string { return "student_document" }
