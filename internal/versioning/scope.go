package versioning

import (
	"strings"

	"github.com/google/uuid"
)

// ScopeKey partitions independent version sequences. For IEPs the subject is
// the student and the period is the academic year ("2024-2025").
type ScopeKey struct {
	SubjectID uuid.UUID `json:"subject_id"`
	PeriodKey string    `json:"period_key"`
}

func NewScopeKey(subjectID uuid.UUID, periodKey string) ScopeKey {
	return ScopeKey{SubjectID: subjectID, PeriodKey: strings.TrimSpace(periodKey)}
}

// String renders the lock/event form of the key, namespace-style.
func (k ScopeKey) String() string {
	return k.SubjectID.String() + ":" + k.PeriodKey
}

func (k ScopeKey) Validate() error {
	if k.SubjectID == uuid.Nil {
		return NewError(CodeValidation, "scope.validate", "missing subject id", nil)
	}
	if strings.TrimSpace(k.PeriodKey) == "" {
		return NewError(CodeValidation, "scope.validate", "missing period key", nil)
	}
	return nil
}
