package versioning

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Classifier decides whether a failed write is a retryable collision, a
// transient infrastructure failure, or fatal. Blind retry on arbitrary
// errors loops forever on malformed input, so attribution is by the
// violated constraint, not by error presence.
type Classifier interface {
	Classify(err error, scope ScopeKey, version int) error
}

// ConstraintClassifier attributes uniqueness violations to the version
// index or a registered natural key of the entity. Constraint entries are
// matched exactly against pg constraint names and as lowercase fragments
// against driver messages (covers sqlite, which reports column lists
// instead of index names).
type ConstraintClassifier struct {
	versionConstraints []string
	naturalKeys        []string
}

func NewConstraintClassifier(versionConstraints, naturalKeys []string) *ConstraintClassifier {
	return &ConstraintClassifier{
		versionConstraints: trimAll(versionConstraints),
		naturalKeys:        trimAll(naturalKeys),
	}
}

// SQLSTATE classes that mean the store itself is unhealthy or the
// transaction lost a concurrency race below the uniqueness layer.
var transientPgCodes = map[string]struct{}{
	"08000": {}, "08001": {}, "08003": {}, "08004": {}, "08006": {},
	"53300": {}, "57P01": {}, "57P02": {}, "57P03": {},
	"40001": {}, "40P01": {}, "55P03": {},
}

func (c *ConstraintClassifier) Classify(err error, scope ScopeKey, version int) error {
	if err == nil {
		return nil
	}
	if _, ok := AsCollision(err); ok {
		return err
	}
	var vErr *Error
	if errors.As(err, &vErr) {
		return err
	}
	var rex *RetryExhaustedError
	if errors.As(err, &rex) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeTransient, "classify", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := strings.TrimSpace(pgErr.Code)
		if code == "23505" {
			name := strings.TrimSpace(pgErr.ConstraintName)
			if matchExact(name, c.versionConstraints) {
				return &Collision{Reason: ReasonDuplicateVersion, Scope: scope, Version: version, Cause: err}
			}
			if matchExact(name, c.naturalKeys) {
				return &Collision{Reason: ReasonDuplicateNaturalKey, Scope: scope, Version: version, Cause: err}
			}
			return NewError(CodeConflict, "classify", "uniqueness violation outside versioning ("+string(ReasonUnknown)+")", err)
		}
		if _, ok := transientPgCodes[code]; ok {
			return Wrap(CodeTransient, "classify", err)
		}
	}

	if col, ok := c.classifyMessage(err, scope, version); ok {
		return col
	}
	if isTransientMessage(err) {
		return Wrap(CodeTransient, "classify", err)
	}
	return Wrap(CodeInternal, "classify", err)
}

// classifyMessage covers wrapped errors that lost type info and drivers
// without structured constraint reporting (gorm's translated
// ErrDuplicatedKey, sqlite's "UNIQUE constraint failed: iep.version").
func (c *ConstraintClassifier) classifyMessage(err error, scope ScopeKey, version int) (error, bool) {
	msg := strings.ToLower(err.Error())
	isDup := errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "sqlstate 23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
	if !isDup {
		return nil, false
	}
	if matchFragment(msg, c.versionConstraints) {
		return &Collision{Reason: ReasonDuplicateVersion, Scope: scope, Version: version, Cause: err}, true
	}
	if matchFragment(msg, c.naturalKeys) {
		return &Collision{Reason: ReasonDuplicateNaturalKey, Scope: scope, Version: version, Cause: err}, true
	}
	return NewError(CodeConflict, "classify", "uniqueness violation outside versioning ("+string(ReasonUnknown)+")", err), true
}

func isTransientMessage(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"):
		return true
	}
	return false
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchExact(name string, constraints []string) bool {
	if name == "" {
		return false
	}
	for _, c := range constraints {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}

func matchFragment(msg string, constraints []string) bool {
	for _, c := range constraints {
		if strings.Contains(msg, strings.ToLower(c)) {
			return true
		}
	}
	return false
}
