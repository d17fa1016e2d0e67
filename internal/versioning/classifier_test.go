package versioning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func pgErr(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint, Message: "pg error"}
}

func TestClassifyVersionConstraintViolation(t *testing.T) {
	c := testClassifier()
	scope := freshScope()

	out := c.Classify(pgErr("23505", fakeVersionConstraint), scope, 4)
	col, ok := AsCollision(out)
	if !ok {
		t.Fatalf("want collision got %v", out)
	}
	if col.Reason != ReasonDuplicateVersion {
		t.Fatalf("reason: want=%s got=%s", ReasonDuplicateVersion, col.Reason)
	}
	if col.Version != 4 {
		t.Fatalf("attempted version: want=4 got=%d", col.Version)
	}
	if col.Scope != scope {
		t.Fatalf("scope: want=%s got=%s", scope.String(), col.Scope.String())
	}
}

func TestClassifyNaturalKeyViolation(t *testing.T) {
	c := testClassifier()

	out := c.Classify(pgErr("23505", fakeNaturalConstraint), freshScope(), 1)
	col, ok := AsCollision(out)
	if !ok {
		t.Fatalf("want collision got %v", out)
	}
	if col.Reason != ReasonDuplicateNaturalKey {
		t.Fatalf("reason: want=%s got=%s", ReasonDuplicateNaturalKey, col.Reason)
	}
}

func TestClassifyUnrelatedUniqueConstraintIsFatal(t *testing.T) {
	c := testClassifier()

	out := c.Classify(pgErr("23505", "uq_some_other_table"), freshScope(), 1)
	if _, ok := AsCollision(out); ok {
		t.Fatalf("unrelated constraint classified as collision: %v", out)
	}
	if !IsCode(out, CodeConflict) {
		t.Fatalf("unrelated constraint: want=%s got=%v", CodeConflict, out)
	}
}

func TestClassifyWrappedDriverError(t *testing.T) {
	c := testClassifier()

	wrapped := fmt.Errorf("failed to create iep: %w", pgErr("23505", fakeVersionConstraint))
	out := c.Classify(wrapped, freshScope(), 2)
	col, ok := AsCollision(out)
	if !ok {
		t.Fatalf("wrapped driver error lost classification: %v", out)
	}
	if col.Reason != ReasonDuplicateVersion {
		t.Fatalf("reason: want=%s got=%s", ReasonDuplicateVersion, col.Reason)
	}
}

func TestClassifySqliteMessageFallback(t *testing.T) {
	c := NewConstraintClassifier(
		[]string{"idx_iep_scope_version", "iep.version"},
		[]string{"uq_student_external_ref", "student.external_ref"},
	)

	err := errors.New("UNIQUE constraint failed: iep.student_id, iep.academic_year, iep.version")
	out := c.Classify(err, freshScope(), 3)
	col, ok := AsCollision(out)
	if !ok {
		t.Fatalf("sqlite message not classified: %v", out)
	}
	if col.Reason != ReasonDuplicateVersion {
		t.Fatalf("reason: want=%s got=%s", ReasonDuplicateVersion, col.Reason)
	}

	err = errors.New("UNIQUE constraint failed: student.external_ref")
	out = c.Classify(err, freshScope(), 1)
	col, ok = AsCollision(out)
	if !ok {
		t.Fatalf("sqlite natural key not classified: %v", out)
	}
	if col.Reason != ReasonDuplicateNaturalKey {
		t.Fatalf("reason: want=%s got=%s", ReasonDuplicateNaturalKey, col.Reason)
	}
}

func TestClassifyTranslatedDuplicateWithoutDetailIsFatal(t *testing.T) {
	c := testClassifier()

	out := c.Classify(gorm.ErrDuplicatedKey, freshScope(), 1)
	if _, ok := AsCollision(out); ok {
		t.Fatalf("unattributable duplicate classified as collision: %v", out)
	}
	if !IsCode(out, CodeConflict) {
		t.Fatalf("unattributable duplicate: want=%s got=%v", CodeConflict, out)
	}
}

func TestClassifyTransientCodes(t *testing.T) {
	c := testClassifier()

	for _, code := range []string{"40001", "40P01", "55P03", "08006", "53300", "57P01"} {
		out := c.Classify(pgErr(code, ""), freshScope(), 1)
		if !IsCode(out, CodeTransient) {
			t.Fatalf("code %s: want transient got %v", code, out)
		}
	}
}

func TestClassifyTransientMessages(t *testing.T) {
	c := testClassifier()

	cases := []string{
		"dial tcp 10.0.0.5:5432: connect: connection refused",
		"read tcp: connection reset by peer",
		"write: broken pipe",
		"database is locked",
	}
	for _, msg := range cases {
		out := c.Classify(errors.New(msg), freshScope(), 1)
		if !IsCode(out, CodeTransient) {
			t.Fatalf("message %q: want transient got %v", msg, out)
		}
	}
}

func TestClassifyForeignKeyViolationIsFatal(t *testing.T) {
	c := testClassifier()

	out := c.Classify(pgErr("23503", "fk_iep_student"), freshScope(), 1)
	if _, ok := AsCollision(out); ok {
		t.Fatalf("fk violation classified as collision")
	}
	if IsCode(out, CodeTransient) {
		t.Fatalf("fk violation classified as transient")
	}
}

func TestClassifyContextErrors(t *testing.T) {
	c := testClassifier()

	for _, err := range []error{context.Canceled, context.DeadlineExceeded} {
		out := c.Classify(err, freshScope(), 1)
		if !IsCode(out, CodeTransient) {
			t.Fatalf("%v: want transient got %v", err, out)
		}
	}
}

func TestClassifyPassthrough(t *testing.T) {
	c := testClassifier()
	scope := freshScope()

	col := &Collision{Reason: ReasonDuplicateVersion, Scope: scope, Version: 2}
	if out := c.Classify(col, scope, 9); out != error(col) {
		t.Fatalf("collision passthrough rewrapped: %v", out)
	}

	already := NewError(CodeValidation, "iep.create_new_version", "empty content", nil)
	if out := c.Classify(already, scope, 1); out != already {
		t.Fatalf("classified error rewrapped: %v", out)
	}

	if out := c.Classify(nil, scope, 1); out != nil {
		t.Fatalf("nil classified as %v", out)
	}
}
