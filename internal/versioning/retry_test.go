package versioning

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCoordinator(tb testing.TB, policy Policy) (*Coordinator, *recordSink) {
	tb.Helper()
	sink := &recordSink{}
	return NewCoordinator(policy, testClassifier(), sink, testLogger(tb)), sink
}

func TestRunExhaustsBudgetExactly(t *testing.T) {
	policy := testPolicy()
	policy.MaxAttempts = 5
	coord, sink := newTestCoordinator(t, policy)
	scope := freshScope()

	var calls int32
	err := coord.Run(context.Background(), "fake.create_new_version", scope, func(attempt int) error {
		atomic.AddInt32(&calls, 1)
		return duplicateVersionErr()
	})

	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Fatalf("attempts: want=5 got=%d", got)
	}
	var rex *RetryExhaustedError
	if !errors.As(err, &rex) {
		t.Fatalf("want RetryExhaustedError got %v", err)
	}
	if rex.Attempts != 5 {
		t.Fatalf("exhausted attempts: want=5 got=%d", rex.Attempts)
	}
	col, ok := AsCollision(rex.Last)
	if !ok {
		t.Fatalf("exhausted error lost the last collision: %v", rex.Last)
	}
	if col.Reason != ReasonDuplicateVersion {
		t.Fatalf("last collision reason: want=%s got=%s", ReasonDuplicateVersion, col.Reason)
	}
	if got := len(sink.byOutcome(OutcomeCollision)); got != 4 {
		t.Fatalf("collision events: want=4 got=%d", got)
	}
	if got := len(sink.byOutcome(OutcomeExhausted)); got != 1 {
		t.Fatalf("exhausted events: want=1 got=%d", got)
	}
}

func TestRunDoesNotRetryFatal(t *testing.T) {
	coord, sink := newTestCoordinator(t, testPolicy())
	scope := freshScope()

	var calls int32
	err := coord.Run(context.Background(), "fake.create_new_version", scope, func(attempt int) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("malformed payload")
	})

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fatal error retried: attempts want=1 got=%d", got)
	}
	if IsRetryExhausted(err) {
		t.Fatalf("fatal misreported as exhausted: %v", err)
	}
	if !IsCode(err, CodeInternal) {
		t.Fatalf("fatal error code: want=%s got=%v", CodeInternal, err)
	}
	if got := len(sink.byOutcome(OutcomeFatal)); got != 1 {
		t.Fatalf("fatal events: want=1 got=%d", got)
	}
}

func TestRunSurfacesTransientImmediately(t *testing.T) {
	coord, sink := newTestCoordinator(t, testPolicy())
	scope := freshScope()

	var calls int32
	err := coord.Run(context.Background(), "fake.create_new_version", scope, func(attempt int) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	})

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("transient error retried: attempts want=1 got=%d", got)
	}
	if !IsCode(err, CodeTransient) {
		t.Fatalf("transient error code: want=%s got=%v", CodeTransient, err)
	}
	if got := len(sink.byOutcome(OutcomeTransient)); got != 1 {
		t.Fatalf("transient events: want=1 got=%d", got)
	}
}

func TestRunRecoversAfterCollisions(t *testing.T) {
	coord, sink := newTestCoordinator(t, testPolicy())
	scope := freshScope()

	var calls int32
	err := coord.Run(context.Background(), "fake.create_new_version", scope, func(attempt int) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return duplicateVersionErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("attempts: want=3 got=%d", got)
	}
	want := []string{OutcomeCollision, OutcomeCollision, OutcomeSuccess}
	got := sink.outcomes()
	if len(got) != len(want) {
		t.Fatalf("event count: want=%d got=%d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: want=%s got=%s", i, want[i], got[i])
		}
	}
	for i, ev := range sink.byOutcome(OutcomeCollision) {
		if ev.Attempt != i+1 {
			t.Fatalf("collision attempt number: want=%d got=%d", i+1, ev.Attempt)
		}
		if ev.Reason != ReasonDuplicateVersion {
			t.Fatalf("collision reason: want=%s got=%s", ReasonDuplicateVersion, ev.Reason)
		}
	}
}

func TestRunAbandonsOnContextCancel(t *testing.T) {
	policy := testPolicy()
	policy.BaseDelay = 50 * time.Millisecond
	policy.MaxDelay = 200 * time.Millisecond
	coord, _ := newTestCoordinator(t, policy)
	scope := freshScope()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	done := make(chan error, 1)
	go func() {
		done <- coord.Run(ctx, "fake.create_new_version", scope, func(attempt int) error {
			atomic.AddInt32(&calls, 1)
			return duplicateVersionErr()
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !IsCode(err, CodeTransient) {
			t.Fatalf("cancelled run: want transient got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not abandon retries after cancel")
	}
	if got := atomic.LoadInt32(&calls); got >= 5 {
		t.Fatalf("cancel ignored: %d attempts ran", got)
	}
}

func TestBackoffDelayStaysWithinJitterBounds(t *testing.T) {
	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   25 * time.Millisecond,
		MaxDelay:    time.Second,
		JitterMin:   0.5,
		JitterMax:   1.5,
	}
	coord, _ := newTestCoordinator(t, policy)

	for attempt := 1; attempt <= 8; attempt++ {
		raw := policy.BaseDelay << (attempt - 1)
		if raw > policy.MaxDelay {
			raw = policy.MaxDelay
		}
		low := time.Duration(float64(raw) * policy.JitterMin)
		high := time.Duration(float64(raw) * policy.JitterMax)
		for i := 0; i < 50; i++ {
			d := coord.backoffDelay(attempt)
			if d < low || d > high {
				t.Fatalf("attempt %d delay out of bounds: %v not in [%v, %v]", attempt, d, low, high)
			}
		}
	}
}

func TestRunSurvivesPanickingSink(t *testing.T) {
	policy := testPolicy()
	coord := NewCoordinator(policy, testClassifier(), panicSink{}, testLogger(t))
	scope := freshScope()

	err := coord.Run(context.Background(), "fake.create_new_version", scope, func(attempt int) error {
		return nil
	})
	if err != nil {
		t.Fatalf("sink failure affected the write path: %v", err)
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink down") }
