package versioning

import (
	"context"
	"math/rand"
	"time"

	"github.com/brightpath/iep-backend/internal/platform/logger"
)

// Coordinator drives the attempt loop: run the operation, classify the
// failure, back off with jitter, try again. Only classified collisions are
// retried; transient and fatal failures surface on first occurrence. Every
// attempt re-runs the full operation so a stale version number is never
// reused.
type Coordinator struct {
	policy     Policy
	classifier Classifier
	sink       Sink
	log        *logger.Logger
}

func NewCoordinator(policy Policy, classifier Classifier, sink Sink, log *logger.Logger) *Coordinator {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.JitterMin <= 0 || policy.JitterMax < policy.JitterMin {
		policy.JitterMin, policy.JitterMax = 0.5, 1.5
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log != nil {
		log = log.With("component", "versioning")
	}
	return &Coordinator{policy: policy, classifier: classifier, sink: sink, log: log}
}

func (c *Coordinator) Run(ctx context.Context, op string, scope ScopeKey, fn func(attempt int) error) error {
	if c == nil || c.classifier == nil {
		return NewError(CodeInternal, op, "retry coordinator not configured", nil)
	}
	if fn == nil {
		return NewError(CodeValidation, op, "missing operation", nil)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Wrap(CodeTransient, op, err)
		}

		err := fn(attempt)
		if err == nil {
			c.emit(ctx, Event{Op: op, Scope: scope, Attempt: attempt, Outcome: OutcomeSuccess})
			return nil
		}

		classified := c.classifier.Classify(err, scope, 0)
		col, ok := AsCollision(classified)
		if !ok {
			outcome := OutcomeFatal
			if IsCode(classified, CodeTransient) {
				outcome = OutcomeTransient
			}
			c.emit(ctx, Event{Op: op, Scope: scope, Attempt: attempt, Outcome: outcome})
			return classified
		}

		if attempt >= c.policy.MaxAttempts {
			c.emit(ctx, Event{Op: op, Scope: scope, Attempt: attempt, Outcome: OutcomeExhausted, Reason: col.Reason})
			return &RetryExhaustedError{Op: op, Scope: scope, Attempts: attempt, Last: classified}
		}

		delay := c.backoffDelay(attempt)
		c.emit(ctx, Event{Op: op, Scope: scope, Attempt: attempt, Outcome: OutcomeCollision, Delay: delay, Reason: col.Reason})
		if err := sleepCtx(ctx, delay); err != nil {
			return Wrap(CodeTransient, op, err)
		}
	}
}

// backoffDelay computes the wait after a failed attempt (1-indexed):
// min(base * 2^(attempt-1), max) scaled by a jitter factor so sibling
// callers on the same scope do not retry in lockstep.
func (c *Coordinator) backoffDelay(attempt int) time.Duration {
	base := c.policy.BaseDelay
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.policy.MaxDelay > 0 && d >= c.policy.MaxDelay {
			d = c.policy.MaxDelay
			break
		}
	}
	if c.policy.MaxDelay > 0 && d > c.policy.MaxDelay {
		d = c.policy.MaxDelay
	}
	factor := c.policy.JitterMin + rand.Float64()*(c.policy.JitterMax-c.policy.JitterMin)
	return time.Duration(float64(d) * factor)
}

func (c *Coordinator) emit(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil && c.log != nil {
			c.log.Warn("retry sink panicked (continuing)", "op", ev.Op, "panic", r)
		}
	}()
	c.sink.Emit(ctx, ev)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
