package versioning

import (
	"context"
	"time"

	"github.com/brightpath/iep-backend/internal/platform/logger"
)

const (
	OutcomeSuccess   = "success"
	OutcomeCollision = "collision"
	OutcomeTransient = "transient"
	OutcomeFatal     = "fatal"
	OutcomeExhausted = "exhausted"
)

// Event is the structured retry telemetry the coordinator emits per attempt.
type Event struct {
	Op      string          `json:"op"`
	Scope   ScopeKey        `json:"scope"`
	Attempt int             `json:"attempt"`
	Outcome string          `json:"outcome"`
	Delay   time.Duration   `json:"delay_ms"`
	Reason  CollisionReason `json:"reason,omitempty"`
}

// Sink receives retry events. Delivery is best effort: implementations must
// not block or fail the write path.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

type logSink struct {
	log *logger.Logger
}

// NewLogSink emits retry telemetry through the structured logger.
func NewLogSink(log *logger.Logger) Sink {
	if log == nil {
		return NopSink{}
	}
	return &logSink{log: log.With("component", "versioning")}
}

func (s *logSink) Emit(_ context.Context, ev Event) {
	fields := []interface{}{
		"op", ev.Op,
		"scope", ev.Scope.String(),
		"attempt", ev.Attempt,
		"outcome", ev.Outcome,
		"delay_ms", ev.Delay.Milliseconds(),
	}
	if ev.Reason != "" {
		fields = append(fields, "reason", string(ev.Reason))
	}
	switch ev.Outcome {
	case OutcomeSuccess:
		s.log.Debug("version attempt", fields...)
	case OutcomeCollision:
		s.log.Info("version attempt", fields...)
	default:
		s.log.Warn("version attempt", fields...)
	}
}

// FanoutSink delivers each event to every child sink.
type FanoutSink []Sink

func (f FanoutSink) Emit(ctx context.Context, ev Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}
