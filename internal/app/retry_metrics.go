package app

import (
	"context"

	"github.com/brightpath/iep-backend/internal/observability"
	"github.com/brightpath/iep-backend/internal/versioning"
)

// retryMetricsSink feeds version-write retry telemetry into the metric
// registry alongside the log sink.
type retryMetricsSink struct {
	metrics *observability.Metrics
}

func (s *retryMetricsSink) Emit(_ context.Context, ev versioning.Event) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.ObserveVersionAttempt(ev.Op, ev.Outcome, ev.Attempt, ev.Delay)
}
