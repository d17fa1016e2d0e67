package observability

import (
	"strings"
	"testing"
	"time"
)

func testMetrics() *Metrics {
	return &Metrics{
		apiRequests:       NewCounterVec("iep_api_requests_total", "t", []string{"method", "route", "status"}),
		apiLatency:        NewHistogramVec("iep_api_request_duration_seconds", "t", []string{"method", "route", "status"}, nil),
		apiInflight:       NewGauge("iep_api_inflight_requests", "t"),
		apiReqTotal:       NewCounter("iep_api_requests_total_all", "t"),
		apiReqError:       NewCounter("iep_api_requests_error_total", "t"),
		versionAttempts:   NewCounterVec("iep_version_write_attempts_total", "t", []string{"op", "outcome"}),
		versionRetryDelay: NewHistogramVec("iep_version_retry_delay_seconds", "t", []string{"op"}, nil),
		versionWriteDepth: NewHistogramVec("iep_version_write_attempt_depth", "t", []string{"op"}, []float64{1, 2, 3, 4, 5}),
		sseClients:        NewGauge("iep_sse_clients", "t"),
		busPublished:      NewCounterVec("iep_events_published_total", "t", []string{"event"}),
		approvalDepth:     NewGaugeVec("iep_approval_requests", "t", []string{"status"}),
		pgStats:           NewGaugeVec("iep_pg_pool", "t", []string{"stat"}),
		redisUp:           NewGauge("iep_redis_up", "t"),
		redisPing:         NewGauge("iep_redis_ping_seconds", "t"),
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/students", "200", time.Millisecond)
	m.ApiInflightInc()
	m.ApiInflightDec()
	m.ObserveVersionAttempt("iep.create_new_version", "collision", 1, 0)
	m.SSEClientOpened()
	m.SSEClientClosed()
	m.IncEventPublished("iep_version_created")
	if err := m.WritePrometheus(&strings.Builder{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestObserveAPICountsErrors(t *testing.T) {
	m := testMetrics()
	m.ObserveAPI("GET", "/api/students", "200", 5*time.Millisecond)
	m.ObserveAPI("POST", "/api/students", "500", 5*time.Millisecond)
	m.ObserveAPI("POST", "/api/students", "503", 5*time.Millisecond)

	if got := m.apiReqTotal.Value(); got != 3 {
		t.Fatalf("total requests: want=3 got=%v", got)
	}
	if got := m.apiReqError.Value(); got != 2 {
		t.Fatalf("error requests: want=2 got=%v", got)
	}
}

func TestObserveVersionAttemptSeries(t *testing.T) {
	m := testMetrics()
	m.ObserveVersionAttempt("iep.create_new_version", "collision", 1, 0)
	m.ObserveVersionAttempt("iep.create_new_version", "success", 2, 30*time.Millisecond)

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		`iep_version_write_attempts_total{op="iep.create_new_version",outcome="collision"} 1`,
		`iep_version_write_attempts_total{op="iep.create_new_version",outcome="success"} 1`,
		`iep_version_write_attempt_depth_count{op="iep.create_new_version"} 1`,
		`iep_version_retry_delay_seconds_count{op="iep.create_new_version"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestHistogramBucketsCumulative(t *testing.T) {
	h := NewHistogramVec("lat", "t", []string{"op"}, []float64{1, 2, 5})
	h.Observe(1, "x")
	h.Observe(2, "x")
	h.Observe(10, "x")

	var b strings.Builder
	if err := h.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`lat_bucket{op="x",le="1"} 1`,
		`lat_bucket{op="x",le="2"} 2`,
		`lat_bucket{op="x",le="5"} 2`,
		`lat_bucket{op="x",le="+Inf"} 3`,
		`lat_count{op="x"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	c := NewCounterVec("c", "t", []string{"route"})
	c.Inc(`/api/"quoted"`)

	var b strings.Builder
	if err := c.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(b.String(), `route="/api/\"quoted\""`) {
		t.Fatalf("label not escaped:\n%s", b.String())
	}
}
