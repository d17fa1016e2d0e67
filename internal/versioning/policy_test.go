package versioning

import (
	"testing"
	"time"
)

func TestEmbeddedPolicyParses(t *testing.T) {
	t.Setenv(policyEnv, "")

	p, err := loadPolicy()
	if err != nil {
		t.Fatalf("loadPolicy: %v", err)
	}
	if p.Strategy != StrategyAuto {
		t.Fatalf("strategy: want=%s got=%s", StrategyAuto, p.Strategy)
	}
	if p.MaxAttempts != 5 {
		t.Fatalf("max attempts: want=5 got=%d", p.MaxAttempts)
	}
	if p.BaseDelay != 25*time.Millisecond {
		t.Fatalf("base delay: want=25ms got=%v", p.BaseDelay)
	}
	if p.MaxDelay != time.Second {
		t.Fatalf("max delay: want=1s got=%v", p.MaxDelay)
	}
	if p.JitterMin != 0.5 || p.JitterMax != 1.5 {
		t.Fatalf("jitter bounds: want=[0.5,1.5] got=[%v,%v]", p.JitterMin, p.JitterMax)
	}
}

func TestValidatePolicyRejectsBadSpecs(t *testing.T) {
	cases := []struct {
		name string
		spec yamlPolicy
	}{
		{"wrong policy name", yamlPolicy{Policy: "retry", Strategy: StrategyAuto, Retry: yamlRetry{MaxAttempts: 5, BaseDelayMs: 25, MaxDelayMs: 1000, JitterMin: 0.5, JitterMax: 1.5}}},
		{"unknown strategy", yamlPolicy{Policy: "versioning", Strategy: "pessimistic", Retry: yamlRetry{MaxAttempts: 5, BaseDelayMs: 25, MaxDelayMs: 1000, JitterMin: 0.5, JitterMax: 1.5}}},
		{"zero attempts", yamlPolicy{Policy: "versioning", Strategy: StrategyAuto, Retry: yamlRetry{MaxAttempts: 0, BaseDelayMs: 25, MaxDelayMs: 1000, JitterMin: 0.5, JitterMax: 1.5}}},
		{"delays inverted", yamlPolicy{Policy: "versioning", Strategy: StrategyAuto, Retry: yamlRetry{MaxAttempts: 5, BaseDelayMs: 100, MaxDelayMs: 50, JitterMin: 0.5, JitterMax: 1.5}}},
		{"jitter inverted", yamlPolicy{Policy: "versioning", Strategy: StrategyAuto, Retry: yamlRetry{MaxAttempts: 5, BaseDelayMs: 25, MaxDelayMs: 1000, JitterMin: 1.5, JitterMax: 0.5}}},
		{"jitter zero", yamlPolicy{Policy: "versioning", Strategy: StrategyAuto, Retry: yamlRetry{MaxAttempts: 5, BaseDelayMs: 25, MaxDelayMs: 1000, JitterMin: 0, JitterMax: 1.5}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if err := validatePolicy(&tc.spec); err == nil {
				t.Fatalf("validatePolicy accepted %s", tc.name)
			}
		})
	}
}

func TestLoadPolicyStrategyOverride(t *testing.T) {
	t.Setenv(strategyEnv, "optimistic")

	p := LoadPolicy(testLogger(t))
	if p.Strategy != StrategyOptimistic {
		t.Fatalf("strategy override: want=%s got=%s", StrategyOptimistic, p.Strategy)
	}
}

func TestLoadPolicyIgnoresUnknownOverride(t *testing.T) {
	t.Setenv(strategyEnv, "quorum")

	p := LoadPolicy(testLogger(t))
	if p.Strategy != StrategyAuto {
		t.Fatalf("unknown override applied: got=%s", p.Strategy)
	}
}
