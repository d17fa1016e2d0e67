package versioning

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brightpath/iep-backend/internal/platform/logger"
)

const (
	policyEnv   = "VERSIONING_POLICY_YAML"
	strategyEnv = "VERSIONING_STRATEGY"

	StrategyAuto       = "auto"
	StrategyAdvisory   = "advisory"
	StrategyOptimistic = "optimistic"
)

//go:embed policy.yaml
var policyFS embed.FS

// Policy bounds the retry loop and selects the sequencing strategy.
type Policy struct {
	Strategy    string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterMin   float64
	JitterMax   float64
}

func fallbackPolicy() Policy {
	return Policy{
		Strategy:    StrategyAuto,
		MaxAttempts: 5,
		BaseDelay:   25 * time.Millisecond,
		MaxDelay:    time.Second,
		JitterMin:   0.5,
		JitterMax:   1.5,
	}
}

type yamlPolicy struct {
	Policy   string    `yaml:"policy"`
	Version  int       `yaml:"version"`
	Strategy string    `yaml:"strategy"`
	Retry    yamlRetry `yaml:"retry"`
}

type yamlRetry struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelayMs int     `yaml:"base_delay_ms"`
	MaxDelayMs  int     `yaml:"max_delay_ms"`
	JitterMin   float64 `yaml:"jitter_min"`
	JitterMax   float64 `yaml:"jitter_max"`
}

var policyOnce sync.Once
var policyCache Policy
var policyErr error

// LoadPolicy resolves the active policy: env-pointed YAML, then the embedded
// default, then hardcoded fallback when parsing fails. VERSIONING_STRATEGY
// overrides the strategy regardless of source.
func LoadPolicy(log *logger.Logger) Policy {
	policyOnce.Do(func() {
		policyCache, policyErr = loadPolicy()
	})
	p := policyCache
	if policyErr != nil {
		if log != nil {
			log.Warn("versioning: policy load failed; using fallback", "error", policyErr)
		}
		p = fallbackPolicy()
	}
	if s := strings.TrimSpace(strings.ToLower(os.Getenv(strategyEnv))); s != "" {
		switch s {
		case StrategyAuto, StrategyAdvisory, StrategyOptimistic:
			p.Strategy = s
		default:
			if log != nil {
				log.Warn("versioning: unknown strategy override ignored", "strategy", s)
			}
		}
	}
	return p
}

func loadPolicy() (Policy, error) {
	data, err := readPolicyFile()
	if err != nil {
		return Policy{}, err
	}
	var spec yamlPolicy
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Policy{}, err
	}
	if err := validatePolicy(&spec); err != nil {
		return Policy{}, err
	}
	return Policy{
		Strategy:    strings.ToLower(strings.TrimSpace(spec.Strategy)),
		MaxAttempts: spec.Retry.MaxAttempts,
		BaseDelay:   time.Duration(spec.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(spec.Retry.MaxDelayMs) * time.Millisecond,
		JitterMin:   spec.Retry.JitterMin,
		JitterMax:   spec.Retry.JitterMax,
	}, nil
}

func readPolicyFile() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(policyEnv)); path != "" {
		return os.ReadFile(path)
	}
	return policyFS.ReadFile("policy.yaml")
}

func validatePolicy(spec *yamlPolicy) error {
	if spec == nil {
		return errors.New("missing policy")
	}
	if strings.TrimSpace(spec.Policy) != "versioning" {
		return fmt.Errorf("unexpected policy: %s", spec.Policy)
	}
	switch strings.ToLower(strings.TrimSpace(spec.Strategy)) {
	case StrategyAuto, StrategyAdvisory, StrategyOptimistic:
	default:
		return fmt.Errorf("unknown strategy: %s", spec.Strategy)
	}
	r := spec.Retry
	if r.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if r.BaseDelayMs < 0 || r.MaxDelayMs < r.BaseDelayMs {
		return errors.New("retry delays out of order")
	}
	if r.JitterMin <= 0 || r.JitterMax < r.JitterMin {
		return errors.New("retry jitter bounds out of order")
	}
	return nil
}
