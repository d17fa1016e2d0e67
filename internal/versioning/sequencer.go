package versioning

import (
	"hash/fnv"
	"strings"

	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
)

// MaxVersioner is the slice of the store the sequencers need: the highest
// committed version for a scope, 0 when the scope is unused.
type MaxVersioner interface {
	MaxVersion(dbc dbctx.Context, scope ScopeKey) (int, error)
}

// Sequencer reserves the next version number for a scope. Reservations are
// recomputed fresh on every attempt; nothing is cached in process.
type Sequencer interface {
	ReserveNext(dbc dbctx.Context, scope ScopeKey) (int, error)
}

// AdvisorySequencer serializes reservations per scope with a pg advisory
// lock bound to the surrounding transaction. Different scopes hash to
// different keys and never block each other; the lock releases on commit or
// rollback, so cancellation cannot strand it.
type AdvisorySequencer struct {
	namespace string
	store     MaxVersioner
}

func NewAdvisorySequencer(namespace string, store MaxVersioner) *AdvisorySequencer {
	return &AdvisorySequencer{namespace: strings.TrimSpace(namespace), store: store}
}

func (s *AdvisorySequencer) ReserveNext(dbc dbctx.Context, scope ScopeKey) (int, error) {
	if s == nil || s.store == nil {
		return 0, NewError(CodeInternal, "sequencer.reserve", "advisory sequencer not configured", nil)
	}
	if dbc.Tx == nil {
		return 0, NewError(CodeInternal, "sequencer.reserve", "advisory sequencer requires a transaction", nil)
	}
	if err := advisoryXactLock(dbc.Tx, s.namespace, scope.String()); err != nil {
		return 0, Wrap(CodeTransient, "sequencer.reserve", err)
	}
	max, err := s.store.MaxVersion(dbc, scope)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// OptimisticSequencer computes max+1 without locking and leaves collision
// detection to the store's unique index on (scope, version). Used where
// advisory locks are unavailable, e.g. embedded sqlite deployments.
type OptimisticSequencer struct {
	store MaxVersioner
}

func NewOptimisticSequencer(store MaxVersioner) *OptimisticSequencer {
	return &OptimisticSequencer{store: store}
}

func (s *OptimisticSequencer) ReserveNext(dbc dbctx.Context, scope ScopeKey) (int, error) {
	if s == nil || s.store == nil {
		return 0, NewError(CodeInternal, "sequencer.reserve", "optimistic sequencer not configured", nil)
	}
	max, err := s.store.MaxVersion(dbc, scope)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// NewSequencer picks the strategy for a store dialect. auto resolves to
// advisory on postgres and optimistic everywhere else.
func NewSequencer(strategy, dialect, namespace string, store MaxVersioner) Sequencer {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyAdvisory:
		return NewAdvisorySequencer(namespace, store)
	case StrategyOptimistic:
		return NewOptimisticSequencer(store)
	default:
		if strings.EqualFold(strings.TrimSpace(dialect), "postgres") {
			return NewAdvisorySequencer(namespace, store)
		}
		return NewOptimisticSequencer(store)
	}
}

func advisoryXactLock(tx *gorm.DB, namespace, key string) error {
	if tx == nil || namespace == "" || key == "" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey64(namespace, key)).Error
}

func advisoryKey64(namespace, key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
