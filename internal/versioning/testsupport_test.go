package versioning

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

const (
	fakeVersionConstraint = "idx_fake_scope_version"
	fakeNaturalConstraint = "uq_fake_natural_key"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("logger.New: %v", err)
	}
	return log
}

func testPolicy() Policy {
	return Policy{
		Strategy:    StrategyOptimistic,
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    8 * time.Millisecond,
		JitterMin:   0.5,
		JitterMax:   1.5,
	}
}

type fakeRecord struct {
	ID              uuid.UUID
	Scope           ScopeKey
	Version         int
	ParentVersionID *uuid.UUID
	Payload         string
	CreatedAt       time.Time
}

func (r *fakeRecord) RecordID() uuid.UUID { return r.ID }
func (r *fakeRecord) VersionNumber() int  { return r.Version }
func (r *fakeRecord) ApplyVersion(id uuid.UUID, scope ScopeKey, version int, parentVersionID *uuid.UUID, at time.Time) {
	r.ID = id
	r.Scope = scope
	r.Version = version
	r.ParentVersionID = parentVersionID
	r.CreatedAt = at
}

// fakeStore enforces a real (scope, version) unique index in memory and can
// inject random duplicate reports to simulate store-level races.
type fakeStore struct {
	mu            sync.Mutex
	rows          map[string]map[int]*fakeRecord
	rng           *rand.Rand
	collisionRate float64

	insertCalls int
	failInsert  error
	failMax     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows: map[string]map[int]*fakeRecord{},
		rng:  rand.New(rand.NewSource(1)),
	}
}

func duplicateVersionErr() error {
	return &pgconn.PgError{
		Code:           "23505",
		ConstraintName: fakeVersionConstraint,
		Message:        "duplicate key value violates unique constraint",
	}
}

func (s *fakeStore) InsertVersion(_ dbctx.Context, rec *fakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.failInsert != nil {
		return s.failInsert
	}
	if s.collisionRate > 0 && s.rng.Float64() < s.collisionRate {
		return duplicateVersionErr()
	}
	key := rec.Scope.String()
	byVersion := s.rows[key]
	if byVersion == nil {
		byVersion = map[int]*fakeRecord{}
		s.rows[key] = byVersion
	}
	if _, exists := byVersion[rec.Version]; exists {
		return duplicateVersionErr()
	}
	cp := *rec
	byVersion[rec.Version] = &cp
	return nil
}

func (s *fakeStore) MaxVersion(_ dbctx.Context, scope ScopeKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMax != nil {
		return 0, s.failMax
	}
	max := 0
	for v := range s.rows[scope.String()] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

func (s *fakeStore) Latest(dbc dbctx.Context, scope ScopeKey) (*fakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for v := range s.rows[scope.String()] {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return nil, Wrap(CodeNotFound, "fake.latest", gorm.ErrRecordNotFound)
	}
	cp := *s.rows[scope.String()][max]
	return &cp, nil
}

func (s *fakeStore) GetVersion(_ dbctx.Context, scope ScopeKey, version int) (*fakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[scope.String()][version]
	if !ok {
		return nil, Wrap(CodeNotFound, "fake.get_version", gorm.ErrRecordNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) ListLineage(_ dbctx.Context, scope ScopeKey) ([]*fakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byVersion := s.rows[scope.String()]
	out := make([]*fakeRecord, 0, len(byVersion))
	for _, rec := range byVersion {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCalls
}

// fakeTxRunner executes the body without a real transaction.
type fakeTxRunner struct {
	mu   sync.Mutex
	runs int
	fail error
}

func (r *fakeTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.runs++
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	if fn == nil {
		return nil
	}
	return fn(dbctx.Context{Ctx: ctx})
}

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordSink) byOutcome(outcome string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Event{}
	for _, ev := range s.events {
		if ev.Outcome == outcome {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordSink) outcomes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Outcome)
	}
	return out
}

func testClassifier() *ConstraintClassifier {
	return NewConstraintClassifier(
		[]string{fakeVersionConstraint},
		[]string{fakeNaturalConstraint},
	)
}

func newTestManager(tb testing.TB, store *fakeStore, policy Policy) (*Manager[*fakeRecord], *recordSink) {
	tb.Helper()
	log := testLogger(tb)
	sink := &recordSink{}
	coord := NewCoordinator(policy, testClassifier(), sink, log)
	mgr := NewManager[*fakeRecord]("fake", &fakeTxRunner{}, store, NewOptimisticSequencer(store), coord, log)
	return mgr, sink
}

func freshScope() ScopeKey {
	return NewScopeKey(uuid.New(), "2024-2025")
}
