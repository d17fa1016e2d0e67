package versioning

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/pkg/dbctx"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

// Entity is implemented by versioned domain records. ApplyVersion stamps
// the identity fields the manager owns; payload fields stay untouched.
type Entity interface {
	RecordID() uuid.UUID
	VersionNumber() int
	ApplyVersion(id uuid.UUID, scope ScopeKey, version int, parentVersionID *uuid.UUID, at time.Time)
}

// Store is the durable surface a versioned entity needs. Latest and
// GetVersion report CodeNotFound through the error when the scope or slot
// is unused. InsertVersion surfaces the driver error raw so the classifier
// can attribute the violated constraint.
type Store[R Entity] interface {
	InsertVersion(dbc dbctx.Context, rec R) error
	MaxVersion(dbc dbctx.Context, scope ScopeKey) (int, error)
	Latest(dbc dbctx.Context, scope ScopeKey) (R, error)
	GetVersion(dbc dbctx.Context, scope ScopeKey, version int) (R, error)
	ListLineage(dbc dbctx.Context, scope ScopeKey) ([]R, error)
}

// Manager is the versioned entity repository: create-new-version under
// retry, plus the read surface. One Manager instance serves one entity
// type and is safe for concurrent use from many request workers; all
// coordination state lives in the store.
type Manager[R Entity] struct {
	name   string
	runner TxRunner
	store  Store[R]
	seq    Sequencer
	coord  *Coordinator
	log    *logger.Logger
}

func NewManager[R Entity](name string, runner TxRunner, store Store[R], seq Sequencer, coord *Coordinator, log *logger.Logger) *Manager[R] {
	if log != nil {
		log = log.With("manager", name)
	}
	return &Manager[R]{name: name, runner: runner, store: store, seq: seq, coord: coord, log: log}
}

// CreateNewVersion persists rec as the next version of scope. Each attempt
// runs in its own transaction: reserve the next number, re-resolve the
// current latest for the parent link, insert. The parent is resolved inside
// the attempt, never upfront, so the eventual winner always points at its
// true immediate predecessor.
func (m *Manager[R]) CreateNewVersion(ctx context.Context, scope ScopeKey, rec R) (R, error) {
	var zero R
	if m == nil || m.runner == nil || m.store == nil || m.seq == nil || m.coord == nil {
		return zero, NewError(CodeInternal, m.op("create_new_version"), "manager not configured", nil)
	}
	if err := scope.Validate(); err != nil {
		return zero, err
	}

	op := m.op("create_new_version")
	err := m.coord.Run(ctx, op, scope, func(attempt int) error {
		return m.runner.InTx(ctx, func(dbc dbctx.Context) error {
			next, err := m.seq.ReserveNext(dbc, scope)
			if err != nil {
				return err
			}

			var parent *uuid.UUID
			latest, err := m.store.Latest(dbc, scope)
			switch {
			case err == nil:
				id := latest.RecordID()
				parent = &id
			case IsCode(err, CodeNotFound):
				// first version in this scope
			default:
				return err
			}

			rec.ApplyVersion(uuid.New(), scope, next, parent, time.Now().UTC())
			if err := m.store.InsertVersion(dbc, rec); err != nil {
				return m.coord.classifier.Classify(err, scope, next)
			}
			return nil
		})
	})
	if err != nil {
		return zero, err
	}
	if m.log != nil {
		m.log.Debug("version created", "scope", scope.String(), "version", rec.VersionNumber())
	}
	return rec, nil
}

// GetLatest returns the record holding the maximum version for scope.
// CodeNotFound when the scope has never been used.
func (m *Manager[R]) GetLatest(ctx context.Context, scope ScopeKey) (R, error) {
	var zero R
	if err := scope.Validate(); err != nil {
		return zero, err
	}
	rec, err := m.store.Latest(dbctx.Context{Ctx: ctx}, scope)
	if err != nil {
		return zero, err
	}
	return rec, nil
}

// GetVersion returns one slot of the lineage. CodeNotFound when absent.
func (m *Manager[R]) GetVersion(ctx context.Context, scope ScopeKey, version int) (R, error) {
	var zero R
	if err := scope.Validate(); err != nil {
		return zero, err
	}
	if version < 1 {
		return zero, NewError(CodeValidation, m.op("get_version"), "version must be >= 1", nil)
	}
	rec, err := m.store.GetVersion(dbctx.Context{Ctx: ctx}, scope, version)
	if err != nil {
		return zero, err
	}
	return rec, nil
}

// ListLineage returns the full chain for scope ascending by version.
// An unused scope yields an empty slice, not an error.
func (m *Manager[R]) ListLineage(ctx context.Context, scope ScopeKey) ([]R, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return m.store.ListLineage(dbctx.Context{Ctx: ctx}, scope)
}

func (m *Manager[R]) op(action string) string {
	if m == nil || m.name == "" {
		return "versioning." + action
	}
	return m.name + "." + action
}
