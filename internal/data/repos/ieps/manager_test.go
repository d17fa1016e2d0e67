package ieps

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos/testutil"
	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/versioning"
)

func newIEPManager(t *testing.T, db *gorm.DB, strategy string, maxAttempts int) *versioning.Manager[*types.IEP] {
	t.Helper()

	store := newTestStore(t, db)
	classifier := versioning.NewConstraintClassifier(types.IEPVersionConstraints, types.IEPNaturalKeys)
	policy := versioning.Policy{
		Strategy:    strategy,
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    8 * time.Millisecond,
		JitterMin:   0.5,
		JitterMax:   1.5,
	}
	coord := versioning.NewCoordinator(policy, classifier, versioning.NopSink{}, testutil.Logger(t))
	seq := versioning.NewSequencer(strategy, "", "iep", store)
	return versioning.NewManager[*types.IEP]("iep", versioning.NewGormTxRunner(db), store, seq, coord, testutil.Logger(t))
}

func draftIEP(payload string) *types.IEP {
	return &types.IEP{
		Status:    types.IEPStatusDraft,
		Content:   datatypes.JSON([]byte(payload)),
		CreatedBy: "case-manager-1",
	}
}

func TestIEPManagerLifecycleSQLite(t *testing.T) {
	db := testutil.SQLiteDB(t)
	mgr := newIEPManager(t, db, versioning.StrategyOptimistic, 5)
	ctx := context.Background()
	scope := versioning.NewScopeKey(uuid.New(), "2024-2025")

	v1, err := mgr.CreateNewVersion(ctx, scope, draftIEP(`{"rev":"P1"}`))
	if err != nil {
		t.Fatalf("CreateNewVersion P1: %v", err)
	}
	if v1.Version != 1 || v1.ParentVersionID != nil {
		t.Fatalf("P1: want v1 with no parent, got v%d parent=%v", v1.Version, v1.ParentVersionID)
	}

	v2, err := mgr.CreateNewVersion(ctx, scope, draftIEP(`{"rev":"P2"}`))
	if err != nil {
		t.Fatalf("CreateNewVersion P2: %v", err)
	}
	if v2.Version != 2 || v2.ParentVersionID == nil || *v2.ParentVersionID != v1.ID {
		t.Fatalf("P2: want v2 with parent %s, got v%d parent=%v", v1.ID, v2.Version, v2.ParentVersionID)
	}

	latest, err := mgr.GetLatest(ctx, scope)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.ID != v2.ID {
		t.Fatalf("GetLatest: want %s got %s", v2.ID, latest.ID)
	}

	lineage, err := mgr.ListLineage(ctx, scope)
	if err != nil {
		t.Fatalf("ListLineage: %v", err)
	}
	if len(lineage) != 2 || lineage[0].Version != 1 || lineage[1].Version != 2 {
		t.Fatalf("ListLineage: unexpected chain: %+v", lineage)
	}
}

// Concurrent creates through a real database stay gap-free. The sqlite pool
// is capped at one connection: sqlite upgrades its locks mid-transaction,
// so overlapping writers would deadlock instead of colliding cleanly.
func TestIEPManagerConcurrentSQLite(t *testing.T) {
	db := testutil.SQLiteDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	mgr := newIEPManager(t, db, versioning.StrategyOptimistic, 16)
	scope := versioning.NewScopeKey(uuid.New(), "2024-2025")

	const workers = 8
	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		eg.Go(func() error {
			_, err := mgr.CreateNewVersion(context.Background(), scope, draftIEP(fmt.Sprintf(`{"writer":%d}`, i)))
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("concurrent create: %v", err)
	}

	assertContiguousLineage(t, mgr, scope, workers)
}

func TestIEPManagerConcurrentPostgres(t *testing.T) {
	db := testutil.DB(t)

	for _, strategy := range []string{versioning.StrategyAdvisory, versioning.StrategyOptimistic} {
		strategy := strategy
		t.Run(strategy, func(t *testing.T) {
			mgr := newIEPManager(t, db, strategy, 24)
			scope := versioning.NewScopeKey(uuid.New(), "2024-2025")
			t.Cleanup(func() {
				db.Where("student_id = ?", scope.SubjectID).Delete(&types.AuditEvent{})
				db.Where("student_id = ?", scope.SubjectID).Delete(&types.IEP{})
			})

			const workers = 12
			var eg errgroup.Group
			for i := 0; i < workers; i++ {
				i := i
				eg.Go(func() error {
					_, err := mgr.CreateNewVersion(context.Background(), scope, draftIEP(fmt.Sprintf(`{"writer":%d}`, i)))
					return err
				})
			}
			if err := eg.Wait(); err != nil {
				t.Fatalf("concurrent create (%s): %v", strategy, err)
			}

			assertContiguousLineage(t, mgr, scope, workers)

			// Collided attempts roll back their audit rows with the
			// insert, so the trail holds exactly one row per version.
			var trail int64
			err := db.Model(&types.AuditEvent{}).
				Where("entity_kind = ? AND action = ? AND student_id = ?", "iep", types.AuditActionVersionCreated, scope.SubjectID).
				Count(&trail).Error
			if err != nil {
				t.Fatalf("count audit rows: %v", err)
			}
			if trail != int64(workers) {
				t.Fatalf("audit trail: want=%d got=%d", workers, trail)
			}
		})
	}
}

func assertContiguousLineage(t *testing.T, mgr *versioning.Manager[*types.IEP], scope versioning.ScopeKey, want int) {
	t.Helper()

	lineage, err := mgr.ListLineage(context.Background(), scope)
	if err != nil {
		t.Fatalf("ListLineage: %v", err)
	}
	if len(lineage) != want {
		t.Fatalf("lineage length: want=%d got=%d", want, len(lineage))
	}

	versions := make([]int, 0, len(lineage))
	byVersion := make(map[int]*types.IEP, len(lineage))
	for _, rec := range lineage {
		versions = append(versions, rec.Version)
		byVersion[rec.Version] = rec
	}
	sort.Ints(versions)
	for i, v := range versions {
		if v != i+1 {
			t.Fatalf("versions not contiguous: %v", versions)
		}
	}
	for v := 2; v <= want; v++ {
		rec := byVersion[v]
		parent := byVersion[v-1]
		if rec.ParentVersionID == nil || *rec.ParentVersionID != parent.ID {
			t.Fatalf("v%d parent: want=%s got=%v", v, parent.ID, rec.ParentVersionID)
		}
	}
	if byVersion[1].ParentVersionID != nil {
		t.Fatalf("v1 should have no parent, got %v", byVersion[1].ParentVersionID)
	}
}
