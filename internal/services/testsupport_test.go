package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/repos"
	"github.com/brightpath/iep-backend/internal/data/repos/testutil"
	types "github.com/brightpath/iep-backend/internal/domain"
	"github.com/brightpath/iep-backend/internal/platform/ctxutil"
	"github.com/brightpath/iep-backend/internal/realtime"
	"github.com/brightpath/iep-backend/internal/versioning"
)

// recordingBus captures published SSE messages in order.
type recordingBus struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (rb *recordingBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.msgs = append(rb.msgs, msg)
	return nil
}

func (rb *recordingBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	return nil
}

func (rb *recordingBus) Close() error { return nil }

func (rb *recordingBus) events(event realtime.SSEEvent) []realtime.SSEMessage {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	var out []realtime.SSEMessage
	for _, m := range rb.msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

type testEnv struct {
	db  *gorm.DB
	bus *recordingBus

	students  StudentService
	ieps      IEPService
	approvals ApprovalService
	presents  PresentLevelService
	documents DocumentService
	audits    AuditService

	iepStore     repos.IEPStore
	approvalRepo repos.ApprovalRepo
	iepMgr       *versioning.Manager[*types.IEP]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SQLiteDB(t)
	log := testutil.Logger(t)

	auditRepo := repos.NewAuditRepo(db, log)
	studentRepo := repos.NewStudentRepo(db, log)
	docRepo := repos.NewDocumentRepo(db, log)
	approvalRepo := repos.NewApprovalRepo(db, log)
	iepStore := repos.NewIEPStore(db, auditRepo, log)
	plStore := repos.NewPresentLevelStore(db, auditRepo, log)

	policy := versioning.Policy{
		Strategy:    versioning.StrategyOptimistic,
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    8 * time.Millisecond,
		JitterMin:   0.5,
		JitterMax:   1.5,
	}
	runner := versioning.NewGormTxRunner(db)

	iepClassifier := versioning.NewConstraintClassifier(types.IEPVersionConstraints, types.IEPNaturalKeys)
	iepCoord := versioning.NewCoordinator(policy, iepClassifier, versioning.NopSink{}, log)
	iepSeq := versioning.NewSequencer(versioning.StrategyOptimistic, "", "iep", iepStore)
	iepMgr := versioning.NewManager[*types.IEP]("iep", runner, iepStore, iepSeq, iepCoord, log)

	plClassifier := versioning.NewConstraintClassifier(types.PresentLevelVersionConstraints, nil)
	plCoord := versioning.NewCoordinator(policy, plClassifier, versioning.NopSink{}, log)
	plSeq := versioning.NewSequencer(versioning.StrategyOptimistic, "", "present_level", plStore)
	plMgr := versioning.NewManager[*types.PresentLevelAssessment]("present_level", runner, plStore, plSeq, plCoord, log)

	rb := &recordingBus{}
	return &testEnv{
		db:           db,
		bus:          rb,
		students:     NewStudentService(db, log, studentRepo, auditRepo),
		ieps:         NewIEPService(db, log, iepMgr, iepStore, studentRepo, approvalRepo, auditRepo, rb),
		approvals:    NewApprovalService(db, log, approvalRepo, iepStore, auditRepo, rb),
		presents:     NewPresentLevelService(db, log, plMgr, plStore, studentRepo, auditRepo, rb),
		documents:    NewDocumentService(db, log, docRepo, studentRepo, auditRepo, rb),
		audits:       NewAuditService(db, log, auditRepo),
		iepStore:     iepStore,
		approvalRepo: approvalRepo,
		iepMgr:       iepMgr,
	}
}

func actorCtx(id, role string) context.Context {
	return ctxutil.WithActor(context.Background(), &ctxutil.Actor{ID: id, Role: role})
}

var studentSeq int

func (env *testEnv) newStudent(t *testing.T, ctx context.Context) *types.Student {
	t.Helper()
	studentSeq++
	student, err := env.students.Create(ctx, CreateStudentInput{
		ExternalRef: fmt.Sprintf("S-%04d", studentSeq),
		FirstName:   "Jordan",
		LastName:    "Rivera",
		GradeLevel:  "5",
		CaseManager: "case-manager-1",
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	return student
}
