package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/registry"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type reconcileFixture struct {
	tasks     *registry.Tasks
	orders    *registry.Orders
	api       *stubOrderAPI
	recorder  *stubRecorder
	publisher *stubPublisher
	clock     *fakeClock
	engine    *Reconciler
}

func newReconcileFixture(opts ReconcileOptions) *reconcileFixture {
	f := &reconcileFixture{
		tasks:     registry.NewTasks(),
		orders:    registry.NewOrders(),
		api:       &stubOrderAPI{failFor: map[string]error{}},
		recorder:  &stubRecorder{},
		publisher: &stubPublisher{},
		clock:     &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}
	opts.Now = f.clock.Now
	f.engine = NewReconciler(f.tasks, f.orders, f.api, f.recorder, f.publisher, opts, discardLogger)
	return f
}

func (f *reconcileFixture) setTask(id string, status domain.TaskStatus) {
	t, _ := f.tasks.Get(id)
	t.Status = status
	f.tasks.Upsert(t)
}

func (f *reconcileFixture) orderStatus(t *testing.T, id string) domain.OrderStatus {
	t.Helper()
	o, ok := f.orders.Get(id)
	if !ok {
		t.Fatalf("order %s not cached", id)
	}
	return o.Status
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestReconcile_ScenarioA_CompletesWhenLastTaskCompletes(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	f.tasks.Replace([]domain.Task{
		{ID: "T1", OrderID: "O", Status: domain.TaskPending},
		{ID: "T2", OrderID: "O", Status: domain.TaskPending},
	})

	f.setTask("T1", domain.TaskCompleted)
	f.engine.Run(context.Background())
	if got := f.orderStatus(t, "O"); got != domain.OrderProcessing {
		t.Fatalf("expected O to stay processing, got %s", got)
	}
	if f.api.callCount() != 0 {
		t.Fatalf("expected no backend call, got %v", f.api.calls)
	}

	f.setTask("T2", domain.TaskCompleted)
	report := f.engine.Run(context.Background())
	if got := f.orderStatus(t, "O"); got != domain.OrderCompleted {
		t.Fatalf("expected O completed, got %s", got)
	}
	if report.Committed() != 1 {
		t.Fatalf("expected 1 committed transition, got %d", report.Committed())
	}
	if len(f.api.calls) != 1 || f.api.calls[0] != "O:completed" {
		t.Fatalf("expected exactly one completion call, got %v", f.api.calls)
	}
}

func TestReconcile_ScenarioB_ReopenedTaskReopensOrder(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderCompleted}})
	f.tasks.Replace([]domain.Task{{ID: "T", OrderID: "O", Status: domain.TaskCompleted}})

	f.setTask("T", domain.TaskInProgress)
	f.engine.Run(context.Background())

	if got := f.orderStatus(t, "O"); got != domain.OrderProcessing {
		t.Fatalf("expected O processing, got %s", got)
	}
	if len(f.api.calls) != 1 || f.api.calls[0] != "O:processing" {
		t.Fatalf("unexpected backend calls: %v", f.api.calls)
	}
}

func TestReconcile_ScenarioC_OrderWithoutTasksUntouched(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderPending}})
	f.tasks.Replace([]domain.Task{{ID: "T", Status: domain.TaskPending}})

	f.setTask("T", domain.TaskCompleted)
	report := f.engine.Run(context.Background())

	if got := f.orderStatus(t, "O"); got != domain.OrderPending {
		t.Fatalf("expected O untouched, got %s", got)
	}
	if report.Evaluated != 0 || f.api.callCount() != 0 {
		t.Fatalf("expected nothing evaluated, got report=%+v calls=%v", report, f.api.calls)
	}
}

func TestReconcile_DeletionRecomputesOverRemainingTasks(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	f.tasks.Replace([]domain.Task{
		{ID: "T1", OrderID: "O", Status: domain.TaskCompleted},
		{ID: "T2", OrderID: "O", Status: domain.TaskPending},
	})

	f.engine.Run(context.Background())
	if f.api.callCount() != 0 {
		t.Fatalf("expected no call while T2 is pending")
	}

	f.tasks.Remove("T2")
	f.engine.Run(context.Background())
	if got := f.orderStatus(t, "O"); got != domain.OrderCompleted {
		t.Fatalf("expected O completed after deleting the open task, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func TestReconcile_InvariantHoldsAfterQuiescence(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{
		{ID: "a", Status: domain.OrderPending},
		{ID: "b", Status: domain.OrderCompleted},
		{ID: "c", Status: domain.OrderProcessing},
		{ID: "d", Status: domain.OrderCompleted},
		{ID: "e", Status: domain.OrderInTransit},
	})
	f.tasks.Replace([]domain.Task{
		{ID: "1", OrderID: "a", Status: domain.TaskCompleted},
		{ID: "2", OrderID: "b", Status: domain.TaskPending},
		{ID: "3", OrderID: "c", Status: domain.TaskCompleted},
		{ID: "4", OrderID: "c", Status: domain.TaskInProgress},
		{ID: "5", OrderID: "d", Status: domain.TaskCompleted},
		{ID: "6", OrderID: "e", Status: domain.TaskCompleted},
		{ID: "7", OrderID: "ghost", Status: domain.TaskCompleted},
	})

	f.engine.Run(context.Background())

	groups := map[string][]domain.Task{}
	for _, task := range f.tasks.Snapshot() {
		groups[task.OrderID] = append(groups[task.OrderID], task)
	}
	for _, o := range f.orders.Snapshot() {
		linked := groups[o.ID]
		if len(linked) == 0 {
			continue
		}
		all := true
		for _, task := range linked {
			all = all && task.Status == domain.TaskCompleted
		}
		if (o.Status == domain.OrderCompleted) != all {
			t.Errorf("order %s: status %s but all-completed=%v", o.ID, o.Status, all)
		}
	}
}

func TestReconcile_SecondPassIsIdempotent(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{
		{ID: "a", Status: domain.OrderProcessing},
		{ID: "b", Status: domain.OrderCompleted},
	})
	f.tasks.Replace([]domain.Task{
		{ID: "1", OrderID: "a", Status: domain.TaskCompleted},
		{ID: "2", OrderID: "b", Status: domain.TaskPending},
	})

	f.engine.Run(context.Background())
	first := f.api.callCount()
	if first != 2 {
		t.Fatalf("expected 2 calls on first pass, got %d", first)
	}

	report := f.engine.Run(context.Background())
	if f.api.callCount() != first {
		t.Fatalf("second pass made %d extra calls", f.api.callCount()-first)
	}
	if len(report.Transitions) != 0 {
		t.Fatalf("expected no transitions on second pass, got %+v", report.Transitions)
	}
}

func TestReconcile_RapidCompletionsFireOnce(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	f.tasks.Replace([]domain.Task{
		{ID: "T1", OrderID: "O", Status: domain.TaskPending},
		{ID: "T2", OrderID: "O", Status: domain.TaskPending},
	})

	f.setTask("T1", domain.TaskCompleted)
	f.setTask("T2", domain.TaskCompleted)

	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			f.engine.Run(context.Background())
			done <- struct{}{}
		}()
	}
	<-done
	<-done

	if f.api.callCount() != 1 {
		t.Fatalf("expected exactly one backend call, got %v", f.api.calls)
	}
}

func TestReconcile_CountersMoveByOnePair(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{
		{ID: "a", Status: domain.OrderProcessing},
		{ID: "b", Status: domain.OrderProcessing},
	})
	f.tasks.Replace([]domain.Task{{ID: "1", OrderID: "a", Status: domain.TaskCompleted}})

	f.engine.Run(context.Background())

	counts := f.orders.Counts()
	if counts[domain.OrderProcessing] != 1 || counts[domain.OrderCompleted] != 1 {
		t.Fatalf("unexpected counters: %v", counts)
	}
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestReconcile_RejectedUpdateLeavesCacheAndRetriesNextPass(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	f.tasks.Replace([]domain.Task{{ID: "T", OrderID: "O", Status: domain.TaskCompleted}})
	f.api.failFor["O"] = errBackendRejected

	report := f.engine.Run(context.Background())
	if got := f.orderStatus(t, "O"); got != domain.OrderProcessing {
		t.Fatalf("cache must be left as-is on rejection, got %s", got)
	}
	if len(report.Transitions) != 1 || report.Transitions[0].Phase != domain.PhaseFailed {
		t.Fatalf("expected one failed transition, got %+v", report.Transitions)
	}
	if len(f.publisher.published) != 0 {
		t.Fatal("failed transitions must not be published")
	}
	if len(f.recorder.recorded) != 1 {
		t.Fatal("failed transitions must be audited")
	}

	delete(f.api.failFor, "O")
	f.engine.Run(context.Background())
	if got := f.orderStatus(t, "O"); got != domain.OrderCompleted {
		t.Fatalf("expected retry on next pass to complete O, got %s", got)
	}
	if len(f.publisher.published) != 1 {
		t.Fatalf("expected committed transition to be published")
	}
}

func TestReconcile_BackoffSkipsUntilDelayElapses(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{BackoffBase: time.Minute, BackoffMax: 10 * time.Minute})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	f.tasks.Replace([]domain.Task{{ID: "T", OrderID: "O", Status: domain.TaskCompleted}})
	f.api.failFor["O"] = errBackendRejected

	f.engine.Run(context.Background())
	report := f.engine.Run(context.Background())
	if f.api.callCount() != 1 {
		t.Fatalf("expected backoff to suppress the second call, got %v", f.api.calls)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "O" {
		t.Fatalf("expected O skipped, got %+v", report.Skipped)
	}

	f.clock.Advance(time.Minute)
	f.engine.Run(context.Background())
	if f.api.callCount() != 2 {
		t.Fatalf("expected retry after backoff, got %v", f.api.calls)
	}

	// Second failure doubles the delay.
	f.clock.Advance(time.Minute)
	f.engine.Run(context.Background())
	if f.api.callCount() != 2 {
		t.Fatalf("expected doubled backoff to suppress the call, got %v", f.api.calls)
	}
}

func TestReconcile_ParkedOrderResumesWhenInputsChange(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{MaxFailures: 2})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	f.tasks.Replace([]domain.Task{
		{ID: "T1", OrderID: "O", Status: domain.TaskCompleted},
	})
	f.api.failFor["O"] = errBackendRejected

	for i := 0; i < 5; i++ {
		f.engine.Run(context.Background())
	}
	if f.api.callCount() != 2 {
		t.Fatalf("expected order parked after 2 failures, got %d calls", f.api.callCount())
	}

	// A new linked task changes the inputs: the order is no longer divergent.
	f.tasks.Upsert(domain.Task{ID: "T2", OrderID: "O", Status: domain.TaskPending})
	f.engine.Run(context.Background())
	f.setTask("T2", domain.TaskCompleted)
	delete(f.api.failFor, "O")
	f.engine.Run(context.Background())

	if got := f.orderStatus(t, "O"); got != domain.OrderCompleted {
		t.Fatalf("expected O completed once unparked, got %s", got)
	}
}

func TestReconcile_SessionLossAbortsPass(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{
		{ID: "a", Status: domain.OrderProcessing},
		{ID: "b", Status: domain.OrderProcessing},
	})
	f.tasks.Replace([]domain.Task{
		{ID: "1", OrderID: "a", Status: domain.TaskCompleted},
		{ID: "2", OrderID: "b", Status: domain.TaskCompleted},
	})
	f.api.failFor["a"] = fmt.Errorf("gateway: %w", domain.ErrSessionExpired)

	report := f.engine.Run(context.Background())
	if !report.Aborted {
		t.Fatal("expected pass to abort on session loss")
	}
	if f.api.callCount() != 1 {
		t.Fatalf("expected no calls after session loss, got %v", f.api.calls)
	}
	if len(f.recorder.recorded) != 0 {
		t.Fatal("session loss is not an order failure and must not be audited")
	}
}

func TestReconcile_AuditFailureIsNonFatal(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.recorder.err = fmt.Errorf("mongo unavailable")
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	f.tasks.Replace([]domain.Task{{ID: "T", OrderID: "O", Status: domain.TaskCompleted}})

	report := f.engine.Run(context.Background())
	if report.Committed() != 1 {
		t.Fatalf("expected transition committed despite audit failure")
	}
}

func TestFailureTracker_DelayCapsAtMax(t *testing.T) {
	ft := newFailureTracker(0, time.Second, 5*time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := ft.delay(i + 1); got != w {
			t.Errorf("delay(%d): got %v, want %v", i+1, got, w)
		}
	}
}

func TestReconcile_PartialTaskRegistryNeverWrites(t *testing.T) {
	f := newReconcileFixture(ReconcileOptions{})
	f.orders.Replace([]domain.Order{{ID: "O", Status: domain.OrderProcessing}})
	// Only the assignee's own task is known; others on O may still be open.
	f.tasks.ReplacePartial([]domain.Task{{ID: "mine", OrderID: "O", Status: domain.TaskCompleted}})

	report := f.engine.Run(context.Background())

	if !report.Partial {
		t.Fatalf("expected the pass to be reported as partial")
	}
	if n := f.api.callCount(); n != 0 {
		t.Fatalf("expected no backend calls, got %v", f.api.calls)
	}
	if got := f.orderStatus(t, "O"); got != domain.OrderProcessing {
		t.Fatalf("expected O to stay processing, got %s", got)
	}

	f.tasks.Replace([]domain.Task{{ID: "mine", OrderID: "O", Status: domain.TaskCompleted}})
	if report := f.engine.Run(context.Background()); report.Partial || report.Committed() != 1 {
		t.Fatalf("expected a full registry to reconcile, got %+v", report)
	}
}
