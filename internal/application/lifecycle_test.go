package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/example/maintenance-cmms/internal/persistence"
)

// workOrderRepoStub is an in-memory work order store with compare-and-set
// status semantics matching the persistence layer.
type workOrderRepoStub struct {
	mu     sync.Mutex
	orders map[string]WorkOrder

	updateStatusErr error
	purged          []string
}

func newWorkOrderRepoStub(orders ...WorkOrder) *workOrderRepoStub {
	stub := &workOrderRepoStub{orders: make(map[string]WorkOrder)}
	for _, order := range orders {
		stub.orders[order.ID] = order
	}
	return stub
}

func (s *workOrderRepoStub) CreateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return WorkOrder{}, persistence.ErrDuplicate
	}
	order.Sequence = int64(len(s.orders) + 1)
	s.orders[order.ID] = order
	return order, nil
}

func (s *workOrderRepoStub) GetWorkOrder(ctx context.Context, id string) (WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return WorkOrder{}, persistence.ErrNotFound
	}
	return order, nil
}

func (s *workOrderRepoStub) ListWorkOrders(ctx context.Context, query WorkOrderQuery) ([]WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WorkOrder
	for _, order := range s.orders {
		if len(query.Statuses) > 0 {
			matched := false
			for _, status := range query.Statuses {
				if order.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if query.AssignedTo != "" && (order.AssignedTo == nil || *order.AssignedTo != query.AssignedTo) {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *workOrderRepoStub) UpdateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return WorkOrder{}, persistence.ErrNotFound
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *workOrderRepoStub) UpdateStatus(ctx context.Context, id string, from, to Status, update StatusUpdate) (WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateStatusErr != nil {
		err := s.updateStatusErr
		s.updateStatusErr = nil
		return WorkOrder{}, err
	}
	order, ok := s.orders[id]
	if !ok {
		return WorkOrder{}, persistence.ErrNotFound
	}
	if order.Status != from {
		return WorkOrder{}, persistence.ErrStaleStatus
	}
	order.Status = to
	if update.SetNotes {
		order.Notes = update.Notes
	}
	if update.SetAssign {
		order.AssignedTo = update.AssignedTo
	}
	s.orders[id] = order
	return order, nil
}

func (s *workOrderRepoStub) DeleteWorkOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *workOrderRepoStub) DeleteEntriesForWorkOrder(ctx context.Context, workOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = append(s.purged, workOrderID)
	return nil
}

func managerPrincipal() Principal { return Principal{ActorID: "mgr-1", Role: RoleManager} }
func techPrincipal() Principal    { return Principal{ActorID: "tech-1", Role: RoleTech} }

func TestWorkOrderLifecycle_FullApprovalCycle(t *testing.T) {
	t.Parallel()

	assignee := "tech-1"
	store := newWorkOrderRepoStub(WorkOrder{
		ID:         "wo-1",
		Status:     StatusDraft,
		CreatedBy:  "tech-1",
		AssignedTo: &assignee,
	})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)
	ctx := context.Background()

	order, err := lifecycle.Submit(ctx, techPrincipal(), "wo-1")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if order.Status != StatusPendingApproval {
		t.Fatalf("expected pending_approval, got %s", order.Status)
	}

	order, err = lifecycle.Approve(ctx, managerPrincipal(), "wo-1")
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if order.Status != StatusOpen {
		t.Fatalf("expected open, got %s", order.Status)
	}

	order, err = lifecycle.Start(ctx, techPrincipal(), "wo-1")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if order.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", order.Status)
	}

	order, err = lifecycle.Complete(ctx, techPrincipal(), "wo-1")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if order.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", order.Status)
	}
}

// Every (status, action) pair outside the declared transitions must fail with
// InvalidTransitionError even for an admin who also created and holds the
// assignment, so the table itself is the only authority.
func TestWorkOrderLifecycle_UndeclaredTransitionsAreInvalid(t *testing.T) {
	t.Parallel()

	declared := map[transitionKey]bool{
		{StatusDraft, ActionSubmit}:            true,
		{StatusPendingApproval, ActionApprove}: true,
		{StatusPendingApproval, ActionReject}:  true,
		{StatusOpen, ActionStart}:              true,
		{StatusOpen, ActionComplete}:           true,
		{StatusInProgress, ActionComplete}:     true,
	}
	// Delete removes rows instead of moving them and succeeds from any
	// non-completed status.
	deletable := map[Status]bool{
		StatusDraft:           true,
		StatusPendingApproval: true,
		StatusOpen:            true,
		StatusInProgress:      true,
		StatusRejected:        true,
	}

	ctx := context.Background()
	for _, status := range Statuses() {
		for _, action := range Actions() {
			if declared[transitionKey{status, action}] {
				continue
			}
			if action == ActionDelete && deletable[status] {
				continue
			}

			actor := "admin-1"
			store := newWorkOrderRepoStub(WorkOrder{
				ID:         "wo-1",
				Status:     status,
				CreatedBy:  actor,
				AssignedTo: &actor,
			})
			lifecycle := NewWorkOrderLifecycle(store, store, nil)

			_, err := lifecycle.Transition(ctx, Principal{ActorID: actor, Role: RoleAdmin}, "wo-1", action, "")
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("%s/%s: expected InvalidTransitionError, got %v", status, action, err)
			}
			if invalid.From != status || invalid.Action != action {
				t.Fatalf("%s/%s: error reports %s/%s", status, action, invalid.From, invalid.Action)
			}
		}
	}
}

func TestWorkOrderLifecycle_ApproveRequiresManager(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusPendingApproval, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	_, err := lifecycle.Approve(context.Background(), techPrincipal(), "wo-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	order, _ := store.GetWorkOrder(context.Background(), "wo-1")
	if order.Status != StatusPendingApproval {
		t.Fatalf("status moved despite authorization failure: %s", order.Status)
	}
}

func TestWorkOrderLifecycle_ApproveOpenOrderIsInvalid(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusOpen, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	_, err := lifecycle.Approve(context.Background(), managerPrincipal(), "wo-1")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StatusOpen || invalid.Action != ActionApprove {
		t.Fatalf("unexpected error detail: %+v", invalid)
	}
}

func TestWorkOrderLifecycle_SubmitRequiresCreatorOrManager(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusDraft, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)
	ctx := context.Background()

	_, err := lifecycle.Submit(ctx, Principal{ActorID: "tech-2", Role: RoleTech}, "wo-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-creator tech, got %v", err)
	}

	if _, err := lifecycle.Submit(ctx, managerPrincipal(), "wo-1"); err != nil {
		t.Fatalf("manager Submit returned error: %v", err)
	}
}

func TestWorkOrderLifecycle_RejectReplacesNotes(t *testing.T) {
	t.Parallel()

	prior := "old notes"
	store := newWorkOrderRepoStub(WorkOrder{
		ID:        "wo-1",
		Status:    StatusPendingApproval,
		CreatedBy: "tech-1",
		Notes:     &prior,
	})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	order, err := lifecycle.Reject(context.Background(), managerPrincipal(), "wo-1", "scope unclear, split it up")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if order.Status != StatusDraft {
		t.Fatalf("expected draft after reject, got %s", order.Status)
	}
	if order.Notes == nil || *order.Notes != "scope unclear, split it up" {
		t.Fatalf("expected rejection reason in notes, got %v", order.Notes)
	}
}

func TestWorkOrderLifecycle_RejectWithEmptyReasonClearsNotes(t *testing.T) {
	t.Parallel()

	prior := "old notes"
	store := newWorkOrderRepoStub(WorkOrder{
		ID:        "wo-1",
		Status:    StatusPendingApproval,
		CreatedBy: "tech-1",
		Notes:     &prior,
	})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	order, err := lifecycle.Reject(context.Background(), managerPrincipal(), "wo-1", "")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if order.Notes != nil {
		t.Fatalf("expected notes cleared, got %q", *order.Notes)
	}
}

func TestWorkOrderLifecycle_StartClaimsUnassignedOrder(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusOpen, CreatedBy: "mgr-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	order, err := lifecycle.Start(context.Background(), techPrincipal(), "wo-1")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if order.AssignedTo == nil || *order.AssignedTo != "tech-1" {
		t.Fatalf("expected order claimed by tech-1, got %v", order.AssignedTo)
	}
	if order.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", order.Status)
	}
}

func TestWorkOrderLifecycle_StartByNonAssigneeIsUnauthorized(t *testing.T) {
	t.Parallel()

	assignee := "tech-2"
	store := newWorkOrderRepoStub(WorkOrder{
		ID:         "wo-1",
		Status:     StatusOpen,
		CreatedBy:  "mgr-1",
		AssignedTo: &assignee,
	})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	_, err := lifecycle.Start(context.Background(), techPrincipal(), "wo-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestWorkOrderLifecycle_LostRaceReportsFreshStatus(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusPendingApproval, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	// A concurrent approval wins between the read and the write; the stale
	// write fails and the error reports the status as it is now.
	store.updateStatusErr = fmt.Errorf("status moved: %w", persistence.ErrStaleStatus)
	store.orders["wo-1"] = WorkOrder{ID: "wo-1", Status: StatusOpen, CreatedBy: "tech-1"}

	_, err := lifecycle.Approve(context.Background(), managerPrincipal(), "wo-1")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StatusOpen {
		t.Fatalf("expected fresh status open in error, got %s", invalid.From)
	}
}

func TestWorkOrderLifecycle_DeletePurgesEntriesFirst(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusDraft, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	if err := lifecycle.Delete(context.Background(), managerPrincipal(), "wo-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(store.purged) != 1 || store.purged[0] != "wo-1" {
		t.Fatalf("expected time entries purged for wo-1, got %v", store.purged)
	}
	if _, err := store.GetWorkOrder(context.Background(), "wo-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected work order gone, got %v", err)
	}
}

func TestWorkOrderLifecycle_DeleteCompletedIsInvalid(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusCompleted, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	err := lifecycle.Delete(context.Background(), managerPrincipal(), "wo-1")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestWorkOrderLifecycle_DeleteRequiresManager(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusDraft, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	err := lifecycle.Delete(context.Background(), techPrincipal(), "wo-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestWorkOrderLifecycle_TransitionRejectsUnknownAction(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{ID: "wo-1", Status: StatusDraft, CreatedBy: "tech-1"})
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	_, err := lifecycle.Transition(context.Background(), managerPrincipal(), "wo-1", Action("archive"), "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestWorkOrderLifecycle_MissingOrderIsNotFound(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub()
	lifecycle := NewWorkOrderLifecycle(store, store, nil)

	_, err := lifecycle.Submit(context.Background(), managerPrincipal(), "wo-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
