package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type userDirectoryStub struct {
	ids map[string]bool
	err error
}

func (s *userDirectoryStub) UserExists(ctx context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ids[id], nil
}

type equipmentCatalogStub struct {
	ids map[string]bool
	err error
}

func (s *equipmentCatalogStub) EquipmentExists(ctx context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ids[id], nil
}

func testWorkOrderService(store *workOrderRepoStub) *WorkOrderService {
	users := &userDirectoryStub{ids: map[string]bool{"tech-1": true, "tech-2": true, "mgr-1": true}}
	equipment := &equipmentCatalogStub{ids: map[string]bool{"eq-1": true}}
	counter := 0
	idGen := func() string {
		counter++
		return fmt.Sprintf("wo-created-%d", counter)
	}
	at := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	return NewWorkOrderService(store, users, equipment, idGen, func() time.Time { return at }, nil)
}

func TestWorkOrderService_Create_DefaultsToDraft(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub()
	svc := testWorkOrderService(store)

	order, err := svc.Create(context.Background(), CreateWorkOrderParams{
		Principal: techPrincipal(),
		Input:     WorkOrderInput{Title: "  Replace bearing  "},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.Status != StatusDraft {
		t.Fatalf("expected draft, got %s", order.Status)
	}
	if order.Title != "Replace bearing" {
		t.Fatalf("expected trimmed title, got %q", order.Title)
	}
	if order.Priority != PriorityMedium || order.Type != TypeCorrective {
		t.Fatalf("expected defaults, got priority=%s type=%s", order.Priority, order.Type)
	}
	if order.CreatedBy != "tech-1" {
		t.Fatalf("expected creator tech-1, got %s", order.CreatedBy)
	}
	if order.Sequence == 0 {
		t.Fatal("expected a sequence number")
	}
}

func TestWorkOrderService_Create_OpenNowRequiresManager(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub()
	svc := testWorkOrderService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateWorkOrderParams{
		Principal: techPrincipal(),
		Input:     WorkOrderInput{Title: "Inspect pump", OpenNow: true},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	order, err := svc.Create(ctx, CreateWorkOrderParams{
		Principal: managerPrincipal(),
		Input:     WorkOrderInput{Title: "Inspect pump", OpenNow: true},
	})
	if err != nil {
		t.Fatalf("manager Create returned error: %v", err)
	}
	if order.Status != StatusOpen {
		t.Fatalf("expected open, got %s", order.Status)
	}
}

func TestWorkOrderService_Create_ValidatesInput(t *testing.T) {
	t.Parallel()

	missingEquipment := "eq-missing"
	missingUser := "ghost"
	cases := []struct {
		name  string
		input WorkOrderInput
		field string
	}{
		{"empty title", WorkOrderInput{Title: "   "}, "title"},
		{"unknown priority", WorkOrderInput{Title: "t", Priority: Priority("urgent")}, "priority"},
		{"unknown type", WorkOrderInput{Title: "t", Type: WorkOrderType("upgrade")}, "type"},
		{"unknown equipment", WorkOrderInput{Title: "t", EquipmentID: &missingEquipment}, "equipment_id"},
		{"unknown assignee", WorkOrderInput{Title: "t", AssignedTo: &missingUser}, "assigned_to"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := testWorkOrderService(newWorkOrderRepoStub())
			_, err := svc.Create(context.Background(), CreateWorkOrderParams{
				Principal: techPrincipal(),
				Input:     tc.input,
			})

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Fatalf("expected %s field error, got %v", tc.field, vErr.FieldErrors)
			}
		})
	}
}

func TestWorkOrderService_Update_RestrictedToInvolvedActors(t *testing.T) {
	t.Parallel()

	assignee := "tech-2"
	store := newWorkOrderRepoStub(WorkOrder{
		ID:         "wo-1",
		Title:      "Original",
		Status:     StatusOpen,
		CreatedBy:  "mgr-1",
		AssignedTo: &assignee,
	})
	svc := testWorkOrderService(store)
	ctx := context.Background()

	_, err := svc.Update(ctx, UpdateWorkOrderParams{
		Principal:   techPrincipal(),
		WorkOrderID: "wo-1",
		Input:       WorkOrderInput{Title: "Hijacked"},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for uninvolved tech, got %v", err)
	}

	updated, err := svc.Update(ctx, UpdateWorkOrderParams{
		Principal:   Principal{ActorID: "tech-2", Role: RoleTech},
		WorkOrderID: "wo-1",
		Input:       WorkOrderInput{Title: "Reworded by assignee"},
	})
	if err != nil {
		t.Fatalf("assignee Update returned error: %v", err)
	}
	if updated.Title != "Reworded by assignee" {
		t.Fatalf("unexpected title %q", updated.Title)
	}
}

func TestWorkOrderService_Update_CompletedOrderIsFrozen(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{
		ID:        "wo-1",
		Title:     "Done",
		Status:    StatusCompleted,
		CreatedBy: "tech-1",
	})
	svc := testWorkOrderService(store)

	_, err := svc.Update(context.Background(), UpdateWorkOrderParams{
		Principal:   managerPrincipal(),
		WorkOrderID: "wo-1",
		Input:       WorkOrderInput{Title: "Reopened"},
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestWorkOrderService_Update_NeverTouchesLedgerOrStatus(t *testing.T) {
	t.Parallel()

	store := newWorkOrderRepoStub(WorkOrder{
		ID:               "wo-1",
		Title:            "Original",
		Status:           StatusInProgress,
		CreatedBy:        "tech-1",
		TotalTimeSeconds: 4500,
	})
	svc := testWorkOrderService(store)

	updated, err := svc.Update(context.Background(), UpdateWorkOrderParams{
		Principal:   techPrincipal(),
		WorkOrderID: "wo-1",
		Input:       WorkOrderInput{Title: "Renamed", Priority: PriorityHigh},
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Fatalf("status changed to %s", updated.Status)
	}
	if updated.TotalTimeSeconds != 4500 {
		t.Fatalf("ledger changed to %d", updated.TotalTimeSeconds)
	}
}

func TestWorkOrderService_List_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	svc := testWorkOrderService(newWorkOrderRepoStub())

	_, err := svc.List(context.Background(), ListWorkOrdersParams{
		Principal: techPrincipal(),
		Statuses:  []Status{Status("archived")},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestWorkOrderService_Get_MissingOrderIsNotFound(t *testing.T) {
	t.Parallel()

	svc := testWorkOrderService(newWorkOrderRepoStub())

	_, err := svc.Get(context.Background(), techPrincipal(), "wo-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
