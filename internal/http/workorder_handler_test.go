package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/maintenance-cmms/internal/application"
)

type workOrderServiceStub struct {
	createFunc func(ctx context.Context, params application.CreateWorkOrderParams) (application.WorkOrder, error)
	getFunc    func(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	listFunc   func(ctx context.Context, params application.ListWorkOrdersParams) ([]application.WorkOrder, error)
	updateFunc func(ctx context.Context, params application.UpdateWorkOrderParams) (application.WorkOrder, error)
}

func (s *workOrderServiceStub) Create(ctx context.Context, params application.CreateWorkOrderParams) (application.WorkOrder, error) {
	if s.createFunc == nil {
		return application.WorkOrder{}, nil
	}
	return s.createFunc(ctx, params)
}

func (s *workOrderServiceStub) Get(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error) {
	if s.getFunc == nil {
		return application.WorkOrder{}, nil
	}
	return s.getFunc(ctx, principal, workOrderID)
}

func (s *workOrderServiceStub) List(ctx context.Context, params application.ListWorkOrdersParams) ([]application.WorkOrder, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, params)
}

func (s *workOrderServiceStub) Update(ctx context.Context, params application.UpdateWorkOrderParams) (application.WorkOrder, error) {
	if s.updateFunc == nil {
		return application.WorkOrder{}, nil
	}
	return s.updateFunc(ctx, params)
}

type lifecycleServiceStub struct {
	submitFunc  func(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	approveFunc func(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	deleteFunc  func(ctx context.Context, principal application.Principal, workOrderID string) error
}

func (s *lifecycleServiceStub) Submit(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error) {
	if s.submitFunc == nil {
		return application.WorkOrder{}, nil
	}
	return s.submitFunc(ctx, principal, workOrderID)
}

func (s *lifecycleServiceStub) Approve(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error) {
	if s.approveFunc == nil {
		return application.WorkOrder{}, nil
	}
	return s.approveFunc(ctx, principal, workOrderID)
}

func (s *lifecycleServiceStub) Delete(ctx context.Context, principal application.Principal, workOrderID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, principal, workOrderID)
}

type orchestratorStub struct {
	startWorkFunc func(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, application.TimeEntry, error)
	completeFunc  func(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	rejectFunc    func(ctx context.Context, principal application.Principal, workOrderID, reason string) (application.WorkOrder, error)
}

func (s *orchestratorStub) StartWork(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, application.TimeEntry, error) {
	if s.startWorkFunc == nil {
		return application.WorkOrder{}, application.TimeEntry{}, nil
	}
	return s.startWorkFunc(ctx, principal, workOrderID)
}

func (s *orchestratorStub) Complete(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error) {
	if s.completeFunc == nil {
		return application.WorkOrder{}, nil
	}
	return s.completeFunc(ctx, principal, workOrderID)
}

func (s *orchestratorStub) Reject(ctx context.Context, principal application.Principal, workOrderID, reason string) (application.WorkOrder, error) {
	if s.rejectFunc == nil {
		return application.WorkOrder{}, nil
	}
	return s.rejectFunc(ctx, principal, workOrderID, reason)
}

func testWorkOrderHandler(service *workOrderServiceStub, lifecycle *lifecycleServiceStub, orchestrator *orchestratorStub) *WorkOrderHandler {
	if service == nil {
		service = &workOrderServiceStub{}
	}
	if lifecycle == nil {
		lifecycle = &lifecycleServiceStub{}
	}
	if orchestrator == nil {
		orchestrator = &orchestratorStub{}
	}
	return NewWorkOrderHandler(service, lifecycle, orchestrator, quietLogger())
}

func draftOrder(id string) application.WorkOrder {
	return application.WorkOrder{
		ID:        id,
		Sequence:  7,
		Title:     "Grease conveyor",
		Priority:  application.PriorityMedium,
		Type:      application.TypeCorrective,
		Status:    application.StatusDraft,
		CreatedBy: "tech-1",
		CreatedAt: handlerEpoch,
		UpdatedAt: handlerEpoch,
	}
}

func TestWorkOrderHandler_CreateReturnsCreatedOrder(t *testing.T) {
	t.Parallel()

	service := &workOrderServiceStub{
		createFunc: func(_ context.Context, params application.CreateWorkOrderParams) (application.WorkOrder, error) {
			if params.Principal.ActorID != "tech-1" {
				t.Fatalf("expected principal tech-1, got %q", params.Principal.ActorID)
			}
			if params.Input.Title != "Grease conveyor" {
				t.Fatalf("expected title to be forwarded, got %q", params.Input.Title)
			}
			if params.Input.DueDate == nil || !params.Input.DueDate.Equal(handlerEpoch.AddDate(0, 0, 7)) {
				t.Fatalf("expected parsed due date, got %v", params.Input.DueDate)
			}
			return draftOrder("wo-1"), nil
		},
	}
	handler := testWorkOrderHandler(service, nil, nil)

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/work-orders",
		`{"title":"Grease conveyor","due_date":"2025-03-10T08:00:00Z"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBodyMap(t, rec)
	if body["id"] != "wo-1" {
		t.Fatalf("expected work order wo-1, got %v", body["id"])
	}
	if body["status"] != "draft" {
		t.Fatalf("expected draft status, got %v", body["status"])
	}
}

func TestWorkOrderHandler_CreateRejectsBadDueDate(t *testing.T) {
	t.Parallel()

	handler := testWorkOrderHandler(nil, nil, nil)

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/work-orders",
		`{"title":"Grease conveyor","due_date":"next tuesday"}`))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	resp := decodeErrorBody(t, rec)
	if _, ok := resp.Errors["due_date"]; !ok {
		t.Fatalf("expected field error for due_date, got %v", resp.Errors)
	}
}

func TestWorkOrderHandler_CreateMapsValidationError(t *testing.T) {
	t.Parallel()

	service := &workOrderServiceStub{
		createFunc: func(context.Context, application.CreateWorkOrderParams) (application.WorkOrder, error) {
			return application.WorkOrder{}, &application.ValidationError{
				FieldErrors: map[string]string{"title": "title is required"},
			}
		},
	}
	handler := testWorkOrderHandler(service, nil, nil)

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/work-orders", `{"title":""}`))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	resp := decodeErrorBody(t, rec)
	if resp.Errors["title"] != "title is required" {
		t.Fatalf("expected title error, got %v", resp.Errors)
	}
}

func TestWorkOrderHandler_ListParsesQueryFilters(t *testing.T) {
	t.Parallel()

	var captured application.ListWorkOrdersParams
	service := &workOrderServiceStub{
		listFunc: func(_ context.Context, params application.ListWorkOrdersParams) ([]application.WorkOrder, error) {
			captured = params
			return []application.WorkOrder{draftOrder("wo-1"), draftOrder("wo-2")}, nil
		},
	}
	handler := testWorkOrderHandler(service, nil, nil)

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodGet,
		"/work-orders?status=open,%20in_progress&assigned_to=tech-2", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(captured.Statuses) != 2 ||
		captured.Statuses[0] != application.StatusOpen ||
		captured.Statuses[1] != application.StatusInProgress {
		t.Fatalf("expected parsed status filter, got %v", captured.Statuses)
	}
	if captured.AssignedTo != "tech-2" {
		t.Fatalf("expected assigned_to tech-2, got %q", captured.AssignedTo)
	}

	body := decodeBodyMap(t, rec)
	orders, ok := body["work_orders"].([]any)
	if !ok || len(orders) != 2 {
		t.Fatalf("expected two work orders, got %v", body["work_orders"])
	}
}

func TestWorkOrderHandler_GetMissingOrderAnswers404(t *testing.T) {
	t.Parallel()

	service := &workOrderServiceStub{
		getFunc: func(context.Context, application.Principal, string) (application.WorkOrder, error) {
			return application.WorkOrder{}, application.ErrNotFound
		},
	}
	handler := testWorkOrderHandler(service, nil, nil)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodGet, "/work-orders/wo-ghost", ""), "id", "wo-ghost")
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestWorkOrderHandler_UpdateForwardsRouteID(t *testing.T) {
	t.Parallel()

	service := &workOrderServiceStub{
		updateFunc: func(_ context.Context, params application.UpdateWorkOrderParams) (application.WorkOrder, error) {
			if params.WorkOrderID != "wo-1" {
				t.Fatalf("expected route id wo-1, got %q", params.WorkOrderID)
			}
			order := draftOrder("wo-1")
			order.Title = params.Input.Title
			return order, nil
		},
	}
	handler := testWorkOrderHandler(service, nil, nil)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPut, "/work-orders/wo-1",
		`{"title":"Replace belt"}`), "id", "wo-1")
	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBodyMap(t, rec)
	if body["title"] != "Replace belt" {
		t.Fatalf("expected updated title, got %v", body["title"])
	}
}

func TestWorkOrderHandler_PatchCompletesViaOrchestrator(t *testing.T) {
	t.Parallel()

	var completed []string
	orchestrator := &orchestratorStub{
		completeFunc: func(_ context.Context, _ application.Principal, workOrderID string) (application.WorkOrder, error) {
			completed = append(completed, workOrderID)
			order := draftOrder(workOrderID)
			order.Status = application.StatusCompleted
			return order, nil
		},
	}
	handler := testWorkOrderHandler(nil, nil, orchestrator)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPatch, "/work-orders/wo-1",
		`{"status":"completed"}`), "id", "wo-1")
	handler.Patch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(completed) != 1 || completed[0] != "wo-1" {
		t.Fatalf("expected one completion of wo-1, got %v", completed)
	}
	body := decodeBodyMap(t, rec)
	if body["status"] != "completed" {
		t.Fatalf("expected completed status, got %v", body["status"])
	}
}

func TestWorkOrderHandler_PatchRejectsOtherStatuses(t *testing.T) {
	t.Parallel()

	orchestrator := &orchestratorStub{
		completeFunc: func(context.Context, application.Principal, string) (application.WorkOrder, error) {
			t.Fatal("orchestrator must not run for unsupported patches")
			return application.WorkOrder{}, nil
		},
	}
	handler := testWorkOrderHandler(nil, nil, orchestrator)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPatch, "/work-orders/wo-1",
		`{"status":"open"}`), "id", "wo-1")
	handler.Patch(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	resp := decodeErrorBody(t, rec)
	if _, ok := resp.Errors["status"]; !ok {
		t.Fatalf("expected field error for status, got %v", resp.Errors)
	}
}

func TestWorkOrderHandler_PatchMapsInvalidTransition(t *testing.T) {
	t.Parallel()

	orchestrator := &orchestratorStub{
		completeFunc: func(context.Context, application.Principal, string) (application.WorkOrder, error) {
			return application.WorkOrder{}, &application.InvalidTransitionError{
				From:   application.StatusDraft,
				Action: application.ActionComplete,
			}
		},
	}
	handler := testWorkOrderHandler(nil, nil, orchestrator)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPatch, "/work-orders/wo-1",
		`{"status":"completed"}`), "id", "wo-1")
	handler.Patch(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	resp := decodeErrorBody(t, rec)
	if resp.ErrorCode != "INVALID_TRANSITION" {
		t.Fatalf("expected error code INVALID_TRANSITION, got %q", resp.ErrorCode)
	}
}

func TestWorkOrderHandler_DeleteAnswersNoContent(t *testing.T) {
	t.Parallel()

	var deleted []string
	lifecycle := &lifecycleServiceStub{
		deleteFunc: func(_ context.Context, _ application.Principal, workOrderID string) error {
			deleted = append(deleted, workOrderID)
			return nil
		},
	}
	handler := testWorkOrderHandler(nil, lifecycle, nil)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodDelete, "/work-orders/wo-1", ""), "id", "wo-1")
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
	if len(deleted) != 1 || deleted[0] != "wo-1" {
		t.Fatalf("expected one delete of wo-1, got %v", deleted)
	}
}

func TestWorkOrderHandler_DeleteMapsForbidden(t *testing.T) {
	t.Parallel()

	lifecycle := &lifecycleServiceStub{
		deleteFunc: func(context.Context, application.Principal, string) error {
			return application.ErrUnauthorized
		},
	}
	handler := testWorkOrderHandler(nil, lifecycle, nil)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodDelete, "/work-orders/wo-1", ""), "id", "wo-1")
	handler.Delete(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	resp := decodeErrorBody(t, rec)
	if resp.ErrorCode != "AUTH_FORBIDDEN" {
		t.Fatalf("expected error code AUTH_FORBIDDEN, got %q", resp.ErrorCode)
	}
}

func TestWorkOrderHandler_SubmitRunsLifecycle(t *testing.T) {
	t.Parallel()

	lifecycle := &lifecycleServiceStub{
		submitFunc: func(_ context.Context, _ application.Principal, workOrderID string) (application.WorkOrder, error) {
			order := draftOrder(workOrderID)
			order.Status = application.StatusPendingApproval
			return order, nil
		},
	}
	handler := testWorkOrderHandler(nil, lifecycle, nil)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPost, "/work-orders/wo-1/submit", ""), "id", "wo-1")
	handler.Submit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeBodyMap(t, rec)
	if body["status"] != "pending_approval" {
		t.Fatalf("expected pending_approval, got %v", body["status"])
	}
}

func TestWorkOrderHandler_RejectForwardsReason(t *testing.T) {
	t.Parallel()

	var captured string
	orchestrator := &orchestratorStub{
		rejectFunc: func(_ context.Context, _ application.Principal, workOrderID, reason string) (application.WorkOrder, error) {
			captured = reason
			order := draftOrder(workOrderID)
			return order, nil
		},
	}
	handler := testWorkOrderHandler(nil, nil, orchestrator)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPost, "/work-orders/wo-1/reject",
		`{"reason":"  needs asset id  "}`), "id", "wo-1")
	handler.Reject(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if captured != "needs asset id" {
		t.Fatalf("expected trimmed reason, got %q", captured)
	}
}

func TestWorkOrderHandler_RejectToleratesEmptyBody(t *testing.T) {
	t.Parallel()

	orchestrator := &orchestratorStub{
		rejectFunc: func(_ context.Context, _ application.Principal, workOrderID, reason string) (application.WorkOrder, error) {
			if reason != "" {
				t.Fatalf("expected empty reason, got %q", reason)
			}
			return draftOrder(workOrderID), nil
		},
	}
	handler := testWorkOrderHandler(nil, nil, orchestrator)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPost, "/work-orders/wo-1/reject", ""), "id", "wo-1")
	handler.Reject(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWorkOrderHandler_RejectMapsDataIntegrity(t *testing.T) {
	t.Parallel()

	orchestrator := &orchestratorStub{
		rejectFunc: func(context.Context, application.Principal, string, string) (application.WorkOrder, error) {
			return application.WorkOrder{}, &application.DataIntegrityError{
				Message: "open time entries exist for work order wo-1",
			}
		},
	}
	handler := testWorkOrderHandler(nil, nil, orchestrator)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPost, "/work-orders/wo-1/reject", ""), "id", "wo-1")
	handler.Reject(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	resp := decodeErrorBody(t, rec)
	if resp.ErrorCode != "DATA_INTEGRITY" {
		t.Fatalf("expected error code DATA_INTEGRITY, got %q", resp.ErrorCode)
	}
}

func TestWorkOrderHandler_StartReturnsOrderAndEntry(t *testing.T) {
	t.Parallel()

	orchestrator := &orchestratorStub{
		startWorkFunc: func(_ context.Context, _ application.Principal, workOrderID string) (application.WorkOrder, application.TimeEntry, error) {
			order := draftOrder(workOrderID)
			order.Status = application.StatusInProgress
			return order, openWorkEntry(workOrderID), nil
		},
	}
	handler := testWorkOrderHandler(nil, nil, orchestrator)

	rec := httptest.NewRecorder()
	req := withRouteParam(authedRequest(http.MethodPost, "/work-orders/wo-1/start", ""), "id", "wo-1")
	handler.Start(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeBodyMap(t, rec)
	order, ok := body["work_order"].(map[string]any)
	if !ok {
		t.Fatalf("expected work_order in response, got %v", body)
	}
	if order["status"] != "in_progress" {
		t.Fatalf("expected in_progress status, got %v", order["status"])
	}
	entry, ok := body["entry"].(map[string]any)
	if !ok {
		t.Fatalf("expected entry in response, got %v", body)
	}
	if entry["work_order_id"] != "wo-1" {
		t.Fatalf("expected entry on wo-1, got %v", entry["work_order_id"])
	}
}
