package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/maintenance-cmms/internal/application"
)

type workOrderService interface {
	Create(ctx context.Context, params application.CreateWorkOrderParams) (application.WorkOrder, error)
	Get(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	List(ctx context.Context, params application.ListWorkOrdersParams) ([]application.WorkOrder, error)
	Update(ctx context.Context, params application.UpdateWorkOrderParams) (application.WorkOrder, error)
}

type lifecycleService interface {
	Submit(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	Approve(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	Delete(ctx context.Context, principal application.Principal, workOrderID string) error
}

type workOrderOrchestrator interface {
	StartWork(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, application.TimeEntry, error)
	Complete(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	Reject(ctx context.Context, principal application.Principal, workOrderID, reason string) (application.WorkOrder, error)
}

// WorkOrderHandler serves the /work-orders endpoints.
type WorkOrderHandler struct {
	service      workOrderService
	lifecycle    lifecycleService
	orchestrator workOrderOrchestrator
	responder    responder
	logger       *slog.Logger
}

// NewWorkOrderHandler constructs a WorkOrderHandler.
func NewWorkOrderHandler(service workOrderService, lifecycle lifecycleService, orchestrator workOrderOrchestrator, logger *slog.Logger) *WorkOrderHandler {
	base := defaultLogger(logger)
	return &WorkOrderHandler{
		service:      service,
		lifecycle:    lifecycle,
		orchestrator: orchestrator,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *WorkOrderHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WorkOrderHandler", operation, attrs...)
}

func (h *WorkOrderHandler) principal(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return application.Principal{}, false
	}
	return principal, true
}

// Create handles POST /work-orders.
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req workOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode work order request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, vErr := req.toInput()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	order, err := h.service.Create(r.Context(), application.CreateWorkOrderParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.log(r.Context(), "Create").ErrorContext(r.Context(), "failed to create work order", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toWorkOrderDTO(order))
}

// List handles GET /work-orders. Query parameters: status (comma separated)
// and assigned_to.
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	params := application.ListWorkOrdersParams{
		Principal:  principal,
		AssignedTo: strings.TrimSpace(r.URL.Query().Get("assigned_to")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				params.Statuses = append(params.Statuses, application.Status(part))
			}
		}
	}

	orders, err := h.service.List(r.Context(), params)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list work orders", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]workOrderDTO, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, toWorkOrderDTO(order))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, workOrderListResponse{WorkOrders: dtos})
}

// Get handles GET /work-orders/{id}.
func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWorkOrderDTO(order))
}

// Update handles PUT /work-orders/{id}.
func (h *WorkOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req workOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode work order request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, vErr := req.toInput()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	order, err := h.service.Update(r.Context(), application.UpdateWorkOrderParams{
		Principal:   principal,
		WorkOrderID: chi.URLParam(r, "id"),
		Input:       input,
	})
	if err != nil {
		h.log(r.Context(), "Update", "work_order_id", chi.URLParam(r, "id")).
			ErrorContext(r.Context(), "failed to update work order", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWorkOrderDTO(order))
}

// Patch handles PATCH /work-orders/{id}. The only supported patch is
// {"status":"completed"}, which runs the force-stop-then-complete
// orchestration.
func (h *WorkOrderHandler) Patch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.orchestrator == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Patch", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode patch request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if application.Status(strings.TrimSpace(req.Status)) != application.StatusCompleted {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			Message: "the request contains invalid fields",
			Errors:  map[string]string{"status": "only completion is supported here; use the lifecycle endpoints for other transitions"},
		})
		return
	}

	id := chi.URLParam(r, "id")
	order, err := h.orchestrator.Complete(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), "Patch", "work_order_id", id).
			ErrorContext(r.Context(), "failed to complete work order", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWorkOrderDTO(order))
}

// Delete handles DELETE /work-orders/{id}.
func (h *WorkOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.lifecycle == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.lifecycle.Delete(r.Context(), principal, id); err != nil {
		h.log(r.Context(), "Delete", "work_order_id", id).
			ErrorContext(r.Context(), "failed to delete work order", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Submit handles POST /work-orders/{id}/submit.
func (h *WorkOrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Submit", func(ctx context.Context, principal application.Principal, id string) (application.WorkOrder, error) {
		return h.lifecycle.Submit(ctx, principal, id)
	})
}

// Approve handles POST /work-orders/{id}/approve.
func (h *WorkOrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Approve", func(ctx context.Context, principal application.Principal, id string) (application.WorkOrder, error) {
		return h.lifecycle.Approve(ctx, principal, id)
	})
}

// Reject handles POST /work-orders/{id}/reject. Body: {"reason"?}.
func (h *WorkOrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.orchestrator == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.log(r.Context(), "Reject", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reject request", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	id := chi.URLParam(r, "id")
	order, err := h.orchestrator.Reject(r.Context(), principal, id, strings.TrimSpace(req.Reason))
	if err != nil {
		h.log(r.Context(), "Reject", "work_order_id", id).
			ErrorContext(r.Context(), "failed to reject work order", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWorkOrderDTO(order))
}

// Start handles POST /work-orders/{id}/start. The transition and the timer
// start are one composed operation.
func (h *WorkOrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.orchestrator == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	order, entry, err := h.orchestrator.StartWork(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), "Start", "work_order_id", id).
			ErrorContext(r.Context(), "failed to start work", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, startWorkResponse{
		WorkOrder: toWorkOrderDTO(order),
		Entry:     toTimeEntryDTO(entry),
	})
}

func (h *WorkOrderHandler) transition(w http.ResponseWriter, r *http.Request, operation string, fn func(context.Context, application.Principal, string) (application.WorkOrder, error)) {
	if h == nil || h.lifecycle == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	order, err := fn(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), operation, "work_order_id", id).
			ErrorContext(r.Context(), "lifecycle transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWorkOrderDTO(order))
}

type workOrderRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	EquipmentID *string `json:"equipment_id,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	Type        string  `json:"type,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	OpenNow     bool    `json:"open_now,omitempty"`
}

func (req workOrderRequest) toInput() (application.WorkOrderInput, *application.ValidationError) {
	input := application.WorkOrderInput{
		Title:       req.Title,
		Description: req.Description,
		EquipmentID: req.EquipmentID,
		Priority:    application.Priority(req.Priority),
		Type:        application.WorkOrderType(req.Type),
		AssignedTo:  req.AssignedTo,
		OpenNow:     req.OpenNow,
	}
	if req.DueDate != nil && strings.TrimSpace(*req.DueDate) != "" {
		due, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.DueDate))
		if err != nil {
			vErr := &application.ValidationError{FieldErrors: map[string]string{
				"due_date": "due date must be an RFC 3339 timestamp",
			}}
			return application.WorkOrderInput{}, vErr
		}
		input.DueDate = &due
	}
	return input, nil
}

type workOrderDTO struct {
	ID               string  `json:"id"`
	Sequence         int64   `json:"sequence"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	EquipmentID      *string `json:"equipment_id,omitempty"`
	Priority         string  `json:"priority"`
	Type             string  `json:"type"`
	Status           string  `json:"status"`
	AssignedTo       *string `json:"assigned_to,omitempty"`
	CreatedBy        string  `json:"created_by"`
	DueDate          *string `json:"due_date,omitempty"`
	TotalTimeSeconds int64   `json:"total_time_seconds"`
	TotalTimeMinutes int64   `json:"total_time_minutes"`
	Notes            *string `json:"notes,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type workOrderListResponse struct {
	WorkOrders []workOrderDTO `json:"work_orders"`
}

type startWorkResponse struct {
	WorkOrder workOrderDTO `json:"work_order"`
	Entry     timeEntryDTO `json:"entry"`
}

func toWorkOrderDTO(order application.WorkOrder) workOrderDTO {
	dto := workOrderDTO{
		ID:               order.ID,
		Sequence:         order.Sequence,
		Title:            order.Title,
		Description:      order.Description,
		EquipmentID:      order.EquipmentID,
		Priority:         string(order.Priority),
		Type:             string(order.Type),
		Status:           string(order.Status),
		AssignedTo:       order.AssignedTo,
		CreatedBy:        order.CreatedBy,
		TotalTimeSeconds: order.TotalTimeSeconds,
		TotalTimeMinutes: order.TotalTimeMinutes(),
		Notes:            order.Notes,
		CreatedAt:        order.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if order.DueDate != nil {
		due := order.DueDate.UTC().Format(time.RFC3339Nano)
		dto.DueDate = &due
	}
	return dto
}
