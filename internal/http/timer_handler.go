package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/maintenance-cmms/internal/application"
)

type timerService interface {
	Start(ctx context.Context, principal application.Principal, workOrderID string) (application.TimeEntry, error)
	Pause(ctx context.Context, params application.PauseParams) (application.TimeEntry, application.TimeEntry, error)
	Resume(ctx context.Context, principal application.Principal, workOrderID string) (application.TimeEntry, application.TimeEntry, error)
	Stop(ctx context.Context, principal application.Principal, workOrderID string) (application.StopResult, error)
	GetActive(ctx context.Context, principal application.Principal) (*application.ActiveTimer, error)
}

type timerSwitcher interface {
	SwitchActive(ctx context.Context, principal application.Principal, workOrderID string) (application.SwitchResult, error)
}

// TimerHandler serves the /timer endpoints.
type TimerHandler struct {
	service   timerService
	switcher  timerSwitcher
	responder responder
	logger    *slog.Logger
}

// NewTimerHandler constructs a TimerHandler.
func NewTimerHandler(service timerService, switcher timerSwitcher, logger *slog.Logger) *TimerHandler {
	base := defaultLogger(logger)
	return &TimerHandler{service: service, switcher: switcher, responder: newResponder(base), logger: base}
}

func (h *TimerHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TimerHandler", operation, attrs...)
}

type timerRequest struct {
	WorkOrderID string  `json:"work_order_id"`
	BreakReason string  `json:"break_reason,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (h *TimerHandler) decode(w http.ResponseWriter, r *http.Request, operation string) (timerRequest, application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return timerRequest{}, application.Principal{}, false
	}

	var req timerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode timer request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return timerRequest{}, application.Principal{}, false
	}

	req.WorkOrderID = strings.TrimSpace(req.WorkOrderID)
	if req.WorkOrderID == "" {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			Message: "the request contains invalid fields",
			Errors:  map[string]string{"work_order_id": "work order id is required"},
		})
		return timerRequest{}, application.Principal{}, false
	}

	return req, principal, true
}

// Start handles POST /timer/start.
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, principal, ok := h.decode(w, r, "Start")
	if !ok {
		return
	}

	entry, err := h.service.Start(r.Context(), principal, req.WorkOrderID)
	if err != nil {
		h.log(r.Context(), "Start", "work_order_id", req.WorkOrderID).
			ErrorContext(r.Context(), "failed to start timer", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTimeEntryDTO(entry))
}

// Pause handles POST /timer/pause.
func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, principal, ok := h.decode(w, r, "Pause")
	if !ok {
		return
	}

	closed, opened, err := h.service.Pause(r.Context(), application.PauseParams{
		Principal:   principal,
		WorkOrderID: req.WorkOrderID,
		Reason:      application.BreakReason(req.BreakReason),
		Notes:       req.Notes,
	})
	if err != nil {
		h.log(r.Context(), "Pause", "work_order_id", req.WorkOrderID).
			ErrorContext(r.Context(), "failed to pause timer", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, handoverResponse{
		Closed: toTimeEntryDTO(closed),
		Opened: toTimeEntryDTO(opened),
	})
}

// Resume handles POST /timer/resume.
func (h *TimerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, principal, ok := h.decode(w, r, "Resume")
	if !ok {
		return
	}

	closed, opened, err := h.service.Resume(r.Context(), principal, req.WorkOrderID)
	if err != nil {
		h.log(r.Context(), "Resume", "work_order_id", req.WorkOrderID).
			ErrorContext(r.Context(), "failed to resume timer", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, handoverResponse{
		Closed: toTimeEntryDTO(closed),
		Opened: toTimeEntryDTO(opened),
	})
}

// Stop handles POST /timer/stop.
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, principal, ok := h.decode(w, r, "Stop")
	if !ok {
		return
	}

	result, err := h.service.Stop(r.Context(), principal, req.WorkOrderID)
	if err != nil {
		h.log(r.Context(), "Stop", "work_order_id", req.WorkOrderID).
			ErrorContext(r.Context(), "failed to stop timer", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, stopResponse{
		Entry:     toTimeEntryDTO(result.Entry),
		WorkOrder: toWorkOrderDTO(result.WorkOrder),
	})
}

// Switch handles POST /timer/switch.
func (h *TimerHandler) Switch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.switcher == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, principal, ok := h.decode(w, r, "Switch")
	if !ok {
		return
	}

	result, err := h.switcher.SwitchActive(r.Context(), principal, req.WorkOrderID)
	if err != nil {
		h.log(r.Context(), "Switch", "work_order_id", req.WorkOrderID).
			ErrorContext(r.Context(), "failed to switch timer", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := switchResponse{Opened: toTimeEntryDTO(result.Opened)}
	if result.Closed != nil {
		closed := toTimeEntryDTO(*result.Closed)
		resp.Closed = &closed
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Active handles GET /timer/active. A missing timer answers 200 with a null
// body so polling clients need no special casing.
func (h *TimerHandler) Active(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	active, err := h.service.GetActive(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Active").
			ErrorContext(r.Context(), "failed to read active timer", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if active == nil {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, activeTimerResponse{})
		return
	}

	entry := toTimeEntryDTO(active.Entry)
	order := toWorkOrderDTO(active.WorkOrder)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activeTimerResponse{
		Entry:          &entry,
		WorkOrder:      &order,
		ElapsedSeconds: int64(active.Elapsed / time.Second),
	})
}

type timeEntryDTO struct {
	ID          string  `json:"id"`
	ActorID     string  `json:"actor_id"`
	WorkOrderID string  `json:"work_order_id"`
	Type        string  `json:"type"`
	BreakReason *string `json:"break_reason,omitempty"`
	StartedAt   string  `json:"started_at"`
	EndedAt     *string `json:"ended_at,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type handoverResponse struct {
	Closed timeEntryDTO `json:"closed"`
	Opened timeEntryDTO `json:"opened"`
}

type stopResponse struct {
	Entry     timeEntryDTO `json:"entry"`
	WorkOrder workOrderDTO `json:"work_order"`
}

type switchResponse struct {
	Closed *timeEntryDTO `json:"closed,omitempty"`
	Opened timeEntryDTO  `json:"opened"`
}

type activeTimerResponse struct {
	Entry          *timeEntryDTO `json:"entry"`
	WorkOrder      *workOrderDTO `json:"work_order,omitempty"`
	ElapsedSeconds int64         `json:"elapsed_seconds,omitempty"`
}

func toTimeEntryDTO(entry application.TimeEntry) timeEntryDTO {
	dto := timeEntryDTO{
		ID:          entry.ID,
		ActorID:     entry.ActorID,
		WorkOrderID: entry.WorkOrderID,
		Type:        string(entry.Type),
		StartedAt:   entry.StartedAt.UTC().Format(time.RFC3339Nano),
		Notes:       entry.Notes,
	}
	if entry.BreakReason != nil {
		reason := string(*entry.BreakReason)
		dto.BreakReason = &reason
	}
	if entry.EndedAt != nil {
		ended := entry.EndedAt.UTC().Format(time.RFC3339Nano)
		dto.EndedAt = &ended
	}
	return dto
}
