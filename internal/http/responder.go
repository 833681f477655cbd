package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/maintenance-cmms/internal/application"
)

var (
	errBadRequestBody      = errors.New("invalid request body")
	errMissingSessionToken = errors.New("session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors to HTTP status codes. Conflict
// and invalid-transition failures both answer 409; the error_code tells them
// apart. Data integrity violations answer 500 and are logged with their own
// error kind so they never blend into ordinary client failures.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var switchErr *application.SwitchError
	if errors.As(err, &switchErr) {
		resp, status := serviceErrorResponse(switchErr.Err)
		resp.Stage = string(switchErr.Stage)
		r.loggerFor(ctx).ErrorContext(ctx, "timer switch partially applied",
			"stage", string(switchErr.Stage),
			"error", switchErr.Err,
			"error_kind", application.ErrorKind(switchErr.Err),
		)
		r.writeJSON(ctx, w, status, resp)
		return
	}

	var integrityErr *application.DataIntegrityError
	if errors.As(err, &integrityErr) {
		r.loggerFor(ctx).ErrorContext(ctx, "data integrity violation",
			"error", err,
			"error_kind", application.ErrorKind(err),
		)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "DATA_INTEGRITY",
			Message:   "stored state is inconsistent; the operation was aborted",
		})
		return
	}

	resp, status := serviceErrorResponse(err)
	r.writeJSON(ctx, w, status, resp)
}

func serviceErrorResponse(err error) (errorResponse, int) {
	switch {
	case errors.Is(err, application.ErrUnauthorized):
		return errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "you are not allowed to perform this operation",
		}, http.StatusForbidden
	case errors.Is(err, application.ErrNotFound):
		return errorResponse{Message: "the requested resource was not found"}, http.StatusNotFound
	}

	var conflictErr *application.ConflictError
	if errors.As(err, &conflictErr) {
		return errorResponse{
			ErrorCode:         "TIMER_CONFLICT",
			Message:           conflictErr.Message,
			ActiveWorkOrderID: conflictErr.ActiveWorkOrderID,
		}, http.StatusConflict
	}

	var transitionErr *application.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return errorResponse{
			ErrorCode: "INVALID_TRANSITION",
			Message:   transitionErr.Error(),
		}, http.StatusConflict
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return errorResponse{
			Message: "the request contains invalid fields",
			Errors:  vErr.FieldErrors,
		}, http.StatusUnprocessableEntity
	}

	return errorResponse{Message: "an internal error occurred"}, http.StatusInternalServerError
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode         string            `json:"error_code,omitempty"`
	Message           string            `json:"message"`
	ActiveWorkOrderID string            `json:"active_work_order_id,omitempty"`
	Stage             string            `json:"stage,omitempty"`
	Errors            map[string]string `json:"errors,omitempty"`
}
