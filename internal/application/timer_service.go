package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/maintenance-cmms/internal/persistence"
)

// TimeEntryRepository captures the persistence interactions needed by the
// timer service. The store guarantees at most one open entry per actor; the
// service relies on that for races it cannot observe.
type TimeEntryRepository interface {
	InsertEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	OpenEntries(ctx context.Context, actorID string) ([]TimeEntry, error)
	OpenEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]TimeEntry, error)
	CloseAndInsert(ctx context.Context, closeID string, endedAt time.Time, next TimeEntry) (TimeEntry, TimeEntry, error)
	CloseAccumulating(ctx context.Context, closeID string, endedAt time.Time, workOrderID string, seconds int64) (TimeEntry, error)
	ListEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]TimeEntry, error)
}

// WorkOrderReader exposes the read-side lookup the timer service needs.
type WorkOrderReader interface {
	GetWorkOrder(ctx context.Context, id string) (WorkOrder, error)
}

// TimerService guarantees the single-active-timer invariant per actor and
// produces a consistent elapsed-time view. Every operation is rejected, not
// coerced, when a precondition fails; composing corrective actions is the
// orchestrator's job.
type TimerService struct {
	entries     TimeEntryRepository
	workOrders  WorkOrderReader
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTimerService wires dependencies for timer operations.
func NewTimerService(entries TimeEntryRepository, workOrders WorkOrderReader, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TimerService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TimerService{
		entries:     entries,
		workOrders:  workOrders,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *TimerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TimerService", operation, attrs...)
}

// Start opens a new work entry for the actor on the given work order. It
// fails with ConflictError when the actor already has an open entry anywhere,
// carrying the id of the work order being timed.
func (s *TimerService) Start(ctx context.Context, principal Principal, workOrderID string) (TimeEntry, error) {
	if s == nil || s.entries == nil || s.workOrders == nil {
		return TimeEntry{}, fmt.Errorf("TimerService not configured")
	}

	logger := s.loggerWith(ctx, "Start", "actor_id", principal.ActorID, "work_order_id", workOrderID)

	order, err := s.workOrders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return TimeEntry{}, mapRepoError(err)
	}
	if order.Status == StatusCompleted {
		return TimeEntry{}, &ConflictError{Message: "work order is completed"}
	}

	open, err := s.openEntry(ctx, principal.ActorID)
	if err != nil {
		return TimeEntry{}, err
	}
	if open != nil {
		return TimeEntry{}, &ConflictError{
			Message:           "active timer exists",
			ActiveWorkOrderID: open.WorkOrderID,
		}
	}

	now := s.now()
	entry := TimeEntry{
		ID:          s.idGenerator(),
		ActorID:     principal.ActorID,
		WorkOrderID: workOrderID,
		Type:        EntryWork,
		StartedAt:   now,
		CreatedAt:   now,
	}

	created, err := s.entries.InsertEntry(ctx, entry)
	if err != nil {
		// A duplicate here means a concurrent request won the race for the
		// open slot; report what is now being timed.
		if errors.Is(err, persistence.ErrDuplicate) {
			if racing, lookupErr := s.openEntry(ctx, principal.ActorID); lookupErr == nil && racing != nil {
				return TimeEntry{}, &ConflictError{
					Message:           "active timer exists",
					ActiveWorkOrderID: racing.WorkOrderID,
				}
			}
			return TimeEntry{}, &ConflictError{Message: "active timer exists"}
		}
		return TimeEntry{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "timer started", "entry_id", created.ID)
	return created, nil
}

// Pause closes the actor's open work entry on the given work order and opens
// a break entry with the supplied reason. Both writes happen in one store
// transaction.
func (s *TimerService) Pause(ctx context.Context, params PauseParams) (TimeEntry, TimeEntry, error) {
	if s == nil || s.entries == nil {
		return TimeEntry{}, TimeEntry{}, fmt.Errorf("TimerService not configured")
	}

	logger := s.loggerWith(ctx, "Pause",
		"actor_id", params.Principal.ActorID,
		"work_order_id", params.WorkOrderID,
		"reason", string(params.Reason),
	)

	if !params.Reason.IsValid() {
		vErr := &ValidationError{}
		vErr.add("break_reason", "break reason is required")
		return TimeEntry{}, TimeEntry{}, vErr
	}

	open, err := s.requireOpenEntryOn(ctx, params.Principal.ActorID, params.WorkOrderID)
	if err != nil {
		return TimeEntry{}, TimeEntry{}, err
	}
	if open.Type != EntryWork {
		return TimeEntry{}, TimeEntry{}, &ConflictError{Message: "timer is already on break"}
	}

	now := s.now()
	reason := params.Reason
	next := TimeEntry{
		ID:          s.idGenerator(),
		ActorID:     params.Principal.ActorID,
		WorkOrderID: params.WorkOrderID,
		Type:        EntryBreak,
		BreakReason: &reason,
		StartedAt:   now,
		Notes:       params.Notes,
		CreatedAt:   now,
	}

	closed, opened, err := s.entries.CloseAndInsert(ctx, open.ID, now, next)
	if err != nil {
		return TimeEntry{}, TimeEntry{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "timer paused", "closed_entry_id", closed.ID, "break_entry_id", opened.ID)
	return closed, opened, nil
}

// Resume closes the actor's open break entry on the given work order and
// opens a new work entry. Both writes happen in one store transaction.
func (s *TimerService) Resume(ctx context.Context, principal Principal, workOrderID string) (TimeEntry, TimeEntry, error) {
	if s == nil || s.entries == nil {
		return TimeEntry{}, TimeEntry{}, fmt.Errorf("TimerService not configured")
	}

	logger := s.loggerWith(ctx, "Resume", "actor_id", principal.ActorID, "work_order_id", workOrderID)

	open, err := s.requireOpenEntryOn(ctx, principal.ActorID, workOrderID)
	if err != nil {
		return TimeEntry{}, TimeEntry{}, err
	}
	if open.Type != EntryBreak {
		return TimeEntry{}, TimeEntry{}, &ConflictError{Message: "timer is not on break"}
	}

	now := s.now()
	next := TimeEntry{
		ID:          s.idGenerator(),
		ActorID:     principal.ActorID,
		WorkOrderID: workOrderID,
		Type:        EntryWork,
		StartedAt:   now,
		CreatedAt:   now,
	}

	closed, opened, err := s.entries.CloseAndInsert(ctx, open.ID, now, next)
	if err != nil {
		return TimeEntry{}, TimeEntry{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "timer resumed", "closed_entry_id", closed.ID, "work_entry_id", opened.ID)
	return closed, opened, nil
}

// Stop closes the actor's open entry on the given work order. A closed work
// entry's duration is added to the work order's time ledger; break time is
// never accumulated.
func (s *TimerService) Stop(ctx context.Context, principal Principal, workOrderID string) (StopResult, error) {
	if s == nil || s.entries == nil || s.workOrders == nil {
		return StopResult{}, fmt.Errorf("TimerService not configured")
	}

	logger := s.loggerWith(ctx, "Stop", "actor_id", principal.ActorID, "work_order_id", workOrderID)

	open, err := s.requireOpenEntryOn(ctx, principal.ActorID, workOrderID)
	if err != nil {
		return StopResult{}, err
	}

	now := s.now()
	var seconds int64
	if open.Type == EntryWork {
		seconds = int64(now.Sub(open.StartedAt) / time.Second)
		if seconds < 0 {
			return StopResult{}, &DataIntegrityError{
				Message: fmt.Sprintf("entry %s starts after its end time", open.ID),
			}
		}
	}

	closed, err := s.entries.CloseAccumulating(ctx, open.ID, now, workOrderID, seconds)
	if err != nil {
		return StopResult{}, mapRepoError(err)
	}

	order, err := s.workOrders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return StopResult{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "timer stopped",
		"entry_id", closed.ID,
		"accumulated_seconds", seconds,
		"total_time_seconds", order.TotalTimeSeconds,
	)
	return StopResult{Entry: closed, WorkOrder: order}, nil
}

// GetActive returns the actor's currently open entry joined with its work
// order, or nil when no timer is running. It always reads committed state.
func (s *TimerService) GetActive(ctx context.Context, principal Principal) (*ActiveTimer, error) {
	if s == nil || s.entries == nil || s.workOrders == nil {
		return nil, fmt.Errorf("TimerService not configured")
	}

	open, err := s.openEntry(ctx, principal.ActorID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, nil
	}

	order, err := s.workOrders.GetWorkOrder(ctx, open.WorkOrderID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	return &ActiveTimer{
		Entry:     *open,
		WorkOrder: order,
		Elapsed:   Elapsed(*open, s.now()),
	}, nil
}

// openEntry returns the actor's single open entry, nil when there is none,
// and DataIntegrityError when the store holds more than one.
func (s *TimerService) openEntry(ctx context.Context, actorID string) (*TimeEntry, error) {
	entries, err := s.entries.OpenEntries(ctx, actorID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		entry := entries[0]
		return &entry, nil
	default:
		return nil, &DataIntegrityError{
			Message: fmt.Sprintf("actor %s has %d open time entries", actorID, len(entries)),
		}
	}
}

func (s *TimerService) requireOpenEntryOn(ctx context.Context, actorID, workOrderID string) (*TimeEntry, error) {
	open, err := s.openEntry(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, &ConflictError{Message: "no active timer"}
	}
	if open.WorkOrderID != workOrderID {
		return nil, &ConflictError{
			Message:           "active timer belongs to another work order",
			ActiveWorkOrderID: open.WorkOrderID,
		}
	}
	return open, nil
}

// mapRepoError translates persistence sentinels into application errors.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("reference", "related records are missing")
		return vErr
	}
	return err
}
