package application

import (
	"context"
	"fmt"
	"log/slog"
)

// TimerOperations is the slice of the timer service the orchestrator composes.
type TimerOperations interface {
	Start(ctx context.Context, principal Principal, workOrderID string) (TimeEntry, error)
	Stop(ctx context.Context, principal Principal, workOrderID string) (StopResult, error)
	GetActive(ctx context.Context, principal Principal) (*ActiveTimer, error)
}

// LifecycleOperations is the slice of the lifecycle the orchestrator composes.
type LifecycleOperations interface {
	Start(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error)
	Complete(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error)
	Reject(ctx context.Context, principal Principal, workOrderID, reason string) (WorkOrder, error)
}

// OpenEntryFinder reports open timer entries on a work order across all actors.
type OpenEntryFinder interface {
	OpenEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]TimeEntry, error)
}

// SwitchStage names the step of a timer switch that failed.
type SwitchStage string

const (
	SwitchStageStop  SwitchStage = "stop"
	SwitchStageStart SwitchStage = "start"
)

// SwitchError reports a partially applied timer switch. The stop stage may
// have committed before the failure; Closed carries the entry it closed so
// the caller knows the actor is left with no running timer and must retry
// start. Committed steps are never rolled back.
type SwitchError struct {
	Stage  SwitchStage
	Closed *TimeEntry
	Err    error
}

// Error implements the error interface.
func (e *SwitchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("switch failed at %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *SwitchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Orchestrator composes the timer and lifecycle state machines for actions
// that are logically one step but mechanically two. It propagates the first
// failure and never rolls back committed steps; its only hard guarantee is
// that no double-open-timer state results.
type Orchestrator struct {
	timers    TimerOperations
	lifecycle LifecycleOperations
	entries   OpenEntryFinder
	logger    *slog.Logger
}

// NewOrchestrator wires the composed services.
func NewOrchestrator(timers TimerOperations, lifecycle LifecycleOperations, entries OpenEntryFinder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		timers:    timers,
		lifecycle: lifecycle,
		entries:   entries,
		logger:    defaultLogger(logger),
	}
}

func (o *Orchestrator) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, o.logger, "Orchestrator", operation, attrs...)
}

// SwitchActive moves the actor's running timer to another work order: stop
// the current entry, then start on the target. When no timer is running the
// switch degenerates to a plain start. A failure after the stop committed is
// reported as SwitchError with stage start; the actor is left with no active
// timer and retries start.
func (o *Orchestrator) SwitchActive(ctx context.Context, principal Principal, workOrderID string) (SwitchResult, error) {
	if o == nil || o.timers == nil {
		return SwitchResult{}, fmt.Errorf("Orchestrator not configured")
	}

	logger := o.loggerWith(ctx, "SwitchActive",
		"actor_id", principal.ActorID,
		"work_order_id", workOrderID,
	)

	active, err := o.timers.GetActive(ctx, principal)
	if err != nil {
		return SwitchResult{}, err
	}

	var closed *TimeEntry
	if active != nil {
		if active.Entry.WorkOrderID == workOrderID {
			return SwitchResult{}, &ConflictError{
				Message:           "timer already runs on this work order",
				ActiveWorkOrderID: workOrderID,
			}
		}
		stopped, err := o.timers.Stop(ctx, principal, active.Entry.WorkOrderID)
		if err != nil {
			return SwitchResult{}, &SwitchError{Stage: SwitchStageStop, Err: err}
		}
		entry := stopped.Entry
		closed = &entry
	}

	opened, err := o.timers.Start(ctx, principal, workOrderID)
	if err != nil {
		if closed != nil {
			logger.WarnContext(ctx, "switch stopped previous timer but start failed",
				"closed_entry_id", closed.ID,
				"error_kind", ErrorKind(err),
			)
		}
		return SwitchResult{}, &SwitchError{Stage: SwitchStageStart, Closed: closed, Err: err}
	}

	logger.InfoContext(ctx, "timer switched", "opened_entry_id", opened.ID)
	return SwitchResult{Closed: closed, Opened: opened}, nil
}

// StartWork transitions an open work order to in_progress and starts the
// actor's timer on it. An actor already timing another work order is rejected
// before any state moves.
func (o *Orchestrator) StartWork(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, TimeEntry, error) {
	if o == nil || o.timers == nil || o.lifecycle == nil {
		return WorkOrder{}, TimeEntry{}, fmt.Errorf("Orchestrator not configured")
	}

	logger := o.loggerWith(ctx, "StartWork",
		"actor_id", principal.ActorID,
		"work_order_id", workOrderID,
	)

	active, err := o.timers.GetActive(ctx, principal)
	if err != nil {
		return WorkOrder{}, TimeEntry{}, err
	}
	if active != nil && active.Entry.WorkOrderID != workOrderID {
		return WorkOrder{}, TimeEntry{}, &ConflictError{
			Message:           "active timer exists",
			ActiveWorkOrderID: active.Entry.WorkOrderID,
		}
	}

	order, err := o.lifecycle.Start(ctx, principal, workOrderID)
	if err != nil {
		return WorkOrder{}, TimeEntry{}, err
	}

	if active != nil {
		// Timer already runs on this work order; the transition was the only
		// missing piece.
		return order, active.Entry, nil
	}

	entry, err := o.timers.Start(ctx, principal, workOrderID)
	if err != nil {
		logger.WarnContext(ctx, "work order started but timer start failed",
			"error_kind", ErrorKind(err),
		)
		return WorkOrder{}, TimeEntry{}, err
	}

	logger.InfoContext(ctx, "work started", "entry_id", entry.ID)
	return order, entry, nil
}

// Complete finishes a work order, force-stopping the actor's timer first when
// it runs on this order. A timer on a different work order is left untouched.
func (o *Orchestrator) Complete(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	if o == nil || o.timers == nil || o.lifecycle == nil {
		return WorkOrder{}, fmt.Errorf("Orchestrator not configured")
	}

	logger := o.loggerWith(ctx, "Complete",
		"actor_id", principal.ActorID,
		"work_order_id", workOrderID,
	)

	active, err := o.timers.GetActive(ctx, principal)
	if err != nil {
		return WorkOrder{}, err
	}
	if active != nil && active.Entry.WorkOrderID == workOrderID {
		stopped, err := o.timers.Stop(ctx, principal, workOrderID)
		if err != nil {
			return WorkOrder{}, err
		}
		logger.InfoContext(ctx, "timer force-stopped for completion",
			"entry_id", stopped.Entry.ID,
		)
	}

	order, err := o.lifecycle.Complete(ctx, principal, workOrderID)
	if err != nil {
		return WorkOrder{}, err
	}

	logger.InfoContext(ctx, "work order completed",
		"total_time_seconds", order.TotalTimeSeconds,
	)
	return order, nil
}

// Reject sends a pending work order back to draft. A live timer on the order
// means it was being worked before approval; that is a prior inconsistency
// and is surfaced, never silently fixed.
func (o *Orchestrator) Reject(ctx context.Context, principal Principal, workOrderID, reason string) (WorkOrder, error) {
	if o == nil || o.lifecycle == nil || o.entries == nil {
		return WorkOrder{}, fmt.Errorf("Orchestrator not configured")
	}

	open, err := o.entries.OpenEntriesForWorkOrder(ctx, workOrderID)
	if err != nil {
		return WorkOrder{}, mapRepoError(err)
	}
	if len(open) > 0 {
		return WorkOrder{}, &DataIntegrityError{
			Message: fmt.Sprintf("work order %s has %d open time entries while pending approval", workOrderID, len(open)),
		}
	}

	return o.lifecycle.Reject(ctx, principal, workOrderID, reason)
}
