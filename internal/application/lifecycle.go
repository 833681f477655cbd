package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/maintenance-cmms/internal/persistence"
)

// TimeEntryPurger removes all timer history for a work order. Used when a
// work order is deleted so no orphaned entries survive.
type TimeEntryPurger interface {
	DeleteEntriesForWorkOrder(ctx context.Context, workOrderID string) error
}

type transitionKey struct {
	From   Status
	Action Action
}

type transitionRule struct {
	To      Status
	allowed func(principal Principal, order WorkOrder) bool
}

func isAssignee(principal Principal, order WorkOrder) bool {
	return order.AssignedTo != nil && *order.AssignedTo == principal.ActorID
}

// transitionTable is the single authority on permitted lifecycle moves. A
// (status, action) pair absent from the table is an InvalidTransitionError
// for every caller; a present pair whose role check fails is ErrUnauthorized.
// Delete is not listed: it removes the row instead of moving it, see Delete.
var transitionTable = map[transitionKey]transitionRule{
	{StatusDraft, ActionSubmit}: {
		To: StatusPendingApproval,
		allowed: func(p Principal, order WorkOrder) bool {
			return p.ActorID == order.CreatedBy || p.Role.CanManage()
		},
	},
	{StatusPendingApproval, ActionApprove}: {
		To: StatusOpen,
		allowed: func(p Principal, order WorkOrder) bool {
			return p.Role.CanManage()
		},
	},
	{StatusPendingApproval, ActionReject}: {
		To: StatusDraft,
		allowed: func(p Principal, order WorkOrder) bool {
			return p.Role.CanManage()
		},
	},
	{StatusOpen, ActionStart}: {
		To: StatusInProgress,
		allowed: func(p Principal, order WorkOrder) bool {
			// An unassigned order may be claimed by whoever starts it.
			return order.AssignedTo == nil || isAssignee(p, order)
		},
	},
	{StatusOpen, ActionComplete}: {
		To: StatusCompleted,
		allowed: func(p Principal, order WorkOrder) bool {
			return isAssignee(p, order) || p.Role.CanManage()
		},
	},
	{StatusInProgress, ActionComplete}: {
		To: StatusCompleted,
		allowed: func(p Principal, order WorkOrder) bool {
			return isAssignee(p, order) || p.Role.CanManage()
		},
	},
}

// WorkOrderLifecycle drives role-gated status transitions. It only moves
// state; composing transitions with timer effects is the orchestrator's job.
type WorkOrderLifecycle struct {
	workOrders WorkOrderRepository
	entries    TimeEntryPurger
	logger     *slog.Logger
}

// NewWorkOrderLifecycle wires dependencies for lifecycle transitions.
func NewWorkOrderLifecycle(workOrders WorkOrderRepository, entries TimeEntryPurger, logger *slog.Logger) *WorkOrderLifecycle {
	return &WorkOrderLifecycle{
		workOrders: workOrders,
		entries:    entries,
		logger:     defaultLogger(logger),
	}
}

func (l *WorkOrderLifecycle) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, l.logger, "WorkOrderLifecycle", operation, attrs...)
}

// Submit moves a draft to pending_approval.
func (l *WorkOrderLifecycle) Submit(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	return l.apply(ctx, principal, workOrderID, ActionSubmit, StatusUpdate{})
}

// Approve moves a pending work order to open.
func (l *WorkOrderLifecycle) Approve(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	return l.apply(ctx, principal, workOrderID, ActionApprove, StatusUpdate{})
}

// Reject sends a pending work order back to draft for rework. Prior notes are
// replaced wholesale by the reviewer's reason; an empty reason clears them.
func (l *WorkOrderLifecycle) Reject(ctx context.Context, principal Principal, workOrderID, reason string) (WorkOrder, error) {
	update := StatusUpdate{SetNotes: true}
	if reason != "" {
		update.Notes = &reason
	}
	return l.apply(ctx, principal, workOrderID, ActionReject, update)
}

// Start moves an open work order to in_progress. Starting an unassigned
// order assigns it to the actor.
func (l *WorkOrderLifecycle) Start(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	order, err := l.getOrder(ctx, workOrderID)
	if err != nil {
		return WorkOrder{}, err
	}

	update := StatusUpdate{}
	if order.AssignedTo == nil {
		actor := principal.ActorID
		update.AssignedTo = &actor
		update.SetAssign = true
	}
	return l.apply(ctx, principal, workOrderID, ActionStart, update)
}

// Complete moves an open or in_progress work order to completed. Completed is
// terminal; re-invoking complete on a completed order fails, it is never
// re-applied.
func (l *WorkOrderLifecycle) Complete(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	return l.apply(ctx, principal, workOrderID, ActionComplete, StatusUpdate{})
}

// Delete removes a non-completed work order together with its time entries.
func (l *WorkOrderLifecycle) Delete(ctx context.Context, principal Principal, workOrderID string) error {
	if l == nil || l.workOrders == nil || l.entries == nil {
		return fmt.Errorf("WorkOrderLifecycle not configured")
	}

	logger := l.loggerWith(ctx, "Delete", "actor_id", principal.ActorID, "work_order_id", workOrderID)

	order, err := l.getOrder(ctx, workOrderID)
	if err != nil {
		return err
	}
	if order.Status == StatusCompleted {
		return &InvalidTransitionError{From: order.Status, Action: ActionDelete}
	}
	if !principal.Role.CanManage() {
		return ErrUnauthorized
	}

	if err := l.entries.DeleteEntriesForWorkOrder(ctx, workOrderID); err != nil {
		return mapRepoError(err)
	}
	if err := l.workOrders.DeleteWorkOrder(ctx, workOrderID); err != nil {
		return mapRepoError(err)
	}

	logger.InfoContext(ctx, "work order deleted", "status", string(order.Status))
	return nil
}

// Transition dispatches a lifecycle action by name. Handlers and tests that
// enumerate the action space go through here.
func (l *WorkOrderLifecycle) Transition(ctx context.Context, principal Principal, workOrderID string, action Action, reason string) (WorkOrder, error) {
	switch action {
	case ActionSubmit:
		return l.Submit(ctx, principal, workOrderID)
	case ActionApprove:
		return l.Approve(ctx, principal, workOrderID)
	case ActionReject:
		return l.Reject(ctx, principal, workOrderID, reason)
	case ActionStart:
		return l.Start(ctx, principal, workOrderID)
	case ActionComplete:
		return l.Complete(ctx, principal, workOrderID)
	case ActionDelete:
		if err := l.Delete(ctx, principal, workOrderID); err != nil {
			return WorkOrder{}, err
		}
		return WorkOrder{}, nil
	}
	vErr := &ValidationError{}
	vErr.add("action", fmt.Sprintf("unknown action %q", string(action)))
	return WorkOrder{}, vErr
}

func (l *WorkOrderLifecycle) getOrder(ctx context.Context, workOrderID string) (WorkOrder, error) {
	order, err := l.workOrders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return WorkOrder{}, mapRepoError(err)
	}
	return order, nil
}

// apply looks up the transition rule, checks the role gate and performs the
// compare-and-set status write. Losing a CAS race reads back the fresh status
// and reports the transition as invalid from there.
func (l *WorkOrderLifecycle) apply(ctx context.Context, principal Principal, workOrderID string, action Action, update StatusUpdate) (WorkOrder, error) {
	if l == nil || l.workOrders == nil {
		return WorkOrder{}, fmt.Errorf("WorkOrderLifecycle not configured")
	}

	logger := l.loggerWith(ctx, "Transition",
		"actor_id", principal.ActorID,
		"work_order_id", workOrderID,
		"action", string(action),
	)

	order, err := l.getOrder(ctx, workOrderID)
	if err != nil {
		return WorkOrder{}, err
	}

	rule, ok := transitionTable[transitionKey{From: order.Status, Action: action}]
	if !ok {
		return WorkOrder{}, &InvalidTransitionError{From: order.Status, Action: action}
	}
	if !rule.allowed(principal, order) {
		return WorkOrder{}, ErrUnauthorized
	}

	updated, err := l.workOrders.UpdateStatus(ctx, workOrderID, order.Status, rule.To, update)
	if err != nil {
		if errors.Is(err, persistence.ErrStaleStatus) {
			fresh, readErr := l.getOrder(ctx, workOrderID)
			if readErr != nil {
				return WorkOrder{}, readErr
			}
			return WorkOrder{}, &InvalidTransitionError{From: fresh.Status, Action: action}
		}
		return WorkOrder{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "work order transitioned",
		"from", string(order.Status),
		"to", string(updated.Status),
	)
	return updated, nil
}
