package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// StatusUpdate carries optional field writes applied atomically with a status
// transition.
type StatusUpdate struct {
	Notes      *string
	SetNotes   bool
	AssignedTo *string
	SetAssign  bool
}

// WorkOrderQuery narrows work order listings.
type WorkOrderQuery struct {
	Statuses   []Status
	AssignedTo string
	CreatedBy  string
}

// WorkOrderRepository is the persistence contract for work orders. UpdateStatus
// is a compare-and-set; it fails when the stored status no longer equals from.
type WorkOrderRepository interface {
	CreateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	GetWorkOrder(ctx context.Context, id string) (WorkOrder, error)
	ListWorkOrders(ctx context.Context, query WorkOrderQuery) ([]WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, update StatusUpdate) (WorkOrder, error)
	DeleteWorkOrder(ctx context.Context, id string) error
}

// UserDirectory answers whether a referenced actor account exists.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// EquipmentCatalog answers whether a referenced asset exists.
type EquipmentCatalog interface {
	EquipmentExists(ctx context.Context, id string) (bool, error)
}

// WorkOrderService owns creation, descriptive updates and read access for
// work orders. Status changes go through WorkOrderLifecycle.
type WorkOrderService struct {
	workOrders  WorkOrderRepository
	users       UserDirectory
	equipment   EquipmentCatalog
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewWorkOrderService wires dependencies for work order CRUD.
func NewWorkOrderService(workOrders WorkOrderRepository, users UserDirectory, equipment EquipmentCatalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *WorkOrderService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &WorkOrderService{
		workOrders:  workOrders,
		users:       users,
		equipment:   equipment,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *WorkOrderService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "WorkOrderService", operation, attrs...)
}

// Create records a new work order in draft status. Managers and admins may
// set OpenNow to create it directly as open, bypassing approval.
func (s *WorkOrderService) Create(ctx context.Context, params CreateWorkOrderParams) (WorkOrder, error) {
	if s == nil || s.workOrders == nil {
		return WorkOrder{}, fmt.Errorf("WorkOrderService not configured")
	}

	logger := s.loggerWith(ctx, "Create", "actor_id", params.Principal.ActorID)

	if params.Input.OpenNow && !params.Principal.Role.CanManage() {
		return WorkOrder{}, ErrUnauthorized
	}

	input, err := s.normalizeInput(ctx, params.Input)
	if err != nil {
		return WorkOrder{}, err
	}

	status := StatusDraft
	if input.OpenNow {
		status = StatusOpen
	}

	now := s.now()
	order := WorkOrder{
		ID:          s.idGenerator(),
		Title:       input.Title,
		Description: input.Description,
		EquipmentID: input.EquipmentID,
		Priority:    input.Priority,
		Type:        input.Type,
		Status:      status,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   params.Principal.ActorID,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.workOrders.CreateWorkOrder(ctx, order)
	if err != nil {
		return WorkOrder{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "work order created",
		"work_order_id", created.ID,
		"sequence", created.Sequence,
		"status", string(created.Status),
	)
	return created, nil
}

// Get returns a single work order.
func (s *WorkOrderService) Get(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	if s == nil || s.workOrders == nil {
		return WorkOrder{}, fmt.Errorf("WorkOrderService not configured")
	}
	order, err := s.workOrders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return WorkOrder{}, mapRepoError(err)
	}
	return order, nil
}

// List returns work orders matching the filter, newest sequence first.
func (s *WorkOrderService) List(ctx context.Context, params ListWorkOrdersParams) ([]WorkOrder, error) {
	if s == nil || s.workOrders == nil {
		return nil, fmt.Errorf("WorkOrderService not configured")
	}

	for _, status := range params.Statuses {
		if !statusKnown(status) {
			vErr := &ValidationError{}
			vErr.add("status", fmt.Sprintf("unknown status %q", string(status)))
			return nil, vErr
		}
	}

	orders, err := s.workOrders.ListWorkOrders(ctx, WorkOrderQuery{
		Statuses:   params.Statuses,
		AssignedTo: params.AssignedTo,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return orders, nil
}

// Update rewrites a work order's descriptive fields. Status and the time
// ledger are never touched here. Completed orders are frozen.
func (s *WorkOrderService) Update(ctx context.Context, params UpdateWorkOrderParams) (WorkOrder, error) {
	if s == nil || s.workOrders == nil {
		return WorkOrder{}, fmt.Errorf("WorkOrderService not configured")
	}

	logger := s.loggerWith(ctx, "Update",
		"actor_id", params.Principal.ActorID,
		"work_order_id", params.WorkOrderID,
	)

	order, err := s.workOrders.GetWorkOrder(ctx, params.WorkOrderID)
	if err != nil {
		return WorkOrder{}, mapRepoError(err)
	}
	if !s.canEdit(params.Principal, order) {
		return WorkOrder{}, ErrUnauthorized
	}
	if order.Status == StatusCompleted {
		return WorkOrder{}, &ConflictError{Message: "work order is completed"}
	}

	input, err := s.normalizeInput(ctx, params.Input)
	if err != nil {
		return WorkOrder{}, err
	}

	order.Title = input.Title
	order.Description = input.Description
	order.EquipmentID = input.EquipmentID
	order.Priority = input.Priority
	order.Type = input.Type
	order.AssignedTo = input.AssignedTo
	order.DueDate = input.DueDate
	order.UpdatedAt = s.now()

	updated, err := s.workOrders.UpdateWorkOrder(ctx, order)
	if err != nil {
		return WorkOrder{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "work order updated")
	return updated, nil
}

func (s *WorkOrderService) canEdit(principal Principal, order WorkOrder) bool {
	if principal.Role.CanManage() {
		return true
	}
	if principal.ActorID == order.CreatedBy {
		return true
	}
	return order.AssignedTo != nil && *order.AssignedTo == principal.ActorID
}

// normalizeInput trims and validates caller-provided fields, including
// referential checks against the user directory and equipment catalog.
func (s *WorkOrderService) normalizeInput(ctx context.Context, input WorkOrderInput) (WorkOrderInput, error) {
	vErr := &ValidationError{}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		vErr.add("title", "title is required")
	}
	input.Description = strings.TrimSpace(input.Description)

	if input.Priority == "" {
		input.Priority = PriorityMedium
	} else if !input.Priority.IsValid() {
		vErr.add("priority", fmt.Sprintf("unknown priority %q", string(input.Priority)))
	}
	if input.Type == "" {
		input.Type = TypeCorrective
	} else if !input.Type.IsValid() {
		vErr.add("type", fmt.Sprintf("unknown type %q", string(input.Type)))
	}

	if input.EquipmentID != nil {
		if *input.EquipmentID == "" {
			input.EquipmentID = nil
		} else if s.equipment != nil {
			exists, err := s.equipment.EquipmentExists(ctx, *input.EquipmentID)
			if err != nil {
				return WorkOrderInput{}, mapRepoError(err)
			}
			if !exists {
				vErr.add("equipment_id", "equipment not found")
			}
		}
	}

	if input.AssignedTo != nil {
		if *input.AssignedTo == "" {
			input.AssignedTo = nil
		} else if s.users != nil {
			exists, err := s.users.UserExists(ctx, *input.AssignedTo)
			if err != nil {
				return WorkOrderInput{}, mapRepoError(err)
			}
			if !exists {
				vErr.add("assigned_to", "assignee not found")
			}
		}
	}

	if vErr.HasErrors() {
		return WorkOrderInput{}, vErr
	}
	return input, nil
}

func statusKnown(status Status) bool {
	for _, known := range Statuses() {
		if status == known {
			return true
		}
	}
	return false
}
