package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for actor accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// WorkOrderFilter narrows work order queries.
type WorkOrderFilter struct {
	Statuses   []string
	AssignedTo string
	CreatedBy  string
}

// StatusUpdate carries optional field writes applied together with a status
// transition.
type StatusUpdate struct {
	Notes      *string
	SetNotes   bool
	AssignedTo *string
	SetAssign  bool
}

// WorkOrderRepository stores work orders and their lifecycle state.
//
// UpdateStatus is a compare-and-set: the write applies only when the stored
// status still equals from, otherwise ErrStaleStatus is returned. This is the
// serialization point that keeps concurrent transitions from racing past the
// lifecycle table.
type WorkOrderRepository interface {
	CreateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	GetWorkOrder(ctx context.Context, id string) (WorkOrder, error)
	ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	UpdateStatus(ctx context.Context, id, from, to string, update StatusUpdate) (WorkOrder, error)
	DeleteWorkOrder(ctx context.Context, id string) error
}

// TimeEntryRepository stores timer sessions.
//
// InsertEntry relies on the store's partial unique index over open entries:
// inserting a second open entry for the same actor fails with ErrDuplicate no
// matter how the requests interleave. CloseAndInsert and CloseAccumulating are
// single transactions so pause/resume handovers and stop-plus-accumulate are
// atomic.
type TimeEntryRepository interface {
	InsertEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	GetEntry(ctx context.Context, id string) (TimeEntry, error)
	OpenEntries(ctx context.Context, actorID string) ([]TimeEntry, error)
	OpenEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]TimeEntry, error)
	CloseAndInsert(ctx context.Context, closeID string, endedAt time.Time, next TimeEntry) (TimeEntry, TimeEntry, error)
	CloseAccumulating(ctx context.Context, closeID string, endedAt time.Time, workOrderID string, seconds int64) (TimeEntry, error)
	ListEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]TimeEntry, error)
	DeleteEntriesForWorkOrder(ctx context.Context, workOrderID string) error
}

// EquipmentRepository exposes the narrow catalog contract consumed by the
// core. Equipment CRUD is owned elsewhere.
type EquipmentRepository interface {
	EquipmentExists(ctx context.Context, id string) (bool, error)
}
