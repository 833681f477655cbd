package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/maintenance-cmms/internal/persistence"
)

var (
	userCounter      uint64
	workOrderCounter uint64
	timeEntryCounter uint64
	equipmentCounter uint64
)

var referenceTime = time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures the generated user record.
type UserOption func(*persistence.User)

// NewUser returns a deterministic user record with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := persistence.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         "tech",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) {
		u.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) {
		u.Email = email
	}
}

// WithUserRole overrides the generated role.
func WithUserRole(role string) UserOption {
	return func(u *persistence.User) {
		u.Role = role
	}
}

// WithUserDisabled marks the account disabled.
func WithUserDisabled() UserOption {
	return func(u *persistence.User) {
		u.Disabled = true
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(u *persistence.User) {
		u.PasswordHash = hash
	}
}

// -------------------------- Work order fixtures --------------------------

// WorkOrderOption configures the generated work order record.
type WorkOrderOption func(*persistence.WorkOrder)

// NewWorkOrder returns a deterministic work order with optional overrides.
// CreatedBy must reference an existing user when persisted.
func NewWorkOrder(createdBy string, opts ...WorkOrderOption) persistence.WorkOrder {
	idx := atomic.AddUint64(&workOrderCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	order := persistence.WorkOrder{
		ID:        fmt.Sprintf("wo-%03d", idx),
		Title:     fmt.Sprintf("Work order %03d", idx),
		Priority:  "medium",
		Type:      "corrective",
		Status:    "draft",
		CreatedBy: createdBy,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&order)
	}
	return order
}

// WithWorkOrderID overrides the generated work order ID.
func WithWorkOrderID(id string) WorkOrderOption {
	return func(o *persistence.WorkOrder) {
		o.ID = id
	}
}

// WithWorkOrderStatus overrides the initial status.
func WithWorkOrderStatus(status string) WorkOrderOption {
	return func(o *persistence.WorkOrder) {
		o.Status = status
	}
}

// WithWorkOrderAssignee sets the assignee.
func WithWorkOrderAssignee(userID string) WorkOrderOption {
	return func(o *persistence.WorkOrder) {
		o.AssignedTo = &userID
	}
}

// WithWorkOrderEquipment references a catalog entry.
func WithWorkOrderEquipment(equipmentID string) WorkOrderOption {
	return func(o *persistence.WorkOrder) {
		o.EquipmentID = &equipmentID
	}
}

// WithWorkOrderTotalSeconds seeds the time ledger.
func WithWorkOrderTotalSeconds(seconds int64) WorkOrderOption {
	return func(o *persistence.WorkOrder) {
		o.TotalTimeSeconds = seconds
	}
}

// -------------------------- Time entry fixtures --------------------------

// TimeEntryOption configures the generated time entry record.
type TimeEntryOption func(*persistence.TimeEntry)

// NewTimeEntry returns a deterministic open work entry with optional
// overrides. ActorID and WorkOrderID must reference existing rows when
// persisted.
func NewTimeEntry(actorID, workOrderID string, opts ...TimeEntryOption) persistence.TimeEntry {
	idx := atomic.AddUint64(&timeEntryCounter, 1)
	started := referenceTime.Add(time.Duration(idx) * time.Minute)
	entry := persistence.TimeEntry{
		ID:          fmt.Sprintf("entry-%03d", idx),
		ActorID:     actorID,
		WorkOrderID: workOrderID,
		Type:        "work",
		StartedAt:   started,
		CreatedAt:   started,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return entry
}

// WithEntryID overrides the generated entry ID.
func WithEntryID(id string) TimeEntryOption {
	return func(e *persistence.TimeEntry) {
		e.ID = id
	}
}

// WithEntryBreak turns the entry into a break with the given reason.
func WithEntryBreak(reason string) TimeEntryOption {
	return func(e *persistence.TimeEntry) {
		e.Type = "break"
		e.BreakReason = &reason
	}
}

// WithEntryStartedAt overrides the start instant.
func WithEntryStartedAt(t time.Time) TimeEntryOption {
	return func(e *persistence.TimeEntry) {
		e.StartedAt = t
	}
}

// WithEntryClosed closes the entry at the given instant.
func WithEntryClosed(endedAt time.Time) TimeEntryOption {
	return func(e *persistence.TimeEntry) {
		e.EndedAt = &endedAt
	}
}

// -------------------------- Equipment fixtures ---------------------------

// NewEquipment returns a deterministic equipment catalog record.
func NewEquipment() persistence.Equipment {
	idx := atomic.AddUint64(&equipmentCounter, 1)
	return persistence.Equipment{
		ID:        fmt.Sprintf("eq-%03d", idx),
		Name:      fmt.Sprintf("Pump %03d", idx),
		CreatedAt: referenceTime,
	}
}
