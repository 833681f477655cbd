package application

import "time"

// Role identifies the permission tier of an actor.
type Role string

const (
	RoleTech    Role = "tech"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// IsValid reports whether the role is one of the known tiers.
func (r Role) IsValid() bool {
	switch r {
	case RoleTech, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanManage reports whether the role may drive approval, rejection and
// deletion of work orders.
func (r Role) CanManage() bool {
	return r == RoleManager || r == RoleAdmin
}

// Principal represents the authenticated actor invoking a service method.
type Principal struct {
	ActorID string
	Role    Role
}

// Priority ranks the urgency of a work order.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid reports whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// WorkOrderType classifies the kind of maintenance work.
type WorkOrderType string

const (
	TypeCorrective WorkOrderType = "corrective"
	TypePreventive WorkOrderType = "preventive"
	TypeInspection WorkOrderType = "inspection"
)

// IsValid reports whether the type is a known value.
func (t WorkOrderType) IsValid() bool {
	switch t {
	case TypeCorrective, TypePreventive, TypeInspection:
		return true
	}
	return false
}

// Status is a work order lifecycle state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusOpen            Status = "open"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
)

// Statuses lists every lifecycle state.
func Statuses() []Status {
	return []Status{
		StatusDraft,
		StatusPendingApproval,
		StatusOpen,
		StatusInProgress,
		StatusCompleted,
		StatusRejected,
	}
}

// Action is a lifecycle transition request.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionDelete   Action = "delete"
)

// Actions lists every lifecycle action.
func Actions() []Action {
	return []Action{ActionSubmit, ActionApprove, ActionReject, ActionStart, ActionComplete, ActionDelete}
}

// EntryType distinguishes productive work from break time.
type EntryType string

const (
	EntryWork  EntryType = "work"
	EntryBreak EntryType = "break"
)

// BreakReason records why a work session was paused.
type BreakReason string

const (
	BreakLunch     BreakReason = "lunch"
	BreakPartsWait BreakReason = "parts_wait"
	BreakMeeting   BreakReason = "meeting"
	BreakPersonal  BreakReason = "personal"
	BreakOther     BreakReason = "other"
)

// IsValid reports whether the break reason is a known value.
func (b BreakReason) IsValid() bool {
	switch b {
	case BreakLunch, BreakPartsWait, BreakMeeting, BreakPersonal, BreakOther:
		return true
	}
	return false
}

// WorkOrder represents a maintenance work order exposed by the services.
type WorkOrder struct {
	ID               string
	Sequence         int64
	Title            string
	Description      string
	EquipmentID      *string
	Priority         Priority
	Type             WorkOrderType
	Status           Status
	AssignedTo       *string
	CreatedBy        string
	DueDate          *time.Time
	TotalTimeSeconds int64
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TotalTimeMinutes rounds the second-precision ledger to whole minutes. This
// is the only place rounding happens; the stored ledger keeps seconds so
// repeated pause/resume cycles cannot compound rounding error.
func (w WorkOrder) TotalTimeMinutes() int64 {
	return (w.TotalTimeSeconds + 30) / 60
}

// TimeEntry represents one contiguous interval of work or break time.
type TimeEntry struct {
	ID          string
	ActorID     string
	WorkOrderID string
	Type        EntryType
	BreakReason *BreakReason
	StartedAt   time.Time
	EndedAt     *time.Time
	Notes       *string
	CreatedAt   time.Time
}

// Open reports whether the entry is still running.
func (e TimeEntry) Open() bool {
	return e.EndedAt == nil
}

// Elapsed returns the running duration of an open entry at the given instant,
// or the closed entry's final duration. It is a pure function used for live
// display; elapsed time is never persisted mid-session.
func Elapsed(entry TimeEntry, now time.Time) time.Duration {
	if entry.EndedAt != nil {
		return entry.EndedAt.Sub(entry.StartedAt)
	}
	return now.Sub(entry.StartedAt)
}

// ActiveTimer joins an actor's open entry with its work order for display.
type ActiveTimer struct {
	Entry     TimeEntry
	WorkOrder WorkOrder
	Elapsed   time.Duration
}

// WorkOrderInput captures caller-provided work order fields.
type WorkOrderInput struct {
	Title       string
	Description string
	EquipmentID *string
	Priority    Priority
	Type        WorkOrderType
	AssignedTo  *string
	DueDate     *time.Time
	OpenNow     bool
}

// CreateWorkOrderParams wraps the data required to create a work order.
type CreateWorkOrderParams struct {
	Principal Principal
	Input     WorkOrderInput
}

// UpdateWorkOrderParams wraps the data required to update descriptive fields.
type UpdateWorkOrderParams struct {
	Principal   Principal
	WorkOrderID string
	Input       WorkOrderInput
}

// ListWorkOrdersParams narrows work order listings.
type ListWorkOrdersParams struct {
	Principal  Principal
	Statuses   []Status
	AssignedTo string
}

// PauseParams carries the break attribution for a pause request.
type PauseParams struct {
	Principal   Principal
	WorkOrderID string
	Reason      BreakReason
	Notes       *string
}

// StopResult reports the closed entry together with the refreshed work order.
type StopResult struct {
	Entry     TimeEntry
	WorkOrder WorkOrder
}

// SwitchResult reports a completed timer switch. Closed is nil when the actor
// had no running timer and the switch degenerated to a plain start.
type SwitchResult struct {
	Closed *TimeEntry
	Opened TimeEntry
}

// User represents an actor account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput captures caller-provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        Role
	Password    string
	Disabled    bool
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to rotate a session token.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of a session refresh.
type RefreshSessionResult struct {
	Session Session
}
