package persistence

import "time"

// User represents an actor account in the maintenance domain.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
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

// WorkOrder represents a maintenance work order stored in persistence.
// TotalTimeSeconds is the second-precision ledger; rounding to minutes
// happens only at presentation boundaries.
type WorkOrder struct {
	ID               string
	Sequence         int64
	Title            string
	Description      string
	EquipmentID      *string
	Priority         string
	Type             string
	Status           string
	AssignedTo       *string
	CreatedBy        string
	DueDate          *time.Time
	TotalTimeSeconds int64
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TimeEntry represents one contiguous work or break interval for one actor.
// EndedAt is nil while the entry is open.
type TimeEntry struct {
	ID          string
	ActorID     string
	WorkOrderID string
	Type        string
	BreakReason *string
	StartedAt   time.Time
	EndedAt     *time.Time
	Notes       *string
	CreatedAt   time.Time
}

// Equipment represents a catalog entry referenced by work orders. Equipment
// management itself lives outside this core; only existence checks are exposed.
type Equipment struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
