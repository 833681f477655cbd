package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/maintenance-cmms/internal/persistence"
	"github.com/example/maintenance-cmms/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// storage instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users      persistence.UserRepository
	Sessions   persistence.SessionRepository
	WorkOrders persistence.WorkOrderRepository
	Entries    persistence.TimeEntryRepository
	Equipment  persistence.EquipmentRepository

	store   *sqlite.Store
	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// InsertEquipment seeds a catalog row directly; equipment CRUD is out of the
// repository surface.
func (h *SQLiteHarness) InsertEquipment(tb testing.TB, equipment persistence.Equipment) {
	tb.Helper()
	_, err := h.store.DB().ExecContext(context.Background(),
		`INSERT INTO equipment (id, name, created_at) VALUES (?, ?, ?)`,
		equipment.ID, equipment.Name, equipment.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		tb.Fatalf("failed to insert equipment: %v", err)
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "cmms.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:      sqlite.NewUserRepository(storage),
		Sessions:   sqlite.NewSessionRepository(storage),
		WorkOrders: sqlite.NewWorkOrderRepository(storage),
		Entries:    sqlite.NewTimeEntryRepository(storage),
		Equipment:  sqlite.NewEquipmentRepository(storage),
		store:      storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
