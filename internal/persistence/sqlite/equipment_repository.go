package sqlite

import (
	"context"
	"fmt"
)

// EquipmentRepository implements the narrow equipment catalog contract.
// Equipment CRUD is owned by the registry service; this core only validates
// references on work orders.
type EquipmentRepository struct {
	store *Store
}

// NewEquipmentRepository creates a SQLite-backed equipment catalog.
func NewEquipmentRepository(store *Store) *EquipmentRepository {
	return &EquipmentRepository{store: store}
}

// EquipmentExists reports whether the catalog contains the given id.
func (r *EquipmentRepository) EquipmentExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.store.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM equipment WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking equipment: %w", mapError(err))
	}
	return count > 0, nil
}
