package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/maintenance-cmms/internal/persistence"
)

// WorkOrderRepository implements persistence.WorkOrderRepository using SQLite.
type WorkOrderRepository struct {
	store *Store
}

// NewWorkOrderRepository creates a SQLite-backed work order repository.
func NewWorkOrderRepository(store *Store) *WorkOrderRepository {
	return &WorkOrderRepository{store: store}
}

const workOrderColumns = `id, seq, title, description, equipment_id, priority, type, status,
	assigned_to, created_by, due_date, total_time_seconds, notes, created_at, updated_at`

// CreateWorkOrder stores a new work order, assigning the next human-readable
// sequence number inside the insert transaction.
func (r *WorkOrderRepository) CreateWorkOrder(ctx context.Context, order persistence.WorkOrder) (persistence.WorkOrder, error) {
	err := r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM work_orders`,
		).Scan(&order.Sequence); err != nil {
			return fmt.Errorf("assigning work order sequence: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO work_orders (`+workOrderColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID,
			order.Sequence,
			order.Title,
			order.Description,
			nullString(order.EquipmentID),
			order.Priority,
			order.Type,
			order.Status,
			nullString(order.AssignedTo),
			order.CreatedBy,
			formatTimePtr(order.DueDate),
			order.TotalTimeSeconds,
			nullString(order.Notes),
			formatTime(order.CreatedAt),
			formatTime(order.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting work order: %w", mapError(err))
		}
		return nil
	})
	if err != nil {
		return persistence.WorkOrder{}, err
	}
	return r.GetWorkOrder(ctx, order.ID)
}

// GetWorkOrder retrieves a work order by ID.
func (r *WorkOrderRepository) GetWorkOrder(ctx context.Context, id string) (persistence.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = ?`
	return scanWorkOrder(r.store.db.QueryRowContext(ctx, query, id))
}

// ListWorkOrders returns work orders matching the filter, newest first.
func (r *WorkOrderRepository) ListWorkOrders(ctx context.Context, filter persistence.WorkOrderFilter) ([]persistence.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders`
	var conditions []string
	var args []any

	if len(filter.Statuses) > 0 {
		placeholders := strings.Repeat("?, ", len(filter.Statuses))
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.TrimSuffix(placeholders, ", ")))
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq DESC"

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing work orders: %w", mapError(err))
	}
	defer rows.Close()

	var orders []persistence.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating work orders: %w", err)
	}
	return orders, nil
}

// UpdateWorkOrder rewrites the mutable descriptive fields of a work order.
// Status and the time ledger are owned by UpdateStatus and the time entry
// repository and are never written here.
func (r *WorkOrderRepository) UpdateWorkOrder(ctx context.Context, order persistence.WorkOrder) (persistence.WorkOrder, error) {
	result, err := r.store.db.ExecContext(ctx,
		`UPDATE work_orders
			SET title = ?, description = ?, equipment_id = ?, priority = ?, type = ?,
				assigned_to = ?, due_date = ?, notes = ?, updated_at = ?
			WHERE id = ?`,
		order.Title,
		order.Description,
		nullString(order.EquipmentID),
		order.Priority,
		order.Type,
		nullString(order.AssignedTo),
		formatTimePtr(order.DueDate),
		nullString(order.Notes),
		formatTime(order.UpdatedAt),
		order.ID,
	)
	if err != nil {
		return persistence.WorkOrder{}, fmt.Errorf("updating work order: %w", mapError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.WorkOrder{}, fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.WorkOrder{}, persistence.ErrNotFound
	}
	return r.GetWorkOrder(ctx, order.ID)
}

// UpdateStatus applies a compare-and-set status transition. When the stored
// status no longer equals from, ErrStaleStatus is returned and nothing is
// written, so two racing transitions cannot both pass the lifecycle table.
func (r *WorkOrderRepository) UpdateStatus(ctx context.Context, id, from, to string, update persistence.StatusUpdate) (persistence.WorkOrder, error) {
	var updated persistence.WorkOrder

	err := r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `UPDATE work_orders SET status = ?, updated_at = ?`
		args := []any{to, formatTime(time.Now())}
		if update.SetNotes {
			query += `, notes = ?`
			args = append(args, nullString(update.Notes))
		}
		if update.SetAssign {
			query += `, assigned_to = ?`
			args = append(args, nullString(update.AssignedTo))
		}
		query += ` WHERE id = ? AND status = ?`
		args = append(args, id, from)

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("updating work order status: %w", mapError(err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading rows affected: %w", err)
		}
		if affected == 0 {
			// Distinguish a missing order from a concurrent transition.
			var existing string
			err := tx.QueryRowContext(ctx, `SELECT status FROM work_orders WHERE id = ?`, id).Scan(&existing)
			if err == sql.ErrNoRows {
				return persistence.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("reading work order status: %w", err)
			}
			return persistence.ErrStaleStatus
		}

		updated, err = scanWorkOrder(tx.QueryRowContext(ctx,
			`SELECT `+workOrderColumns+` FROM work_orders WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return persistence.WorkOrder{}, err
	}
	return updated, nil
}

// DeleteWorkOrder removes a work order; associated time entries cascade.
func (r *WorkOrderRepository) DeleteWorkOrder(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM work_orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting work order: %w", mapError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanWorkOrder(row rowScanner) (persistence.WorkOrder, error) {
	var order persistence.WorkOrder
	var equipmentID, assignedTo, dueDate, notes sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&order.ID,
		&order.Sequence,
		&order.Title,
		&order.Description,
		&equipmentID,
		&order.Priority,
		&order.Type,
		&order.Status,
		&assignedTo,
		&order.CreatedBy,
		&dueDate,
		&order.TotalTimeSeconds,
		&notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.WorkOrder{}, persistence.ErrNotFound
		}
		return persistence.WorkOrder{}, fmt.Errorf("scanning work order: %w", err)
	}

	order.EquipmentID = stringPtr(equipmentID)
	order.AssignedTo = stringPtr(assignedTo)
	order.Notes = stringPtr(notes)
	if order.DueDate, err = parseTimePtr(dueDate); err != nil {
		return persistence.WorkOrder{}, err
	}
	if order.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.WorkOrder{}, err
	}
	if order.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.WorkOrder{}, err
	}
	return order, nil
}
