package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/maintenance-cmms/internal/persistence"
)

// TimeEntryRepository implements persistence.TimeEntryRepository using SQLite.
type TimeEntryRepository struct {
	store *Store
}

// NewTimeEntryRepository creates a SQLite-backed time entry repository.
func NewTimeEntryRepository(store *Store) *TimeEntryRepository {
	return &TimeEntryRepository{store: store}
}

const timeEntryColumns = `id, actor_id, work_order_id, entry_type, break_reason, started_at, ended_at, notes, created_at`

// InsertEntry stores a new entry. When the entry is open and the actor already
// has an open entry, the partial unique index rejects the write with
// ErrDuplicate regardless of request interleaving.
func (r *TimeEntryRepository) InsertEntry(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error) {
	query := `INSERT INTO time_entries (` + timeEntryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.WorkOrderID,
		entry.Type,
		nullString(entry.BreakReason),
		formatTime(entry.StartedAt),
		formatTimePtr(entry.EndedAt),
		nullString(entry.Notes),
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return persistence.TimeEntry{}, fmt.Errorf("inserting time entry: %w", mapError(err))
	}
	return r.GetEntry(ctx, entry.ID)
}

// GetEntry retrieves an entry by ID.
func (r *TimeEntryRepository) GetEntry(ctx context.Context, id string) (persistence.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE id = ?`
	return scanTimeEntry(r.store.db.QueryRowContext(ctx, query, id))
}

// OpenEntries returns every open entry owned by the actor. Callers treat more
// than one row as a data-integrity violation; the query does not mask it.
func (r *TimeEntryRepository) OpenEntries(ctx context.Context, actorID string) ([]persistence.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries
		WHERE actor_id = ? AND ended_at IS NULL ORDER BY started_at`
	rows, err := r.store.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("listing open entries: %w", mapError(err))
	}
	defer rows.Close()
	return scanTimeEntries(rows)
}

// OpenEntriesForWorkOrder returns open entries attached to a work order across
// all actors.
func (r *TimeEntryRepository) OpenEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]persistence.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries
		WHERE work_order_id = ? AND ended_at IS NULL ORDER BY started_at`
	rows, err := r.store.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("listing open entries for work order: %w", mapError(err))
	}
	defer rows.Close()
	return scanTimeEntries(rows)
}

// CloseAndInsert closes the identified open entry and opens the next one in a
// single transaction, so a pause or resume handover either fully applies or
// leaves the ledger untouched.
func (r *TimeEntryRepository) CloseAndInsert(ctx context.Context, closeID string, endedAt time.Time, next persistence.TimeEntry) (persistence.TimeEntry, persistence.TimeEntry, error) {
	var closed, opened persistence.TimeEntry

	err := r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE time_entries SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
			formatTime(endedAt), closeID,
		)
		if err != nil {
			return fmt.Errorf("closing time entry: %w", mapError(err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO time_entries (`+timeEntryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			next.ID,
			next.ActorID,
			next.WorkOrderID,
			next.Type,
			nullString(next.BreakReason),
			formatTime(next.StartedAt),
			formatTimePtr(next.EndedAt),
			nullString(next.Notes),
			formatTime(next.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting handover entry: %w", mapError(err))
		}

		closed, err = scanTimeEntry(tx.QueryRowContext(ctx,
			`SELECT `+timeEntryColumns+` FROM time_entries WHERE id = ?`, closeID))
		if err != nil {
			return err
		}
		opened, err = scanTimeEntry(tx.QueryRowContext(ctx,
			`SELECT `+timeEntryColumns+` FROM time_entries WHERE id = ?`, next.ID))
		return err
	})
	if err != nil {
		return persistence.TimeEntry{}, persistence.TimeEntry{}, err
	}
	return closed, opened, nil
}

// CloseAccumulating closes the identified open entry and adds seconds to the
// work order's ledger in the same transaction. Passing zero seconds closes the
// entry without touching the work order (break time is never accumulated).
func (r *TimeEntryRepository) CloseAccumulating(ctx context.Context, closeID string, endedAt time.Time, workOrderID string, seconds int64) (persistence.TimeEntry, error) {
	var closed persistence.TimeEntry

	err := r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE time_entries SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
			formatTime(endedAt), closeID,
		)
		if err != nil {
			return fmt.Errorf("closing time entry: %w", mapError(err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		if seconds > 0 {
			result, err = tx.ExecContext(ctx,
				`UPDATE work_orders
					SET total_time_seconds = total_time_seconds + ?, updated_at = ?
					WHERE id = ?`,
				seconds, formatTime(endedAt), workOrderID,
			)
			if err != nil {
				return fmt.Errorf("accumulating work order time: %w", mapError(err))
			}
			affected, err = result.RowsAffected()
			if err != nil {
				return fmt.Errorf("reading rows affected: %w", err)
			}
			if affected == 0 {
				return persistence.ErrNotFound
			}
		}

		closed, err = scanTimeEntry(tx.QueryRowContext(ctx,
			`SELECT `+timeEntryColumns+` FROM time_entries WHERE id = ?`, closeID))
		return err
	})
	if err != nil {
		return persistence.TimeEntry{}, err
	}
	return closed, nil
}

// ListEntriesForWorkOrder returns all entries for a work order ordered by
// start time.
func (r *TimeEntryRepository) ListEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]persistence.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries
		WHERE work_order_id = ? ORDER BY started_at, id`
	rows, err := r.store.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("listing entries for work order: %w", mapError(err))
	}
	defer rows.Close()
	return scanTimeEntries(rows)
}

// DeleteEntriesForWorkOrder removes all entries belonging to a work order.
func (r *TimeEntryRepository) DeleteEntriesForWorkOrder(ctx context.Context, workOrderID string) error {
	_, err := r.store.db.ExecContext(ctx,
		`DELETE FROM time_entries WHERE work_order_id = ?`, workOrderID)
	if err != nil {
		return fmt.Errorf("deleting entries for work order: %w", mapError(err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimeEntry(row rowScanner) (persistence.TimeEntry, error) {
	var entry persistence.TimeEntry
	var breakReason, endedAt, notes sql.NullString
	var startedAt, createdAt string

	err := row.Scan(
		&entry.ID,
		&entry.ActorID,
		&entry.WorkOrderID,
		&entry.Type,
		&breakReason,
		&startedAt,
		&endedAt,
		&notes,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.TimeEntry{}, persistence.ErrNotFound
		}
		return persistence.TimeEntry{}, fmt.Errorf("scanning time entry: %w", err)
	}

	entry.BreakReason = stringPtr(breakReason)
	entry.Notes = stringPtr(notes)
	if entry.StartedAt, err = parseTime(startedAt); err != nil {
		return persistence.TimeEntry{}, err
	}
	if entry.EndedAt, err = parseTimePtr(endedAt); err != nil {
		return persistence.TimeEntry{}, err
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.TimeEntry{}, err
	}
	return entry, nil
}

func scanTimeEntries(rows *sql.Rows) ([]persistence.TimeEntry, error) {
	var entries []persistence.TimeEntry
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating time entries: %w", err)
	}
	return entries, nil
}
