package sqlite

// schemaStatements is applied in order by Store.Migrate. The partial unique
// index over open time entries is the store-level guarantee behind the
// one-open-entry-per-actor invariant: a racing second insert fails with a
// UNIQUE violation instead of leaving two open rows.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
		display_name  TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('tech', 'manager', 'admin')),
		disabled      INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token       TEXT NOT NULL UNIQUE,
		fingerprint TEXT NOT NULL DEFAULT '',
		expires_at  TEXT NOT NULL,
		revoked_at  TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS equipment (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS work_orders (
		id                 TEXT PRIMARY KEY,
		seq                INTEGER NOT NULL UNIQUE,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		equipment_id       TEXT REFERENCES equipment(id),
		priority           TEXT NOT NULL CHECK (priority IN ('low', 'medium', 'high', 'critical')),
		type               TEXT NOT NULL CHECK (type IN ('corrective', 'preventive', 'inspection')),
		status             TEXT NOT NULL CHECK (status IN ('draft', 'pending_approval', 'open', 'in_progress', 'completed', 'rejected')),
		assigned_to        TEXT REFERENCES users(id),
		created_by         TEXT NOT NULL REFERENCES users(id),
		due_date           TEXT,
		total_time_seconds INTEGER NOT NULL DEFAULT 0 CHECK (total_time_seconds >= 0),
		notes              TEXT,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS time_entries (
		id            TEXT PRIMARY KEY,
		actor_id      TEXT NOT NULL REFERENCES users(id),
		work_order_id TEXT NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
		entry_type    TEXT NOT NULL CHECK (entry_type IN ('work', 'break')),
		break_reason  TEXT CHECK (break_reason IN ('lunch', 'parts_wait', 'meeting', 'personal', 'other')),
		started_at    TEXT NOT NULL,
		ended_at      TEXT,
		notes         TEXT,
		created_at    TEXT NOT NULL,
		CHECK ((entry_type = 'break') = (break_reason IS NOT NULL))
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS time_entries_single_open
		ON time_entries (actor_id) WHERE ended_at IS NULL`,

	`CREATE INDEX IF NOT EXISTS time_entries_by_work_order
		ON time_entries (work_order_id, started_at)`,

	`CREATE INDEX IF NOT EXISTS work_orders_by_status
		ON work_orders (status)`,
}
