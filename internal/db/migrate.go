package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillLinkedTasks(db); err != nil {
		return fmt.Errorf("backfilling linked_tasks: %w", err)
	}
	return nil
}

var migrations = []string{
	// parent_id deliberately has no REFERENCES clause: subtree removal is an
	// explicit recursive delete and legacy orphans must stay loadable.
	`CREATE TABLE IF NOT EXISTS wbs_items (
		id                   TEXT PRIMARY KEY,
		project_id           TEXT NOT NULL,
		company_id           TEXT NOT NULL,
		parent_id            TEXT,
		wbs_id               TEXT NOT NULL DEFAULT '',
		level                INTEGER NOT NULL DEFAULT 0 CHECK(level >= 0),
		sort_order           INTEGER NOT NULL DEFAULT 0,
		title                TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		category             TEXT NOT NULL DEFAULT '',
		priority             TEXT NOT NULL DEFAULT '',
		status               TEXT NOT NULL DEFAULT '',
		health               TEXT NOT NULL DEFAULT '',
		progress_status      TEXT NOT NULL DEFAULT '',
		at_risk              INTEGER NOT NULL DEFAULT 0,
		start_date           TEXT,
		end_date             TEXT,
		duration             INTEGER,
		budgeted_cost        REAL,
		actual_cost          REAL,
		progress             INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
		predecessors         TEXT NOT NULL DEFAULT '[]',
		is_expanded          TEXT,
		is_task_enabled      INTEGER NOT NULL DEFAULT 0,
		linked_task_id       TEXT,
		task_conversion_date TEXT,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_wbs_items_project ON wbs_items(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wbs_items_parent ON wbs_items(parent_id)`,
	// wbs_id is a display code; duplicates from older data are tolerated.
	`CREATE INDEX IF NOT EXISTS idx_wbs_items_wbs_id ON wbs_items(project_id, wbs_id)`,

	`CREATE TABLE IF NOT EXISTS module_permissions (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		company_id    TEXT NOT NULL,
		module_id     TEXT NOT NULL,
		sub_module_id TEXT,
		access_level  TEXT NOT NULL
		              CHECK(access_level IN ('no_access','can_view','can_edit')),
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_module_permissions_user_company ON module_permissions(user_id, company_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_module_permissions_grant
		ON module_permissions(user_id, company_id, module_id, COALESCE(sub_module_id, ''))`,

	// Task-link history, added after the first release.
	`ALTER TABLE wbs_items ADD COLUMN linked_tasks TEXT NOT NULL DEFAULT '[]'`,
}

// migrateBackfillLinkedTasks seeds linked_tasks for rows that were linked
// before the history column existed. Idempotent: only touches rows whose
// history is still empty.
func migrateBackfillLinkedTasks(db *sql.DB) error {
	ctx := context.Background()
	query := `UPDATE wbs_items
		SET linked_tasks = json_array(linked_task_id)
		WHERE linked_task_id IS NOT NULL AND linked_task_id != ''
		  AND (linked_tasks IS NULL OR linked_tasks = '' OR linked_tasks = '[]')`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("seeding linked_tasks from linked_task_id: %w", err)
	}
	return nil
}
