package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
)

// maxTreeDepth bounds recursive walks so a corrupt parent loop cannot spin.
const maxTreeDepth = 1000

const wbsItemColumns = `id, project_id, company_id, parent_id, wbs_id, level, sort_order,
	title, description, category, priority, status, health, progress_status, at_risk,
	start_date, end_date, duration, budgeted_cost, actual_cost, progress,
	predecessors, is_expanded, is_task_enabled, linked_task_id, task_conversion_date,
	linked_tasks, created_at, updated_at`

// subtreeCTE yields the root id and all descendants in the root's project.
// It takes the root id twice. UNION (not UNION ALL) keeps the walk finite on
// looping parent chains; the project filter stops it at cross-project parents.
const subtreeCTE = `WITH RECURSIVE subtree(id) AS (
		SELECT id FROM wbs_items WHERE id = ?
		UNION
		SELECT w.id FROM wbs_items w JOIN subtree s ON w.parent_id = s.id
		WHERE w.project_id = (SELECT project_id FROM wbs_items WHERE id = ?)
	)`

// SQLiteWBSItemRepo implements WBSItemRepo using a SQLite database.
type SQLiteWBSItemRepo struct {
	db db.DBTX
}

// NewSQLiteWBSItemRepo creates a new SQLiteWBSItemRepo.
func NewSQLiteWBSItemRepo(conn db.DBTX) *SQLiteWBSItemRepo {
	return &SQLiteWBSItemRepo{db: conn}
}

func (r *SQLiteWBSItemRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.WBSItem, error) {
	query := `SELECT ` + wbsItemColumns + ` FROM wbs_items WHERE project_id = ?
		ORDER BY sort_order, created_at, id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing wbs items by project: %w", err)
	}
	defer rows.Close()
	return r.scanItems(rows)
}

func (r *SQLiteWBSItemRepo) ListByIDs(ctx context.Context, ids []string) ([]*domain.WBSItem, error) {
	if len(ids) == 0 {
		return []*domain.WBSItem{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + wbsItemColumns + ` FROM wbs_items WHERE id IN (` + placeholders(len(ids)) + `)
		ORDER BY sort_order, created_at, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing wbs items by id: %w", err)
	}
	defer rows.Close()
	return r.scanItems(rows)
}

func (r *SQLiteWBSItemRepo) GetByID(ctx context.Context, id string) (*domain.WBSItem, error) {
	query := `SELECT ` + wbsItemColumns + ` FROM wbs_items WHERE id = ?`
	w, err := r.scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("wbs item %s not found", id)
		}
		return nil, fmt.Errorf("getting wbs item: %w", err)
	}
	return w, nil
}

func (r *SQLiteWBSItemRepo) Create(ctx context.Context, w *domain.WBSItem) error {
	preds, err := encodeJSONList(w.Predecessors)
	if err != nil {
		return fmt.Errorf("encoding predecessors: %w", err)
	}
	linked, err := encodeJSONList(w.LinkedTasks)
	if err != nil {
		return fmt.Errorf("encoding linked_tasks: %w", err)
	}
	query := `INSERT INTO wbs_items (` + wbsItemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		w.ID,
		w.ProjectID,
		w.CompanyID,
		nullableStringToValue(w.ParentID),
		w.WBSID,
		w.Level,
		w.SortOrder,
		w.Title,
		w.Description,
		w.Category,
		w.Priority,
		w.Status,
		w.Health,
		w.ProgressStatus,
		boolToInt(w.AtRisk),
		nullableTimeToString(w.StartDate, domain.DateLayout),
		nullableTimeToString(w.EndDate, domain.DateLayout),
		nullableIntToValue(w.Duration),
		nullableFloatToValue(w.BudgetedCost),
		nullableFloatToValue(w.ActualCost),
		w.Progress,
		preds,
		domain.FlagJSON(w.IsExpanded),
		boolToInt(w.IsTaskEnabled),
		nullableStringToValue(w.LinkedTaskID),
		nullableTimeToString(w.TaskConversionDate, timestampLayout),
		linked,
		w.CreatedAt.UTC().Format(timestampLayout),
		w.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting wbs item: %w", err)
	}
	return nil
}

// Update writes every editable column. Task-link columns are owned by
// SetTaskLink / ClearTaskLink. is_expanded is always written canonically.
func (r *SQLiteWBSItemRepo) Update(ctx context.Context, w *domain.WBSItem) error {
	preds, err := encodeJSONList(w.Predecessors)
	if err != nil {
		return fmt.Errorf("encoding predecessors: %w", err)
	}
	w.UpdatedAt = time.Now().UTC()
	query := `UPDATE wbs_items SET parent_id = ?, wbs_id = ?, level = ?, sort_order = ?,
		title = ?, description = ?, category = ?, priority = ?, status = ?, health = ?,
		progress_status = ?, at_risk = ?, start_date = ?, end_date = ?, duration = ?,
		budgeted_cost = ?, actual_cost = ?, progress = ?, predecessors = ?, is_expanded = ?,
		updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		nullableStringToValue(w.ParentID),
		w.WBSID,
		w.Level,
		w.SortOrder,
		w.Title,
		w.Description,
		w.Category,
		w.Priority,
		w.Status,
		w.Health,
		w.ProgressStatus,
		boolToInt(w.AtRisk),
		nullableTimeToString(w.StartDate, domain.DateLayout),
		nullableTimeToString(w.EndDate, domain.DateLayout),
		nullableIntToValue(w.Duration),
		nullableFloatToValue(w.BudgetedCost),
		nullableFloatToValue(w.ActualCost),
		w.Progress,
		preds,
		domain.FlagJSON(w.IsExpanded),
		w.UpdatedAt.Format(timestampLayout),
		w.ID,
	)
	if err != nil {
		return fmt.Errorf("updating wbs item: %w", err)
	}
	return requireOneRow(res, w.ID)
}

func (r *SQLiteWBSItemRepo) ListSubtreeIDs(ctx context.Context, id string) ([]string, error) {
	query := subtreeCTE + ` SELECT id FROM subtree`
	rows, err := r.db.QueryContext(ctx, query, id, id)
	if err != nil {
		return nil, fmt.Errorf("listing subtree: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, fmt.Errorf("scanning subtree id: %w", err)
		}
		ids = append(ids, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subtree: %w", err)
	}
	return ids, nil
}

func (r *SQLiteWBSItemRepo) RelevelSubtree(ctx context.Context, id string, level int) (int64, error) {
	query := `WITH RECURSIVE subtree(id, depth) AS (
			SELECT id, 0 FROM wbs_items WHERE id = ?
			UNION
			SELECT w.id, s.depth + 1 FROM wbs_items w JOIN subtree s ON w.parent_id = s.id
			WHERE s.depth < ? AND w.project_id = (SELECT project_id FROM wbs_items WHERE id = ?)
		)
		UPDATE wbs_items
		SET level = ? + (SELECT MIN(depth) FROM subtree WHERE subtree.id = wbs_items.id),
		    updated_at = ?
		WHERE id IN (SELECT id FROM subtree)`
	res, err := r.db.ExecContext(ctx, query, id, maxTreeDepth, id, level, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("releveling subtree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("releveling subtree: %w", err)
	}
	return n, nil
}

// DeleteSubtree must run inside a transaction: the id listing and the
// recursive delete have to see the same rows.
func (r *SQLiteWBSItemRepo) DeleteSubtree(ctx context.Context, id string) ([]string, error) {
	ids, err := r.ListSubtreeIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.NewNotFoundError("wbs item %s not found", id)
	}

	query := subtreeCTE + ` DELETE FROM wbs_items WHERE id IN (SELECT id FROM subtree)`
	res, err := r.db.ExecContext(ctx, query, id, id)
	if err != nil {
		return nil, fmt.Errorf("deleting wbs subtree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("deleting wbs subtree: %w", err)
	}
	if int(n) != len(ids) {
		return nil, fmt.Errorf("deleting wbs subtree: removed %d rows, expected %d", n, len(ids))
	}
	return ids, nil
}

func (r *SQLiteWBSItemRepo) SetTaskLink(ctx context.Context, w *domain.WBSItem) error {
	linked, err := encodeJSONList(w.LinkedTasks)
	if err != nil {
		return fmt.Errorf("encoding linked_tasks: %w", err)
	}
	w.UpdatedAt = time.Now().UTC()
	query := `UPDATE wbs_items SET is_task_enabled = ?, linked_task_id = ?,
		task_conversion_date = ?, linked_tasks = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		boolToInt(w.IsTaskEnabled),
		nullableStringToValue(w.LinkedTaskID),
		nullableTimeToString(w.TaskConversionDate, timestampLayout),
		linked,
		w.UpdatedAt.Format(timestampLayout),
		w.ID,
	)
	if err != nil {
		return fmt.Errorf("setting task link: %w", err)
	}
	return requireOneRow(res, w.ID)
}

func (r *SQLiteWBSItemRepo) ClearTaskLink(ctx context.Context, id string) error {
	query := `UPDATE wbs_items SET is_task_enabled = 0, linked_task_id = NULL,
		task_conversion_date = NULL, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("clearing task link: %w", err)
	}
	return requireOneRow(res, id)
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError("wbs item %s not found", id)
	}
	return nil
}

func (r *SQLiteWBSItemRepo) scanItem(row scanner) (*domain.WBSItem, error) {
	var w domain.WBSItem
	var parentID, startDate, endDate, linkedTaskID, convDate, expanded sql.NullString
	var preds, linked sql.NullString
	var duration sql.NullInt64
	var budgeted, actual sql.NullFloat64
	var atRisk, taskEnabled int
	var createdAt, updatedAt string

	err := row.Scan(
		&w.ID,
		&w.ProjectID,
		&w.CompanyID,
		&parentID,
		&w.WBSID,
		&w.Level,
		&w.SortOrder,
		&w.Title,
		&w.Description,
		&w.Category,
		&w.Priority,
		&w.Status,
		&w.Health,
		&w.ProgressStatus,
		&atRisk,
		&startDate,
		&endDate,
		&duration,
		&budgeted,
		&actual,
		&w.Progress,
		&preds,
		&expanded,
		&taskEnabled,
		&linkedTaskID,
		&convDate,
		&linked,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.ParentID = nullStringPtr(parentID)
	w.AtRisk = intToBool(atRisk)
	w.StartDate = parseNullableTime(startDate, domain.DateLayout)
	w.EndDate = parseNullableTime(endDate, domain.DateLayout)
	if duration.Valid {
		d := int(duration.Int64)
		w.Duration = &d
	}
	if budgeted.Valid {
		b := budgeted.Float64
		w.BudgetedCost = &b
	}
	if actual.Valid {
		a := actual.Float64
		w.ActualCost = &a
	}

	if w.Predecessors, err = decodeJSONList[domain.Predecessor](preds, "predecessors"); err != nil {
		return nil, err
	}
	if w.LinkedTasks, err = decodeJSONList[string](linked, "linked_tasks"); err != nil {
		return nil, err
	}

	// Kept verbatim so the hierarchy builder can report legacy shapes.
	if expanded.Valid {
		w.ExpandedRaw = json.RawMessage(expanded.String)
	}
	w.IsExpanded, _ = domain.NormalizeExpanded(w.ExpandedRaw)

	w.IsTaskEnabled = intToBool(taskEnabled)
	w.LinkedTaskID = nullStringPtr(linkedTaskID)
	w.TaskConversionDate = parseNullableTime(convDate, timestampLayout)

	if w.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if w.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &w, nil
}

func (r *SQLiteWBSItemRepo) scanItems(rows *sql.Rows) ([]*domain.WBSItem, error) {
	items := []*domain.WBSItem{}
	for rows.Next() {
		w, err := r.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning wbs item: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wbs items: %w", err)
	}
	return items, nil
}
