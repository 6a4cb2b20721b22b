package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patch is a field-level update keyed by the stored field names
// (title, parent_id, is_expanded, ...). Values may come from JSON decoding
// (float64, map[string]any, []any) or from typed Go callers.
type Patch map[string]any

// PatchResult describes what Apply did with each key.
type PatchResult struct {
	Applied []string
	// Ignored lists derived or immutable keys that were dropped.
	Ignored []string
	// Coerced lists keys whose value was replaced by a normalized one
	// (a non-boolean is_expanded, a malformed parent_id).
	Coerced []string

	ParentChanged       bool
	PreviousParentID    *string
	PredecessorsChanged bool
}

// ignoredPatchKeys are never written from a patch.
var ignoredPatchKeys = map[string]bool{
	"children":   true,
	"created_at": true,
	"updated_at": true,
	"id":         true,
	"project_id": true,
	"company_id": true,
}

// taskLinkKeys belong to the task-link bridge and cannot be patched directly.
var taskLinkKeys = map[string]bool{
	"is_task_enabled":      true,
	"linked_task_id":       true,
	"task_conversion_date": true,
	"linked_tasks":         true,
}

// Apply validates every key and then applies the patch to w. On error w is
// left untouched.
func (p Patch) Apply(w *WBSItem) (PatchResult, error) {
	var res PatchResult
	staged := w.Clone()

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := p[key]
		if ignoredPatchKeys[key] {
			res.Ignored = append(res.Ignored, key)
			continue
		}
		if taskLinkKeys[key] {
			return PatchResult{}, NewValidationError("field %q is managed by task link/unlink", key)
		}
		coerced, err := applyField(staged, key, v)
		if err != nil {
			return PatchResult{}, err
		}
		res.Applied = append(res.Applied, key)
		if coerced {
			res.Coerced = append(res.Coerced, key)
		}
	}

	if w.ParentKey() != staged.ParentKey() {
		res.ParentChanged = true
		res.PreviousParentID = w.ParentID
	}
	if _, ok := p["predecessors"]; ok {
		res.PredecessorsChanged = true
	}

	children := w.Children
	*w = *staged
	w.Children = children
	return res, nil
}

func applyField(w *WBSItem, key string, v any) (coerced bool, err error) {
	switch key {
	case "parent_id":
		parent, ok := coerceParentID(v)
		w.ParentID = parent
		return !ok, nil
	case "is_expanded":
		val, canonical := CoerceFlag(v)
		w.IsExpanded = val
		w.ExpandedRaw = json.RawMessage(FlagJSON(val))
		return !canonical, nil
	case "wbs_id":
		return false, setString(&w.WBSID, key, v)
	case "title":
		if err := setString(&w.Title, key, v); err != nil {
			return false, err
		}
		if strings.TrimSpace(w.Title) == "" {
			return false, NewValidationError("title cannot be empty")
		}
		return false, nil
	case "description":
		return false, setString(&w.Description, key, v)
	case "category":
		return false, setString(&w.Category, key, v)
	case "priority":
		return false, setString(&w.Priority, key, v)
	case "status":
		return false, setString(&w.Status, key, v)
	case "health":
		return false, setString(&w.Health, key, v)
	case "progress_status":
		return false, setString(&w.ProgressStatus, key, v)
	case "at_risk":
		b, ok := v.(bool)
		if !ok {
			return false, NewValidationError("at_risk must be a boolean, got %T", v)
		}
		w.AtRisk = b
		return false, nil
	case "level":
		n, err := toInt(key, v)
		if err != nil {
			return false, err
		}
		if n < 0 {
			return false, NewValidationError("level must be non-negative")
		}
		w.Level = n
		return false, nil
	case "sort_order":
		n, err := toInt(key, v)
		if err != nil {
			return false, err
		}
		w.SortOrder = n
		return false, nil
	case "progress":
		n, err := toInt(key, v)
		if err != nil {
			return false, err
		}
		if n < 0 || n > 100 {
			return false, NewValidationError("progress must be between 0 and 100, got %d", n)
		}
		w.Progress = n
		return false, nil
	case "duration":
		if v == nil {
			w.Duration = nil
			return false, nil
		}
		n, err := toInt(key, v)
		if err != nil {
			return false, err
		}
		w.Duration = &n
		return false, nil
	case "budgeted_cost":
		f, err := toFloatPtr(key, v)
		if err != nil {
			return false, err
		}
		w.BudgetedCost = f
		return false, nil
	case "actual_cost":
		f, err := toFloatPtr(key, v)
		if err != nil {
			return false, err
		}
		w.ActualCost = f
		return false, nil
	case "start_date":
		t, err := toTimePtr(key, v)
		if err != nil {
			return false, err
		}
		w.StartDate = t
		return false, nil
	case "end_date":
		t, err := toTimePtr(key, v)
		if err != nil {
			return false, err
		}
		w.EndDate = t
		return false, nil
	case "predecessors":
		preds, err := toPredecessors(v)
		if err != nil {
			return false, err
		}
		w.Predecessors = preds
		return false, nil
	}
	return false, NewValidationError("unknown field %q", key)
}

// coerceParentID accepts a UUID string or null. Any other shape becomes
// null; ok reports whether the input was well formed.
func coerceParentID(v any) (*string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case *string:
		if t == nil {
			return nil, true
		}
		return coerceParentID(*t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		if _, err := uuid.Parse(s); err != nil {
			return nil, false
		}
		return &s, true
	default:
		return nil, false
	}
}

func setString(dst *string, key string, v any) error {
	switch t := v.(type) {
	case nil:
		*dst = ""
	case string:
		*dst = t
	case *string:
		if t == nil {
			*dst = ""
		} else {
			*dst = *t
		}
	default:
		return NewValidationError("%s must be a string, got %T", key, v)
	}
	return nil
}

func toInt(key string, v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		if t < math.MinInt || t > math.MaxInt {
			return 0, NewValidationError("%s is out of range, got %d", key, t)
		}
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, NewValidationError("%s must be an integer, got %v", key, t)
		}
		// float64(math.MaxInt) rounds up to 2^63, which int cannot hold.
		if math.IsInf(t, 0) || t < math.MinInt || t >= math.MaxInt {
			return 0, NewValidationError("%s is out of range, got %v", key, t)
		}
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, NewValidationError("%s must be an integer, got %s", key, t)
		}
		return toInt(key, n)
	}
	return 0, NewValidationError("%s must be an integer, got %T", key, v)
}

func toFloatPtr(key string, v any) (*float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil, NewValidationError("%s must be a number, got %s", key, t)
		}
		f = parsed
	default:
		return nil, NewValidationError("%s must be a number, got %T", key, v)
	}
	return &f, nil
}

// DateLayout is the stored form of start_date / end_date.
const DateLayout = "2006-01-02"

func toTimePtr(key string, v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case *time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		if parsed, err := time.Parse(DateLayout, s); err == nil {
			return &parsed, nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, NewValidationError("%s must be a date (YYYY-MM-DD), got %q", key, s)
		}
		return &parsed, nil
	}
	return nil, NewValidationError("%s must be a date, got %T", key, v)
}

func toPredecessors(v any) ([]Predecessor, error) {
	var preds []Predecessor
	switch t := v.(type) {
	case nil:
		return []Predecessor{}, nil
	case []Predecessor:
		preds = append([]Predecessor(nil), t...)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, NewValidationError("predecessors: %v", err)
		}
		if err := json.Unmarshal(raw, &preds); err != nil {
			return nil, NewValidationError("predecessors must be a list of {predecessor_id, relation_type, lag_days}")
		}
	}
	for i := range preds {
		if strings.TrimSpace(preds[i].PredecessorID) == "" {
			return nil, NewValidationError("predecessors[%d]: predecessor_id is required", i)
		}
		rt, err := ParseRelationType(string(preds[i].RelationType))
		if err != nil {
			return nil, fmt.Errorf("predecessors[%d]: %w", i, err)
		}
		preds[i].RelationType = rt
	}
	if preds == nil {
		preds = []Predecessor{}
	}
	return preds, nil
}
