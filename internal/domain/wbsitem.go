package domain

import (
	"encoding/json"
	"time"
)

// WBSItem is one node of a project's work breakdown structure.
// Children is derived on every load and never persisted.
type WBSItem struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	CompanyID string  `json:"company_id"`
	ParentID  *string `json:"parent_id"`
	WBSID     string  `json:"wbs_id"`
	Level     int     `json:"level"`
	SortOrder int     `json:"sort_order"`

	Title          string `json:"title"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Priority       string `json:"priority"`
	Status         string `json:"status"`
	Health         string `json:"health"`
	ProgressStatus string `json:"progress_status"`
	AtRisk         bool   `json:"at_risk"`

	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	Duration     *int       `json:"duration"`
	BudgetedCost *float64   `json:"budgeted_cost"`
	ActualCost   *float64   `json:"actual_cost"`
	Progress     int        `json:"progress"`

	Predecessors []Predecessor `json:"predecessors"`

	// ExpandedRaw is the is_expanded column exactly as stored. IsExpanded is
	// only trustworthy after normalization (hierarchy.Build or CoerceFlag).
	ExpandedRaw json.RawMessage `json:"-"`
	IsExpanded  bool            `json:"is_expanded"`

	IsTaskEnabled      bool       `json:"is_task_enabled"`
	LinkedTaskID       *string    `json:"linked_task_id"`
	TaskConversionDate *time.Time `json:"task_conversion_date"`
	LinkedTasks        []string   `json:"linked_tasks"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Children []*WBSItem `json:"-"`
}

func (w *WBSItem) IsRoot() bool {
	return w.ParentID == nil || *w.ParentID == ""
}

// ParentKey returns the parent id or "" for roots.
func (w *WBSItem) ParentKey() string {
	if w.ParentID == nil {
		return ""
	}
	return *w.ParentID
}

// HasLiveTask reports whether the item currently references an external task.
func (w *WBSItem) HasLiveTask() bool {
	return w.IsTaskEnabled || (w.LinkedTaskID != nil && *w.LinkedTaskID != "")
}

// LinkTask records taskID as the item's live task.
func (w *WBSItem) LinkTask(taskID string, now time.Time) {
	id := taskID
	at := now
	w.IsTaskEnabled = true
	w.LinkedTaskID = &id
	w.TaskConversionDate = &at
	for _, existing := range w.LinkedTasks {
		if existing == taskID {
			return
		}
	}
	w.LinkedTasks = append(w.LinkedTasks, taskID)
}

// UnlinkTask severs the live task reference; the history in LinkedTasks stays.
func (w *WBSItem) UnlinkTask() {
	w.IsTaskEnabled = false
	w.LinkedTaskID = nil
	w.TaskConversionDate = nil
}

// PredecessorIDs returns the ids referenced by Predecessors, in order.
func (w *WBSItem) PredecessorIDs() []string {
	ids := make([]string, 0, len(w.Predecessors))
	for _, p := range w.Predecessors {
		ids = append(ids, p.PredecessorID)
	}
	return ids
}

// Clone returns a deep copy without Children.
func (w *WBSItem) Clone() *WBSItem {
	if w == nil {
		return nil
	}
	c := *w
	c.Children = nil
	if w.ParentID != nil {
		p := *w.ParentID
		c.ParentID = &p
	}
	if w.LinkedTaskID != nil {
		t := *w.LinkedTaskID
		c.LinkedTaskID = &t
	}
	c.StartDate = cloneTime(w.StartDate)
	c.EndDate = cloneTime(w.EndDate)
	c.TaskConversionDate = cloneTime(w.TaskConversionDate)
	if w.Duration != nil {
		d := *w.Duration
		c.Duration = &d
	}
	if w.BudgetedCost != nil {
		b := *w.BudgetedCost
		c.BudgetedCost = &b
	}
	if w.ActualCost != nil {
		a := *w.ActualCost
		c.ActualCost = &a
	}
	c.Predecessors = append([]Predecessor(nil), w.Predecessors...)
	c.LinkedTasks = append([]string(nil), w.LinkedTasks...)
	c.ExpandedRaw = append(json.RawMessage(nil), w.ExpandedRaw...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
