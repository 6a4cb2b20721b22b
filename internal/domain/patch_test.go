package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPatchTarget() *WBSItem {
	now := time.Now().UTC()
	return &WBSItem{
		ID:           uuid.New().String(),
		ProjectID:    "p1",
		CompanyID:    "c1",
		Title:        "Foundations",
		Level:        0,
		Predecessors: []Predecessor{},
		LinkedTasks:  []string{},
		IsExpanded:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPatchApply_DescriptiveFields(t *testing.T) {
	w := newPatchTarget()

	res, err := Patch{
		"title":           "Excavation",
		"status":          "in_progress",
		"progress":        float64(40),
		"budgeted_cost":   float64(1250.5),
		"at_risk":         true,
		"start_date":      "2026-03-01",
		"duration":        12,
		"progress_status": "on_track",
	}.Apply(w)
	require.NoError(t, err)

	assert.Equal(t, "Excavation", w.Title)
	assert.Equal(t, "in_progress", w.Status)
	assert.Equal(t, 40, w.Progress)
	require.NotNil(t, w.BudgetedCost)
	assert.InDelta(t, 1250.5, *w.BudgetedCost, 0.001)
	assert.True(t, w.AtRisk)
	require.NotNil(t, w.StartDate)
	assert.Equal(t, "2026-03-01", w.StartDate.Format(DateLayout))
	require.NotNil(t, w.Duration)
	assert.Equal(t, 12, *w.Duration)
	assert.Len(t, res.Applied, 8)
	assert.Empty(t, res.Coerced)
	assert.False(t, res.ParentChanged)
}

func TestPatchApply_IgnoresDerivedAndImmutableKeys(t *testing.T) {
	w := newPatchTarget()
	created := w.CreatedAt

	res, err := Patch{
		"children":   []any{map[string]any{"id": "x"}},
		"created_at": "2000-01-01T00:00:00Z",
		"updated_at": "2000-01-01T00:00:00Z",
		"project_id": "other",
		"title":      "Renamed",
	}.Apply(w)
	require.NoError(t, err)

	assert.Equal(t, "p1", w.ProjectID)
	assert.Equal(t, created, w.CreatedAt)
	assert.Equal(t, "Renamed", w.Title)
	assert.ElementsMatch(t, []string{"children", "created_at", "updated_at", "project_id"}, res.Ignored)
}

func TestPatchApply_CoercesExpanded(t *testing.T) {
	w := newPatchTarget()

	res, err := Patch{"is_expanded": map[string]any{"value": "false"}}.Apply(w)
	require.NoError(t, err)
	assert.False(t, w.IsExpanded)
	assert.Equal(t, json.RawMessage("false"), w.ExpandedRaw)
	assert.Equal(t, []string{"is_expanded"}, res.Coerced)

	res, err = Patch{"is_expanded": true}.Apply(w)
	require.NoError(t, err)
	assert.True(t, w.IsExpanded)
	assert.Empty(t, res.Coerced)
}

func TestPatchApply_ParentID(t *testing.T) {
	parent := uuid.New().String()

	t.Run("valid uuid", func(t *testing.T) {
		w := newPatchTarget()
		res, err := Patch{"parent_id": parent}.Apply(w)
		require.NoError(t, err)
		require.NotNil(t, w.ParentID)
		assert.Equal(t, parent, *w.ParentID)
		assert.True(t, res.ParentChanged)
		assert.Nil(t, res.PreviousParentID)
	})

	t.Run("null detaches", func(t *testing.T) {
		w := newPatchTarget()
		w.ParentID = &parent
		res, err := Patch{"parent_id": nil}.Apply(w)
		require.NoError(t, err)
		assert.Nil(t, w.ParentID)
		assert.True(t, res.ParentChanged)
		require.NotNil(t, res.PreviousParentID)
		assert.Equal(t, parent, *res.PreviousParentID)
		assert.Empty(t, res.Coerced)
	})

	for name, bad := range map[string]any{
		"object":     map[string]any{"id": parent},
		"number":     float64(7),
		"not a uuid": "ghost-id",
		"empty":      "",
	} {
		t.Run("malformed "+name+" becomes null", func(t *testing.T) {
			w := newPatchTarget()
			w.ParentID = &parent
			res, err := Patch{"parent_id": bad}.Apply(w)
			require.NoError(t, err)
			assert.Nil(t, w.ParentID)
			assert.Contains(t, res.Coerced, "parent_id")
		})
	}
}

func TestPatchApply_RejectsBeforeMutating(t *testing.T) {
	w := newPatchTarget()

	_, err := Patch{"title": "Changed", "progress": float64(150)}.Apply(w)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Foundations", w.Title, "item must be untouched on validation failure")

	_, err = Patch{"nonsense": 1}.Apply(w)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Patch{"linked_task_id": "t-1"}.Apply(w)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Patch{"title": "   "}.Apply(w)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Patch{"level": float64(1.5)}.Apply(w)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPatchApply_RejectsOutOfRangeIntegers(t *testing.T) {
	for name, v := range map[string]any{
		"huge float":    1e300,
		"negative huge": -1e300,
		"inf":           math.Inf(1),
		"neg inf":       math.Inf(-1),
		"nan":           math.NaN(),
		"two to 63":     math.Ldexp(1, 63),
		"json number":   json.Number("1e300"),
	} {
		t.Run(name, func(t *testing.T) {
			w := newPatchTarget()
			_, err := Patch{"progress": v}.Apply(w)
			assert.ErrorIs(t, err, ErrValidation)

			_, err = Patch{"sort_order": v}.Apply(w)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPatchApply_Predecessors(t *testing.T) {
	w := newPatchTarget()

	res, err := Patch{"predecessors": []any{
		map[string]any{"predecessor_id": "a", "relation_type": "ss", "lag_days": float64(-2)},
		map[string]any{"predecessor_id": "b"},
	}}.Apply(w)
	require.NoError(t, err)
	assert.True(t, res.PredecessorsChanged)
	require.Len(t, w.Predecessors, 2)
	assert.Equal(t, StartToStart, w.Predecessors[0].RelationType)
	assert.Equal(t, -2, w.Predecessors[0].LagDays)
	assert.Equal(t, FinishToStart, w.Predecessors[1].RelationType)

	_, err = Patch{"predecessors": []any{map[string]any{"relation_type": "fs"}}}.Apply(w)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Patch{"predecessors": []any{map[string]any{"predecessor_id": "a", "relation_type": "sideways"}}}.Apply(w)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseRelationType(t *testing.T) {
	for in, want := range map[string]RelationType{
		"":                 FinishToStart,
		"FS":               FinishToStart,
		"ss":               StartToStart,
		"ff":               FinishToFinish,
		"sf":               StartToFinish,
		"start_to_finish":  StartToFinish,
		" Finish_To_Start": FinishToStart,
	} {
		got, err := ParseRelationType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRelationType("after")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestError_IsAndCode(t *testing.T) {
	err := NewNotFoundError("wbs item %s", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.True(t, IsCode(err, CodeNotFound))
	assert.Equal(t, "not_found: wbs item x", err.Error())

	conflict := NewConflictError("already linked").WithMeta("task_id", "t1")
	assert.Equal(t, "t1", conflict.Meta["task_id"])
	assert.ErrorIs(t, conflict, ErrConflict)
}

func TestWBSItem_LinkUnlink(t *testing.T) {
	w := newPatchTarget()
	now := time.Now().UTC()

	w.LinkTask("task-1", now)
	assert.True(t, w.HasLiveTask())
	require.NotNil(t, w.LinkedTaskID)
	assert.Equal(t, "task-1", *w.LinkedTaskID)
	assert.Equal(t, []string{"task-1"}, w.LinkedTasks)

	w.UnlinkTask()
	assert.False(t, w.HasLiveTask())
	assert.Nil(t, w.TaskConversionDate)
	assert.Equal(t, []string{"task-1"}, w.LinkedTasks, "history survives unlink")
}

func TestWBSItem_CloneIsDeep(t *testing.T) {
	parent := "p"
	w := newPatchTarget()
	w.ParentID = &parent
	w.Predecessors = []Predecessor{{PredecessorID: "a", RelationType: FinishToStart}}

	c := w.Clone()
	*c.ParentID = "changed"
	c.Predecessors[0].LagDays = 5

	assert.Equal(t, "p", *w.ParentID)
	assert.Equal(t, 0, w.Predecessors[0].LagDays)
}
