package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/hierarchy"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/repository"
	"github.com/alexanderramin/wbs/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func createInput(title string, level int, parentID *string) CreateItemInput {
	return CreateItemInput{
		CompanyID: testutil.TestCompanyID,
		ProjectID: testutil.TestProjectID,
		ParentID:  parentID,
		Level:     intPtr(level),
		Title:     title,
	}
}

func TestCreate_RootAndChild(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscribe(t)

	root, err := h.wbs.Create(ctx, editor(), createInput("Phase 1", 0, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, root.Level)
	assert.True(t, root.IsExpanded, "is_expanded defaults to true")
	assert.Equal(t, "true", string(root.ExpandedRaw))
	assert.Empty(t, root.LinkedTasks)

	child, err := h.wbs.Create(ctx, editor(), createInput("Design", 1, &root.ID))
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)

	stored, err := h.items.GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "Design", stored.Title)
	assert.Equal(t, 1, stored.Level)

	events := drain(sub)
	require.Len(t, events, 2)
	assert.Equal(t, feed.EventInsert, events[0].Type)
	assert.Equal(t, root.ID, events[0].ID)
	assert.Equal(t, child.ID, events[1].ID)
}

func TestCreate_RejectsWrongLevelAndMissingParent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	root := testutil.NewTestItem(testutil.TestProjectID, "Root")
	h.seed(t, root)

	_, err := h.wbs.Create(ctx, editor(), createInput("Deep", 3, &root.ID))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "level must be 1")

	_, err = h.wbs.Create(ctx, editor(), createInput("Root two", 1, nil))
	assert.ErrorIs(t, err, domain.ErrValidation)

	ghost := "9b2f6a4e-1111-4c3b-8d5e-000000000000"
	_, err = h.wbs.Create(ctx, editor(), createInput("Orphan", 1, &ghost))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "does not exist")

	other := testutil.NewTestItem("project-2", "Elsewhere")
	h.seed(t, other)
	_, err = h.wbs.Create(ctx, editor(), createInput("Cross", 1, &other.ID))
	assert.ErrorIs(t, err, domain.ErrValidation)

	items, err := h.items.ListByProject(ctx, testutil.TestProjectID)
	require.NoError(t, err)
	assert.Len(t, items, 1, "nothing written on rejection")
}

func TestCreate_InputValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    CreateItemInput
		field string
	}{
		{"blank title", createInput("   ", 0, nil), "title"},
		{"missing level", CreateItemInput{CompanyID: "c", ProjectID: "p", Title: "x"}, "level"},
		{"progress over 100", func() CreateItemInput {
			in := createInput("x", 0, nil)
			in.Progress = 120
			return in
		}(), "progress"},
		{"parent not a uuid", createInput("x", 1, strPtr("nope")), "parent_id"},
		{"bad relation type", func() CreateItemInput {
			in := createInput("x", 0, nil)
			in.Predecessors = []PredecessorInput{{PredecessorID: "p", RelationType: "before"}}
			return in
		}(), "predecessors[0].relation_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.wbs.Create(ctx, editor(), tt.in)
			require.ErrorIs(t, err, domain.ErrValidation)
			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Contains(t, de.Meta["fields"], tt.field)
		})
	}
}

func TestCreate_WithPredecessors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	h.seed(t, a)

	in := createInput("B", 0, nil)
	in.Predecessors = []PredecessorInput{{PredecessorID: a.ID, RelationType: "ss", LagDays: -2}}
	b, err := h.wbs.Create(ctx, editor(), in)
	require.NoError(t, err)
	require.Len(t, b.Predecessors, 1)
	assert.Equal(t, domain.StartToStart, b.Predecessors[0].RelationType)
	assert.Equal(t, -2, b.Predecessors[0].LagDays)

	in = createInput("C", 0, nil)
	in.Predecessors = []PredecessorInput{{PredecessorID: "missing-item"}}
	_, err = h.wbs.Create(ctx, editor(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_Permissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.wbs.Create(ctx, viewer(), createInput("Nope", 0, nil))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.wbs.Create(ctx, permission.Unloaded(permission.PolicyDeny, nil), createInput("Nope", 0, nil))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.wbs.Create(ctx, permission.Unloaded(permission.PolicyAllow, nil), createInput("Open", 0, nil))
	assert.NoError(t, err, "allow policy reproduces fail-open")

	in := createInput("Foreign", 0, nil)
	in.CompanyID = "company-2"
	_, err = h.wbs.Create(ctx, editor(), in)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	items, err := h.items.ListByProject(ctx, testutil.TestProjectID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGetAndList_TenantFiltered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := testutil.NewTestItem(testutil.TestProjectID, "Mine")
	theirs := testutil.NewTestItem(testutil.TestProjectID, "Theirs", testutil.WithCompany("company-2"))
	h.seed(t, mine, theirs)

	got, err := h.wbs.Get(ctx, viewer(), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)

	_, err = h.wbs.Get(ctx, viewer(), theirs.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.wbs.Get(ctx, viewer(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := h.wbs.List(ctx, viewer(), testutil.TestProjectID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)
}

func TestList_SameOrderFromStoreAndCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var want []string
	for i := 11; i >= 0; i-- {
		h.seed(t, testutil.NewTestItem(testutil.TestProjectID, fmt.Sprintf("Item %d", i), testutil.WithSortOrder(i)))
	}

	first, err := h.wbs.List(ctx, viewer(), testutil.TestProjectID)
	require.NoError(t, err)
	require.Len(t, first, 12)
	for i, w := range first {
		assert.Equal(t, i, w.SortOrder)
		want = append(want, w.ID)
	}
	require.True(t, h.cache.Cached(testutil.TestProjectID))

	for i := 0; i < 20; i++ {
		items, err := h.wbs.List(ctx, viewer(), testutil.TestProjectID)
		require.NoError(t, err)
		got := make([]string, 0, len(items))
		for _, w := range items {
			got = append(got, w.ID)
		}
		require.Equal(t, want, got, "cached listing %d changed order", i)
	}
}

func TestLoadTree_NestsAndCaches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A", testutil.WithSortOrder(1))
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithParent(a), testutil.WithSortOrder(2))
	c := testutil.NewTestItem(testutil.TestProjectID, "C", testutil.WithParent(a), testutil.WithSortOrder(1))
	h.seed(t, a, b, c)

	view, err := h.wbs.LoadTree(ctx, viewer(), testutil.TestProjectID)
	require.NoError(t, err)
	assert.False(t, view.FromCache)
	require.Len(t, view.Forest.Roots, 1)
	root := view.Forest.Roots[0]
	assert.Equal(t, a.ID, root.ID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, c.ID, root.Children[0].ID, "sorted by sort_order")
	assert.Equal(t, b.ID, root.Children[1].ID)
	assert.Empty(t, view.Forest.Anomalies)

	again, err := h.wbs.LoadTree(ctx, viewer(), testutil.TestProjectID)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, 3, again.Forest.Count())
}

func TestLoadTree_ReportsDiagnostics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	x := testutil.NewTestItem(testutil.TestProjectID, "X")
	y := testutil.NewTestItem(testutil.TestProjectID, "Y", testutil.WithPredecessor(x.ID, domain.FinishToStart, 0))
	x.Predecessors = []domain.Predecessor{{PredecessorID: y.ID, RelationType: domain.FinishToStart}}
	orphan := testutil.NewTestItem(testutil.TestProjectID, "Orphan",
		testutil.WithParentID("deleted-parent"), testutil.WithLevel(2),
		testutil.WithPredecessor("deleted-item", domain.FinishToStart, 0))
	h.seed(t, x, y, orphan)

	view, err := h.wbs.LoadTree(ctx, viewer(), testutil.TestProjectID)
	require.NoError(t, err, "reading corrupt data never fails")
	assert.Len(t, view.Forest.Roots, 3)
	assert.Len(t, view.Cycles, 1)
	require.Len(t, view.Stale, 1)
	assert.Equal(t, "deleted-item", view.Stale[0].PredecessorID)
	assert.NotEmpty(t, view.Forest.AnomaliesOf(hierarchy.AnomalyMissingParent))
}

func TestLoadTree_RequiresView(t *testing.T) {
	h := newHarness(t)
	locked := permission.NewSet("u", testutil.TestCompanyID, []domain.UserPermission{
		*testutil.NewTestPermission("u", domain.ModuleProjects, domain.AccessNone),
	})
	_, err := h.wbs.LoadTree(context.Background(), locked, testutil.TestProjectID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdate_DescriptiveFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := testutil.NewTestItem(testutil.TestProjectID, "Old")
	h.seed(t, w)
	sub := h.subscribe(t)

	res, err := h.wbs.Update(ctx, editor(), w.ID, domain.Patch{
		"title":       "New",
		"progress":    float64(40),
		"is_expanded": "no",
		"children":    []any{},
	})
	require.NoError(t, err)
	assert.Equal(t, "New", res.Item.Title)
	assert.Equal(t, []string{"children"}, res.Patch.Ignored)
	assert.Contains(t, res.Patch.Coerced, "is_expanded")

	stored, err := h.items.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Progress)
	assert.False(t, stored.IsExpanded)
	assert.Equal(t, "false", string(stored.ExpandedRaw))

	events := drain(sub)
	require.Len(t, events, 1)
	assert.Equal(t, feed.EventUpdate, events[0].Type)
}

func TestUpdate_RejectsBeforeWriting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := testutil.NewTestItem(testutil.TestProjectID, "Keep")
	h.seed(t, w)

	_, err := h.wbs.Update(ctx, editor(), w.ID, domain.Patch{"title": "Changed", "linked_task_id": "t-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.wbs.Update(ctx, editor(), w.ID, domain.Patch{"title": "Changed", "colour": "red"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.wbs.Update(ctx, viewer(), w.ID, domain.Patch{"title": "Changed"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.wbs.Update(ctx, editor(), "missing", domain.Patch{"title": "Changed"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := h.items.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep", stored.Title)
}

func TestUpdate_ReparentRelevelsSubtree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B")
	b1 := testutil.NewTestItem(testutil.TestProjectID, "B1", testutil.WithParent(b))
	b2 := testutil.NewTestItem(testutil.TestProjectID, "B2", testutil.WithParent(b1))
	h.seed(t, a, b, b1, b2)
	sub := h.subscribe(t)

	res, err := h.wbs.Update(ctx, editor(), b.ID, domain.Patch{"parent_id": a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Item.Level)
	assert.Equal(t, 2, res.Relevelled)

	for id, want := range map[string]int{b.ID: 1, b1.ID: 2, b2.ID: 3} {
		got, err := h.items.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Level)
	}
	assert.Len(t, drain(sub), 3, "moved descendants are published too")

	res, err = h.wbs.Update(ctx, editor(), b.ID, domain.Patch{"parent_id": nil})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Item.Level)
}

func TestUpdate_RejectsMoveUnderOwnDescendant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithParent(a))
	c := testutil.NewTestItem(testutil.TestProjectID, "C", testutil.WithParent(b))
	h.seed(t, a, b, c)

	_, err := h.wbs.Update(ctx, editor(), a.ID, domain.Patch{"parent_id": c.ID})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "descendant")

	_, err = h.wbs.Update(ctx, editor(), a.ID, domain.Patch{"parent_id": a.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err := h.items.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentID)
}

func TestUpdate_LevelMustMatchPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithParent(a))
	h.seed(t, a, b)

	_, err := h.wbs.Update(ctx, editor(), b.ID, domain.Patch{"level": float64(4)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.wbs.Update(ctx, editor(), b.ID, domain.Patch{"level": float64(1), "title": "B!"})
	assert.NoError(t, err)
}

func TestUpdate_MalformedParentIsLoggedAndNulled(t *testing.T) {
	database := testutil.NewTestDB(t)
	items := repository.NewSQLiteWBSItemRepo(database)
	core, logs := observer.New(zap.WarnLevel)
	svc := NewWBSService(items, testutil.NewTestUoW(database), nil, nil, zap.New(core))
	ctx := context.Background()

	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithParent(a))
	require.NoError(t, items.Create(ctx, a))
	require.NoError(t, items.Create(ctx, b))

	res, err := svc.Update(ctx, editor(), b.ID, domain.Patch{"parent_id": map[string]any{"id": a.ID}})
	require.NoError(t, err)
	assert.Nil(t, res.Item.ParentID)
	assert.Equal(t, 0, res.Item.Level)
	assert.Equal(t, 1, logs.FilterMessage("malformed parent_id replaced with null").Len())
}

func TestUpdate_PredecessorCycleRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithPredecessor(a.ID, domain.FinishToStart, 0))
	h.seed(t, a, b)

	_, err := h.wbs.Update(ctx, editor(), a.ID, domain.Patch{
		"predecessors": []any{map[string]any{"predecessor_id": b.ID}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err := h.items.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Predecessors)
}

func TestUpdate_RollbackOnRelevelFailure(t *testing.T) {
	// Exec #1 = item update, #2 = subtree relevel.
	h := newHarnessWithUoW(t, func(database *sql.DB) db.UnitOfWork {
		return &testutil.FailOnNthExecUoW{DB: database, FailOn: 2, Err: fmt.Errorf("injected relevel failure")}
	})
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B")
	h.seed(t, a, b)
	_, err := h.wbs.LoadTree(ctx, viewer(), testutil.TestProjectID)
	require.NoError(t, err)
	require.True(t, h.cache.Cached(testutil.TestProjectID))

	_, err = h.wbs.Update(ctx, editor(), b.ID, domain.Patch{"parent_id": a.ID, "title": "Moved"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected relevel failure")

	stored, err := h.items.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentID, "parent unchanged after rollback")
	assert.Equal(t, "B", stored.Title)
	assert.False(t, h.cache.Cached(testutil.TestProjectID), "failed mutation invalidates the cache")
}

func TestDelete_RemovesSubtree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithParent(a))
	c := testutil.NewTestItem(testutil.TestProjectID, "C", testutil.WithParent(b))
	keep := testutil.NewTestItem(testutil.TestProjectID, "Keep")
	h.seed(t, a, b, c, keep)
	_, err := h.wbs.LoadTree(ctx, viewer(), testutil.TestProjectID)
	require.NoError(t, err)
	sub := h.subscribe(t)

	deleted, err := h.wbs.Delete(ctx, editor(), b.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, deleted)

	items, err := h.items.ListByProject(ctx, testutil.TestProjectID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	events := drain(sub)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, feed.EventDelete, ev.Type)
		assert.Nil(t, ev.Record)
	}

	cached, ok := h.cache.Items(testutil.TestProjectID)
	require.True(t, ok)
	assert.Len(t, cached, 2)

	_, err = h.wbs.Delete(ctx, editor(), b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_RollbackLeavesSubtree(t *testing.T) {
	h := newHarnessWithUoW(t, func(database *sql.DB) db.UnitOfWork {
		return &testutil.FailOnNthExecUoW{DB: database, FailOn: 1, Err: fmt.Errorf("injected delete failure")}
	})
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithParent(a))
	h.seed(t, a, b)

	_, err := h.wbs.Delete(ctx, editor(), a.ID)
	require.Error(t, err)

	items, err := h.items.ListByProject(ctx, testutil.TestProjectID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAddPredecessor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B")
	h.seed(t, a, b)

	w, err := h.wbs.AddPredecessor(ctx, editor(), b.ID, PredecessorInput{PredecessorID: a.ID})
	require.NoError(t, err)
	require.Len(t, w.Predecessors, 1)
	assert.Equal(t, domain.FinishToStart, w.Predecessors[0].RelationType)

	w, err = h.wbs.AddPredecessor(ctx, editor(), b.ID, PredecessorInput{PredecessorID: a.ID, RelationType: "ff", LagDays: 3})
	require.NoError(t, err)
	require.Len(t, w.Predecessors, 1, "re-adding updates in place")
	assert.Equal(t, domain.FinishToFinish, w.Predecessors[0].RelationType)
	assert.Equal(t, 3, w.Predecessors[0].LagDays)

	_, err = h.wbs.AddPredecessor(ctx, editor(), b.ID, PredecessorInput{PredecessorID: b.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAddPredecessor_CycleRejectedBeforeWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestItem(testutil.TestProjectID, "A")
	b := testutil.NewTestItem(testutil.TestProjectID, "B", testutil.WithPredecessor(a.ID, domain.FinishToStart, 0))
	c := testutil.NewTestItem(testutil.TestProjectID, "C", testutil.WithPredecessor(b.ID, domain.FinishToStart, 0))
	h.seed(t, a, b, c)
	sub := h.subscribe(t)

	_, err := h.wbs.AddPredecessor(ctx, editor(), a.ID, PredecessorInput{PredecessorID: c.ID})
	require.ErrorIs(t, err, domain.ErrValidation)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{a.ID, c.ID, b.ID, a.ID}, de.Meta["cycle"])

	stored, err := h.items.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Predecessors)
	assert.Empty(t, drain(sub), "rejected mutations publish nothing")
}

func TestPredecessors_CorruptPairCanBeRepaired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	x := testutil.NewTestItem(testutil.TestProjectID, "X")
	y := testutil.NewTestItem(testutil.TestProjectID, "Y", testutil.WithPredecessor(x.ID, domain.FinishToStart, 0))
	x.Predecessors = []domain.Predecessor{{PredecessorID: y.ID, RelationType: domain.FinishToStart}}
	z := testutil.NewTestItem(testutil.TestProjectID, "Z")
	h.seed(t, x, y, z)

	_, err := h.wbs.AddPredecessor(ctx, editor(), x.ID, PredecessorInput{PredecessorID: z.ID})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "existing predecessor cycle")

	w, err := h.wbs.RemovePredecessor(ctx, editor(), x.ID, y.ID)
	require.NoError(t, err)
	assert.Empty(t, w.Predecessors)

	_, err = h.wbs.AddPredecessor(ctx, editor(), x.ID, PredecessorInput{PredecessorID: z.ID})
	assert.NoError(t, err, "additions allowed once the cycle is gone")

	_, err = h.wbs.RemovePredecessor(ctx, editor(), x.ID, y.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	database := testutil.NewTestDB(t)
	items := repository.NewSQLiteWBSItemRepo(database)
	pub := &failingPublisher{}
	core, logs := observer.New(zap.WarnLevel)
	svc := NewWBSService(items, testutil.NewTestUoW(database), nil, pub, zap.New(core))

	w, err := svc.Create(context.Background(), editor(), createInput("Still saved", 0, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, 1, logs.FilterMessage("publishing change event failed").Len())

	_, err = items.GetByID(context.Background(), w.ID)
	assert.NoError(t, err)
}

type recordingObserver struct {
	events []UseCaseEvent
}

func (r *recordingObserver) ObserveUseCase(_ context.Context, ev UseCaseEvent) {
	r.events = append(r.events, ev)
}

func TestUseCaseObserver_RecordsOutcome(t *testing.T) {
	database := testutil.NewTestDB(t)
	obs := &recordingObserver{}
	svc := NewWBSService(repository.NewSQLiteWBSItemRepo(database), testutil.NewTestUoW(database), nil, nil, nil, obs)
	ctx := context.Background()

	_, err := svc.Create(ctx, editor(), createInput("Observed", 0, nil))
	require.NoError(t, err)
	_, err = svc.Create(ctx, viewer(), createInput("Refused", 0, nil))
	require.Error(t, err)

	require.Len(t, obs.events, 2)
	assert.Equal(t, "wbs-create", obs.events[0].Name)
	assert.True(t, obs.events[0].Success)
	assert.NotEmpty(t, obs.events[0].Fields["item_id"])
	assert.False(t, obs.events[1].Success)
	assert.ErrorIs(t, obs.events[1].Err, domain.ErrForbidden)
}
