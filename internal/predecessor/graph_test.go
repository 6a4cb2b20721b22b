package predecessor

import (
	"testing"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, preds ...string) *domain.WBSItem {
	w := testutil.NewTestItem(testutil.TestProjectID, id)
	w.ID = id
	for _, p := range preds {
		w.Predecessors = append(w.Predecessors, domain.Predecessor{PredecessorID: p, RelationType: domain.FinishToStart})
	}
	return w
}

func TestValidateAdd_AcceptsAcyclic(t *testing.T) {
	g := New([]*domain.WBSItem{item("a"), item("b", "a"), item("c", "b")})

	assert.NoError(t, g.ValidateAdd("c", "a"), "redundant but acyclic")
}

func TestValidateAdd_RejectsCycle(t *testing.T) {
	g := New([]*domain.WBSItem{item("a"), item("b", "a"), item("c", "b")})

	err := g.ValidateAdd("a", "c")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "a -> c -> b -> a")

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{"a", "c", "b", "a"}, de.Meta["cycle"])
}

func TestValidateAdd_RejectsSelfAndUnknown(t *testing.T) {
	g := New([]*domain.WBSItem{item("a")})

	assert.ErrorIs(t, g.ValidateAdd("a", "a"), domain.ErrValidation)
	err := g.ValidateAdd("a", "ghost")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "not an item of this project")
}

func TestStale_ExcludedFromWalks(t *testing.T) {
	g := New([]*domain.WBSItem{item("a", "deleted"), item("b", "a")})

	assert.Equal(t, []StaleRef{{ItemID: "a", PredecessorID: "deleted"}}, g.Stale())
	assert.Equal(t, []string{"deleted"}, g.StaleFor("a"))
	assert.Empty(t, g.StaleFor("b"))
	assert.Error(t, g.ValidateAdd("a", "b"), "b depends on a")
	assert.False(t, g.Has("deleted"))
}

func TestCorruptPair_ReadSucceedsAndCycleIsReported(t *testing.T) {
	// X has predecessor Y and Y has predecessor X.
	g := New([]*domain.WBSItem{item("x", "y"), item("y", "x"), item("z")})

	assert.Equal(t, []string{"x", "y", "x"}, g.CyclesThrough("x"))
	assert.Equal(t, []string{"y", "x", "y"}, g.CyclesThrough("y"))
	assert.Nil(t, g.CyclesThrough("z"))
	assert.Equal(t, [][]string{{"x", "y", "x"}}, g.Cycles())

	err := g.ValidateSet("x", []domain.Predecessor{{PredecessorID: "y"}})
	assert.ErrorIs(t, err, domain.ErrValidation, "keeping the cyclic edge is rejected")
	assert.NoError(t, g.ValidateSet("x", []domain.Predecessor{}), "dropping it is allowed")
}

func TestCycles_MultipleGroupsAndSelfLoop(t *testing.T) {
	g := New([]*domain.WBSItem{
		item("a", "b"), item("b", "c"), item("c", "a"),
		item("m", "m"),
		item("p"), item("q", "p"),
	})

	cycles := g.Cycles()
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0])
	assert.Equal(t, []string{"m", "m"}, cycles[1])
}

func TestValidateSet(t *testing.T) {
	g := New([]*domain.WBSItem{item("a"), item("b", "a"), item("c", "gone")})

	assert.NoError(t, g.ValidateSet("c", []domain.Predecessor{
		{PredecessorID: "b", RelationType: domain.StartToStart, LagDays: -3},
		{PredecessorID: "gone"},
	}), "an existing stale ref may stay")

	err := g.ValidateSet("c", []domain.Predecessor{{PredecessorID: "b"}, {PredecessorID: "b"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "listed twice")

	err = g.ValidateSet("c", []domain.Predecessor{{PredecessorID: "new-ghost"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = g.ValidateSet("c", []domain.Predecessor{{PredecessorID: "a", RelationType: "before"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = g.ValidateSet("a", []domain.Predecessor{{PredecessorID: "b"}})
	assert.ErrorIs(t, err, domain.ErrValidation, "b already depends on a")

	err = g.ValidateSet("a", []domain.Predecessor{{PredecessorID: "a"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
