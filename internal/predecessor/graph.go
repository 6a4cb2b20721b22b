// Package predecessor validates the dependency references carried on WBS
// items. It stores and checks relations; it does not schedule.
package predecessor

import (
	"slices"
	"strings"

	"github.com/alexanderramin/wbs/internal/domain"
)

// StaleRef is a predecessor reference to an item that no longer exists.
type StaleRef struct {
	ItemID        string
	PredecessorID string
}

// Graph is a read-only view of one project's predecessor edges. An edge
// item -> p means item depends on p.
type Graph struct {
	edges map[string][]string
	known map[string]bool
	stale []StaleRef
}

// New indexes items. Dangling references are kept out of the edge set and
// reported by Stale.
func New(items []*domain.WBSItem) *Graph {
	g := &Graph{
		edges: make(map[string][]string, len(items)),
		known: make(map[string]bool, len(items)),
	}
	for _, it := range items {
		if it != nil {
			g.known[it.ID] = true
		}
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		for _, p := range it.Predecessors {
			if !g.known[p.PredecessorID] {
				g.stale = append(g.stale, StaleRef{ItemID: it.ID, PredecessorID: p.PredecessorID})
				continue
			}
			if !slices.Contains(g.edges[it.ID], p.PredecessorID) {
				g.edges[it.ID] = append(g.edges[it.ID], p.PredecessorID)
			}
		}
	}
	return g
}

// Stale returns every dangling reference, in input order.
func (g *Graph) Stale() []StaleRef {
	return append([]StaleRef(nil), g.stale...)
}

// StaleFor returns the dangling predecessor ids of one item.
func (g *Graph) StaleFor(id string) []string {
	var out []string
	for _, s := range g.stale {
		if s.ItemID == id {
			out = append(out, s.PredecessorID)
		}
	}
	return out
}

// Has reports whether id is an item of the project.
func (g *Graph) Has(id string) bool { return g.known[id] }

// ValidateAdd rejects candidate as a new predecessor of current when it is
// current itself, unknown, or already (transitively) depends on current.
func (g *Graph) ValidateAdd(current, candidate string) error {
	if current == candidate {
		return domain.NewValidationError("item %s cannot be its own predecessor", current)
	}
	if !g.known[candidate] {
		return domain.NewValidationError("predecessor %s is not an item of this project", candidate)
	}
	if path := g.pathTo(candidate, current); path != nil {
		cycle := append([]string{current}, path...)
		return domain.NewValidationError("adding %s as predecessor of %s creates a cycle: %s",
			candidate, current, strings.Join(cycle, " -> ")).WithMeta("cycle", cycle)
	}
	return nil
}

// ValidateSet checks a full replacement list for current. References that
// are already stale on the item may stay; new ones must resolve.
func (g *Graph) ValidateSet(current string, preds []domain.Predecessor) error {
	alreadyStale := map[string]bool{}
	for _, id := range g.StaleFor(current) {
		alreadyStale[id] = true
	}
	seen := make(map[string]bool, len(preds))
	for i, p := range preds {
		if _, err := domain.ParseRelationType(string(p.RelationType)); err != nil {
			return err
		}
		if seen[p.PredecessorID] {
			return domain.NewValidationError("predecessors[%d]: %s listed twice", i, p.PredecessorID)
		}
		seen[p.PredecessorID] = true
		if !g.known[p.PredecessorID] && alreadyStale[p.PredecessorID] {
			continue
		}
		if err := g.ValidateAdd(current, p.PredecessorID); err != nil {
			return err
		}
	}
	return nil
}

// pathTo returns the predecessor chain from -> ... -> to, or nil when to is
// not reachable. Breadth-first so the reported chain is the shortest.
func (g *Graph) pathTo(from, to string) []string {
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var path []string
			for n := cur; n != ""; n = prev[n] {
				path = append(path, n)
				if n == from {
					break
				}
			}
			slices.Reverse(path)
			return path
		}
		for _, next := range g.edges[cur] {
			if _, ok := prev[next]; ok {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

// CyclesThrough returns the shortest existing cycle that passes through id
// as id -> ... -> id, or nil.
func (g *Graph) CyclesThrough(id string) []string {
	for _, next := range g.edges[id] {
		if next == id {
			return []string{id, id}
		}
	}
	var best []string
	for _, next := range g.edges[id] {
		path := g.pathTo(next, id)
		if path != nil && (best == nil || len(path) < len(best)-1) {
			best = append([]string{id}, path...)
		}
	}
	return best
}

// Cycles returns one cycle per strongly connected group of items that
// depend on each other, each starting at the group's smallest id.
// Groups are ordered by that id.
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, comp := range g.components() {
		start := slices.Min(comp)
		if c := g.CyclesThrough(start); c != nil {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return out
}

// components runs Tarjan's algorithm and returns the components that
// contain a cycle (size > 1 or a self edge).
func (g *Graph) components() [][]string {
	ids := make([]string, 0, len(g.known))
	for id := range g.known {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	index := 0
	indices := map[string]int{}
	low := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var out [][]string

	var strong func(v string)
	strong = func(v string) {
		indices[v] = index
		low[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, seen := indices[w]; !seen {
				strong(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], indices[w])
			}
		}

		if low[v] == indices[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 || slices.Contains(g.edges[v], v) {
				out = append(out, comp)
			}
		}
	}
	for _, id := range ids {
		if _, seen := indices[id]; !seen {
			strong(id)
		}
	}
	return out
}
