// Package hierarchy turns the flat list of a project's WBS items into an
// ordered forest. It never fails: malformed records are repaired in the
// output and reported as anomalies.
package hierarchy

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/alexanderramin/wbs/internal/domain"
	"go.uber.org/zap"
)

type AnomalyKind string

const (
	AnomalyMissingParent  AnomalyKind = "missing_parent"
	AnomalySelfParent     AnomalyKind = "self_parent"
	AnomalyParentCycle    AnomalyKind = "parent_cycle"
	AnomalyExpandedShape  AnomalyKind = "non_boolean_expanded"
	AnomalyLevelMismatch  AnomalyKind = "level_mismatch"
	AnomalyDuplicateWBSID AnomalyKind = "duplicate_wbs_id"
	AnomalyDuplicateID    AnomalyKind = "duplicate_id"
)

// Anomaly is one repaired or tolerated inconsistency in the input.
type Anomaly struct {
	Kind   AnomalyKind
	ItemID string
	Detail string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s %s: %s", a.Kind, a.ItemID, a.Detail)
}

// Forest is the built tree. Roots and every Children slice are ordered by
// sort_order, then created_at, then id.
type Forest struct {
	Roots     []*domain.WBSItem
	Anomalies []Anomaly
}

// Build indexes items by id, attaches each to its parent and sorts every
// sibling group. Input items are not modified; the forest holds clones.
// Items whose parent is absent, themselves, or part of a parent loop become
// roots. Levels are recomputed from depth.
func Build(items []*domain.WBSItem, log *zap.Logger) *Forest {
	if log == nil {
		log = zap.NewNop()
	}
	b := &builder{}
	b.index(items)
	b.resolveParents()
	b.breakCycles()
	f := b.assemble()
	b.relevel(f)
	b.checkWBSIDs()
	f.Anomalies = b.anomalies

	for _, a := range f.Anomalies {
		log.Warn("wbs hierarchy anomaly",
			zap.String("kind", string(a.Kind)),
			zap.String("item_id", a.ItemID),
			zap.String("detail", a.Detail),
		)
	}
	return f
}

type builder struct {
	nodes     []*domain.WBSItem
	byID      map[string]int
	parent    []int
	anomalies []Anomaly
}

func (b *builder) report(kind AnomalyKind, id, format string, args ...any) {
	b.anomalies = append(b.anomalies, Anomaly{Kind: kind, ItemID: id, Detail: fmt.Sprintf(format, args...)})
}

func (b *builder) index(items []*domain.WBSItem) {
	b.nodes = make([]*domain.WBSItem, 0, len(items))
	b.byID = make(map[string]int, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		n := it.Clone()
		i := len(b.nodes)
		b.nodes = append(b.nodes, n)

		if _, dup := b.byID[n.ID]; dup {
			b.report(AnomalyDuplicateID, n.ID, "id appears more than once; later copy kept without children")
		} else {
			b.byID[n.ID] = i
		}

		val, canonical := domain.NormalizeExpanded(n.ExpandedRaw)
		if !canonical {
			b.report(AnomalyExpandedShape, n.ID, "is_expanded stored as %s, read as %t", string(n.ExpandedRaw), val)
		}
		n.IsExpanded = val
	}
}

func (b *builder) resolveParents() {
	b.parent = make([]int, len(b.nodes))
	for i, n := range b.nodes {
		b.parent[i] = -1
		key := n.ParentKey()
		if key == "" {
			continue
		}
		if key == n.ID {
			b.report(AnomalySelfParent, n.ID, "item is its own parent; promoted to root")
			continue
		}
		p, ok := b.byID[key]
		if !ok {
			b.report(AnomalyMissingParent, n.ID, "parent %s not in project; promoted to root", key)
			continue
		}
		b.parent[i] = p
	}
}

// breakCycles walks each parent chain once. A chain that re-enters itself
// is a loop; its lowest-ordered member is promoted to root.
func (b *builder) breakCycles() {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make([]int, len(b.nodes))
	for start := range b.nodes {
		var path []int
		cur := start
		for cur >= 0 && state[cur] == unvisited {
			state[cur] = inProgress
			path = append(path, cur)
			cur = b.parent[cur]
		}
		if cur >= 0 && state[cur] == inProgress {
			loopStart := slices.Index(path, cur)
			loop := path[loopStart:]
			victim := slices.MinFunc(loop, func(x, y int) int { return CompareItems(b.nodes[x], b.nodes[y]) })
			ids := make([]string, len(loop))
			for k, idx := range loop {
				ids[k] = b.nodes[idx].ID
			}
			b.report(AnomalyParentCycle, b.nodes[victim].ID, "parent loop %v; promoted to root", ids)
			b.parent[victim] = -1
		}
		for _, idx := range path {
			state[idx] = done
		}
	}
}

func (b *builder) assemble() *Forest {
	f := &Forest{Roots: []*domain.WBSItem{}}
	for i, n := range b.nodes {
		n.Children = nil
		if b.parent[i] < 0 {
			// Promoted items keep their stored parent_id for display.
			f.Roots = append(f.Roots, n)
			continue
		}
		p := b.nodes[b.parent[i]]
		p.Children = append(p.Children, n)
	}
	slices.SortFunc(f.Roots, CompareItems)
	for _, n := range b.nodes {
		if len(n.Children) > 1 {
			slices.SortFunc(n.Children, CompareItems)
		}
	}
	return f
}

func (b *builder) relevel(f *Forest) {
	f.Walk(func(n *domain.WBSItem, depth int) {
		if n.Level != depth {
			b.report(AnomalyLevelMismatch, n.ID, "stored level %d, depth %d", n.Level, depth)
			n.Level = depth
		}
	})
}

func (b *builder) checkWBSIDs() {
	seen := make(map[string]string, len(b.nodes))
	for _, n := range b.nodes {
		if n.WBSID == "" {
			continue
		}
		if first, ok := seen[n.WBSID]; ok {
			b.report(AnomalyDuplicateWBSID, n.ID, "wbs_id %q already used by %s", n.WBSID, first)
			continue
		}
		seen[n.WBSID] = n.ID
	}
}

// CompareItems orders siblings: sort_order, then created_at, then id. It is
// also the storage order of a project listing.
func CompareItems(a, b *domain.WBSItem) int {
	if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
