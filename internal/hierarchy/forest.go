package hierarchy

import "github.com/alexanderramin/wbs/internal/domain"

type frame struct {
	item  *domain.WBSItem
	depth int
}

// Walk visits every item in pre-order with its depth (0 for roots).
func (f *Forest) Walk(fn func(w *domain.WBSItem, depth int)) {
	stack := make([]frame, 0, len(f.Roots))
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{f.Roots[i], 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(top.item, top.depth)
		for i := len(top.item.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{top.item.Children[i], top.depth + 1})
		}
	}
}

// Count returns the number of items in the forest.
func (f *Forest) Count() int {
	n := 0
	f.Walk(func(*domain.WBSItem, int) { n++ })
	return n
}

// Flatten returns the items in pre-order.
func (f *Forest) Flatten() []*domain.WBSItem {
	out := make([]*domain.WBSItem, 0)
	f.Walk(func(w *domain.WBSItem, _ int) { out = append(out, w) })
	return out
}

// Find returns the first item with id, or nil.
func (f *Forest) Find(id string) *domain.WBSItem {
	var found *domain.WBSItem
	f.Walk(func(w *domain.WBSItem, _ int) {
		if found == nil && w.ID == id {
			found = w
		}
	})
	return found
}

// Descendants returns the ids under id, excluding id itself.
func (f *Forest) Descendants(id string) map[string]bool {
	out := map[string]bool{}
	root := f.Find(id)
	if root == nil {
		return out
	}
	sub := &Forest{Roots: root.Children}
	sub.Walk(func(w *domain.WBSItem, _ int) { out[w.ID] = true })
	return out
}

// AnomaliesOf filters anomalies by kind.
func (f *Forest) AnomaliesOf(kind AnomalyKind) []Anomaly {
	var out []Anomaly
	for _, a := range f.Anomalies {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
