package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/predecessor"
)

// ValidateImportSchema checks the import schema for errors before conversion.
// Returns a slice of all validation errors found.
func ValidateImportSchema(schema *ImportSchema) []error {
	var errs []error

	if strings.TrimSpace(schema.ProjectID) == "" {
		errs = append(errs, fmt.Errorf("project_id is required"))
	}
	if len(schema.Items) == 0 {
		errs = append(errs, fmt.Errorf("items: at least one item is required"))
	}

	refs := make(map[string]bool)
	errs = append(errs, validateItems(schema.Items, refs)...)
	errs = append(errs, validatePredecessors(schema.Predecessors, refs)...)

	return errs
}

func validateItems(items []ItemImport, refs map[string]bool) []error {
	var errs []error

	for i, it := range items {
		prefix := fmt.Sprintf("items[%d]", i)

		if it.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if refs[it.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref: duplicate ref %q", prefix, it.Ref))
		}

		if strings.TrimSpace(it.Title) == "" {
			errs = append(errs, fmt.Errorf("%s.title is required", prefix))
		}

		if it.ParentRef != nil && *it.ParentRef != "" {
			if *it.ParentRef == it.Ref {
				errs = append(errs, fmt.Errorf("%s.parent_ref: item cannot be its own parent", prefix))
			} else if !refs[*it.ParentRef] {
				errs = append(errs, fmt.Errorf("%s.parent_ref: ref %q not found (must appear earlier in items list)", prefix, *it.ParentRef))
			}
		}
		if it.Ref != "" {
			refs[it.Ref] = true
		}

		if it.Progress != nil && (*it.Progress < 0 || *it.Progress > 100) {
			errs = append(errs, fmt.Errorf("%s.progress must be between 0 and 100", prefix))
		}
		if it.Duration != nil && *it.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s.duration must not be negative", prefix))
		}

		errs = append(errs, validateOptionalDate(prefix+".start_date", it.StartDate)...)
		errs = append(errs, validateOptionalDate(prefix+".end_date", it.EndDate)...)
		start, end := parseOptionalDate(it.StartDate), parseOptionalDate(it.EndDate)
		if start != nil && end != nil && end.Before(*start) {
			errs = append(errs, fmt.Errorf("%s.end_date %q is before start_date %q", prefix, *it.EndDate, *it.StartDate))
		}
	}

	return errs
}

func validatePredecessors(preds []PredecessorImport, refs map[string]bool) []error {
	var errs []error
	seen := make(map[[2]string]bool)

	for i, p := range preds {
		prefix := fmt.Sprintf("predecessors[%d]", i)

		if p.PredecessorRef == "" {
			errs = append(errs, fmt.Errorf("%s.predecessor_ref is required", prefix))
		} else if !refs[p.PredecessorRef] {
			errs = append(errs, fmt.Errorf("%s.predecessor_ref: ref %q not found in items", prefix, p.PredecessorRef))
		}

		if p.SuccessorRef == "" {
			errs = append(errs, fmt.Errorf("%s.successor_ref is required", prefix))
		} else if !refs[p.SuccessorRef] {
			errs = append(errs, fmt.Errorf("%s.successor_ref: ref %q not found in items", prefix, p.SuccessorRef))
		}

		if p.PredecessorRef != "" && p.PredecessorRef == p.SuccessorRef {
			errs = append(errs, fmt.Errorf("%s: self-dependency (predecessor_ref == successor_ref == %q)", prefix, p.PredecessorRef))
		}

		key := [2]string{p.SuccessorRef, p.PredecessorRef}
		if seen[key] {
			errs = append(errs, fmt.Errorf("%s: duplicate link %q -> %q", prefix, p.PredecessorRef, p.SuccessorRef))
		}
		seen[key] = true

		if _, err := domain.ParseRelationType(p.Type); err != nil {
			errs = append(errs, fmt.Errorf("%s.type: invalid value %q", prefix, p.Type))
		}
	}

	if len(preds) > 1 {
		errs = append(errs, detectCycles(preds)...)
	}

	return errs
}

// detectCycles runs the predecessor graph over placeholder items keyed by
// ref, so an outline is checked with the same rules as stored items.
func detectCycles(preds []PredecessorImport) []error {
	byRef := make(map[string]*domain.WBSItem)
	var items []*domain.WBSItem
	node := func(ref string) *domain.WBSItem {
		if w, ok := byRef[ref]; ok {
			return w
		}
		w := &domain.WBSItem{ID: ref}
		byRef[ref] = w
		items = append(items, w)
		return w
	}
	for _, p := range preds {
		if p.PredecessorRef == "" || p.SuccessorRef == "" || p.PredecessorRef == p.SuccessorRef {
			continue
		}
		node(p.PredecessorRef)
		succ := node(p.SuccessorRef)
		succ.Predecessors = append(succ.Predecessors, domain.Predecessor{PredecessorID: p.PredecessorRef})
	}

	var errs []error
	for _, cycle := range predecessor.New(items).Cycles() {
		errs = append(errs, fmt.Errorf("circular dependency detected: %s", strings.Join(cycle, " -> ")))
	}
	return errs
}

func validateOptionalDate(field string, dateStr *string) []error {
	if dateStr == nil || *dateStr == "" {
		return nil
	}
	if _, err := time.Parse(domain.DateLayout, *dateStr); err != nil {
		return []error{fmt.Errorf("%s: invalid date format %q (expected YYYY-MM-DD)", field, *dateStr)}
	}
	return nil
}
