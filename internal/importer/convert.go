package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/google/uuid"
)

// Converted is a validated outline ready for persistence. Items are in
// parent-before-child order.
type Converted struct {
	Items        []*domain.WBSItem
	RefIDs       map[string]string
	Predecessors int
}

// Convert transforms a validated ImportSchema into WBS items owned by
// companyID. Call ValidateImportSchema first; Convert assumes the schema is
// valid. Items without a wbs_id get an outline code from their position
// (1, 1.1, 1.2, 2, ...).
func Convert(schema *ImportSchema, companyID string, now time.Time) (*Converted, error) {
	d := schema.Defaults
	if d == nil {
		d = &DefaultsImport{}
	}

	refMap := make(map[string]string) // ref -> UUID
	byRef := make(map[string]*domain.WBSItem)
	childCount := make(map[string]int) // parent ref ("" for roots) -> children so far

	items := make([]*domain.WBSItem, 0, len(schema.Items))
	for _, in := range schema.Items {
		realID := uuid.New().String()
		refMap[in.Ref] = realID

		parentRef := ""
		if in.ParentRef != nil {
			parentRef = *in.ParentRef
		}
		var parent *domain.WBSItem
		if parentRef != "" {
			p, ok := byRef[parentRef]
			if !ok {
				return nil, fmt.Errorf("parent_ref %q not found for item %q", parentRef, in.Ref)
			}
			parent = p
		}

		childCount[parentRef]++
		position := childCount[parentRef]

		expanded := domain.BoolFromPtrWithDefault(true, in.Expanded, d.Expanded)
		w := &domain.WBSItem{
			ID:             realID,
			ProjectID:      strings.TrimSpace(schema.ProjectID),
			CompanyID:      companyID,
			WBSID:          in.WBSID,
			SortOrder:      domain.IntFromPtrWithDefault(position, in.Order),
			Title:          strings.TrimSpace(in.Title),
			Description:    in.Description,
			Category:       domain.CoalesceStr(in.Category, d.Category),
			Priority:       domain.CoalesceStr(in.Priority, d.Priority),
			Status:         domain.CoalesceStr(in.Status, d.Status),
			Health:         domain.CoalesceStr(in.Health, d.Health),
			ProgressStatus: domain.CoalesceStr(in.ProgressStatus, d.ProgressStatus),
			AtRisk:         in.AtRisk,
			StartDate:      parseOptionalDate(in.StartDate),
			EndDate:        parseOptionalDate(in.EndDate),
			Duration:       in.Duration,
			BudgetedCost:   in.BudgetedCost,
			ActualCost:     in.ActualCost,
			Progress:       domain.IntFromPtrWithDefault(0, in.Progress),
			Predecessors:   []domain.Predecessor{},
			LinkedTasks:    []string{},
			ExpandedRaw:    []byte(domain.FlagJSON(expanded)),
			IsExpanded:     expanded,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if parent != nil {
			pid := parent.ID
			w.ParentID = &pid
			w.Level = parent.Level + 1
			if w.WBSID == "" && parent.WBSID != "" {
				w.WBSID = parent.WBSID + "." + strconv.Itoa(position)
			}
		} else if w.WBSID == "" {
			w.WBSID = strconv.Itoa(position)
		}

		byRef[in.Ref] = w
		items = append(items, w)
	}

	for _, p := range schema.Predecessors {
		predID, ok := refMap[p.PredecessorRef]
		if !ok {
			return nil, fmt.Errorf("predecessor_ref %q not found", p.PredecessorRef)
		}
		succ, ok := byRef[p.SuccessorRef]
		if !ok {
			return nil, fmt.Errorf("successor_ref %q not found", p.SuccessorRef)
		}
		rt, err := domain.ParseRelationType(p.Type)
		if err != nil {
			return nil, err
		}
		succ.Predecessors = append(succ.Predecessors, domain.Predecessor{
			PredecessorID: predID,
			RelationType:  rt,
			LagDays:       p.LagDays,
		})
	}

	return &Converted{
		Items:        items,
		RefIDs:       refMap,
		Predecessors: len(schema.Predecessors),
	}, nil
}

func parseOptionalDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}
