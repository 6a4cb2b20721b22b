package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/cache"
	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/hierarchy"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/predecessor"
	"github.com/alexanderramin/wbs/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type wbsService struct {
	items    repository.WBSItemRepo
	uow      db.UnitOfWork
	cache    *cache.ProjectCache
	events   feed.Publisher
	log      *zap.Logger
	observer UseCaseObserver
}

// NewWBSService wires the item use cases. items is used for reads outside
// a transaction; writes build tx-scoped repositories inside uow. A nil
// cache or publisher disables that concern.
func NewWBSService(
	items repository.WBSItemRepo,
	uow db.UnitOfWork,
	projectCache *cache.ProjectCache,
	events feed.Publisher,
	log *zap.Logger,
	observers ...UseCaseObserver,
) WBSService {
	if log == nil {
		log = zap.NewNop()
	}
	if events == nil {
		events = feed.Nop{}
	}
	return &wbsService{
		items:    items,
		uow:      uow,
		cache:    projectCache,
		events:   events,
		log:      log.Named("wbs"),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *wbsService) Create(ctx context.Context, perms *permission.Set, in CreateItemInput) (item *domain.WBSItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"project_id": in.ProjectID}
	defer observe(ctx, s.observer, "wbs-create", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	if err = validateInput(in); err != nil {
		return nil, err
	}
	if err = checkTenant(perms, in.CompanyID); err != nil {
		return nil, err
	}

	item, err = newItemFromInput(in, startedAt)
	if err != nil {
		return nil, err
	}
	fields["item_id"] = item.ID

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txItems := repository.NewSQLiteWBSItemRepo(tx)

		expected := 0
		if item.ParentID != nil {
			parent, err := lookupParent(ctx, txItems, item.ProjectID, *item.ParentID)
			if err != nil {
				return err
			}
			expected = parent.Level + 1
		}
		if item.Level != expected {
			return domain.NewValidationError("level must be %d for this position, got %d", expected, item.Level).
				WithMeta("expected_level", expected)
		}

		if len(item.Predecessors) > 0 {
			siblings, err := txItems.ListByProject(ctx, item.ProjectID)
			if err != nil {
				return err
			}
			graph := predecessor.New(append(siblings, item))
			if err := graph.ValidateSet(item.ID, item.Predecessors); err != nil {
				return err
			}
		}
		return txItems.Create(ctx, item)
	})
	if err != nil {
		s.invalidate(item.ProjectID)
		return nil, err
	}

	s.applyLocal(item)
	s.publish(ctx, feed.ItemEvent(feed.EventInsert, item))
	return item, nil
}

func newItemFromInput(in CreateItemInput, now time.Time) (*domain.WBSItem, error) {
	preds := make([]domain.Predecessor, 0, len(in.Predecessors))
	for _, p := range in.Predecessors {
		rt, err := domain.ParseRelationType(p.RelationType)
		if err != nil {
			return nil, err
		}
		preds = append(preds, domain.Predecessor{
			PredecessorID: strings.TrimSpace(p.PredecessorID),
			RelationType:  rt,
			LagDays:       p.LagDays,
		})
	}
	expanded := true
	if in.IsExpanded != nil {
		expanded = *in.IsExpanded
	}
	var parentID *string
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		p := strings.TrimSpace(*in.ParentID)
		parentID = &p
	}

	return &domain.WBSItem{
		ID:             uuid.New().String(),
		ProjectID:      in.ProjectID,
		CompanyID:      in.CompanyID,
		ParentID:       parentID,
		WBSID:          in.WBSID,
		Level:          *in.Level,
		SortOrder:      in.SortOrder,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Category:       in.Category,
		Priority:       in.Priority,
		Status:         in.Status,
		Health:         in.Health,
		ProgressStatus: in.ProgressStatus,
		AtRisk:         in.AtRisk,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Duration:       in.Duration,
		BudgetedCost:   in.BudgetedCost,
		ActualCost:     in.ActualCost,
		Progress:       in.Progress,
		Predecessors:   preds,
		ExpandedRaw:    []byte(domain.FlagJSON(expanded)),
		IsExpanded:     expanded,
		LinkedTasks:    []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// lookupParent loads a prospective parent. A missing or foreign parent is a
// validation failure of the child, not a not-found of the request.
func lookupParent(ctx context.Context, items repository.WBSItemRepo, projectID, parentID string) (*domain.WBSItem, error) {
	parent, err := items.GetByID(ctx, parentID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NewValidationError("parent %s does not exist", parentID)
		}
		return nil, err
	}
	if parent.ProjectID != projectID {
		return nil, domain.NewValidationError("parent %s belongs to another project", parentID)
	}
	return parent, nil
}

func (s *wbsService) Get(ctx context.Context, perms *permission.Set, id string) (*domain.WBSItem, error) {
	if err := perms.RequireView(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTenant(perms, item.CompanyID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *wbsService) List(ctx context.Context, perms *permission.Set, projectID string) ([]*domain.WBSItem, error) {
	if err := perms.RequireView(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	items, _, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return visibleTo(perms, items), nil
}

// LoadTree never fails on malformed data: orphans, parent loops, cycles
// and stale predecessors come back as diagnostics.
func (s *wbsService) LoadTree(ctx context.Context, perms *permission.Set, projectID string) (view *TreeView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"project_id": projectID}
	defer observe(ctx, s.observer, "wbs-load-tree", startedAt, fields, &err)

	if err = perms.RequireView(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	items, fromCache, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items = visibleTo(perms, items)

	forest := hierarchy.Build(items, s.log)
	graph := predecessor.New(items)
	view = &TreeView{
		ProjectID: projectID,
		Forest:    forest,
		Stale:     graph.Stale(),
		Cycles:    graph.Cycles(),
		FromCache: fromCache,
	}
	fields["items"] = len(items)
	fields["anomalies"] = len(forest.Anomalies)
	fields["from_cache"] = fromCache
	return view, nil
}

// load serves a project from the cache, filling it from the store on a miss.
func (s *wbsService) load(ctx context.Context, projectID string) ([]*domain.WBSItem, bool, error) {
	if s.cache != nil {
		if items, ok := s.cache.Items(projectID); ok {
			return items, true, nil
		}
	}
	items, err := s.items.ListByProject(ctx, projectID)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		s.cache.Load(projectID, items)
	}
	return items, false, nil
}

func (s *wbsService) Update(ctx context.Context, perms *permission.Set, id string, patch domain.Patch) (result *UpdateResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"item_id": id, "fields": len(patch)}
	defer observe(ctx, s.observer, "wbs-update", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}

	var projectID string
	var moved []*domain.WBSItem
	result = &UpdateResult{}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txItems := repository.NewSQLiteWBSItemRepo(tx)

		item, err := txItems.GetByID(ctx, id)
		if err != nil {
			return err
		}
		projectID = item.ProjectID
		if err := checkTenant(perms, item.CompanyID); err != nil {
			return err
		}

		res, err := patch.Apply(item)
		if err != nil {
			return err
		}
		result.Patch = res
		if slices.Contains(res.Coerced, "parent_id") {
			s.log.Warn("malformed parent_id replaced with null",
				zap.String("item_id", id),
				zap.Any("value", patch["parent_id"]),
			)
		}

		_, levelPatched := patch["level"]
		if res.ParentChanged || levelPatched {
			expected := 0
			if item.ParentID != nil {
				parent, err := lookupParent(ctx, txItems, item.ProjectID, *item.ParentID)
				if err != nil {
					return err
				}
				if res.ParentChanged {
					subtree, err := txItems.ListSubtreeIDs(ctx, item.ID)
					if err != nil {
						return err
					}
					if slices.Contains(subtree, parent.ID) {
						return domain.NewValidationError("cannot move %s under its own descendant %s", item.ID, parent.ID)
					}
				}
				expected = parent.Level + 1
			}
			if levelPatched && item.Level != expected {
				return domain.NewValidationError("level must be %d for this position, got %d", expected, item.Level).
					WithMeta("expected_level", expected)
			}
			item.Level = expected
		}

		if res.PredecessorsChanged {
			projectItems, err := txItems.ListByProject(ctx, item.ProjectID)
			if err != nil {
				return err
			}
			if err := predecessor.New(projectItems).ValidateSet(item.ID, item.Predecessors); err != nil {
				return err
			}
		}

		if err := txItems.Update(ctx, item); err != nil {
			return err
		}

		if res.ParentChanged {
			n, err := txItems.RelevelSubtree(ctx, item.ID, item.Level)
			if err != nil {
				return err
			}
			result.Relevelled = int(n) - 1
			if result.Relevelled > 0 {
				ids, err := txItems.ListSubtreeIDs(ctx, item.ID)
				if err != nil {
					return err
				}
				ids = slices.DeleteFunc(ids, func(sid string) bool { return sid == item.ID })
				if moved, err = txItems.ListByIDs(ctx, ids); err != nil {
					return err
				}
			}
		}
		result.Item = item
		return nil
	})
	if err != nil {
		if projectID != "" {
			s.invalidate(projectID)
		}
		return nil, err
	}

	fields["applied"] = result.Patch.Applied
	s.applyLocal(result.Item)
	s.publish(ctx, feed.ItemEvent(feed.EventUpdate, result.Item))
	for _, w := range moved {
		s.applyLocal(w)
		s.publish(ctx, feed.ItemEvent(feed.EventUpdate, w))
	}
	return result, nil
}

func (s *wbsService) Delete(ctx context.Context, perms *permission.Set, id string) (deleted []string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"item_id": id}
	defer observe(ctx, s.observer, "wbs-delete", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}

	var projectID string
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txItems := repository.NewSQLiteWBSItemRepo(tx)
		item, err := txItems.GetByID(ctx, id)
		if err != nil {
			return err
		}
		projectID = item.ProjectID
		if err := checkTenant(perms, item.CompanyID); err != nil {
			return err
		}
		deleted, err = txItems.DeleteSubtree(ctx, id)
		return err
	})
	if err != nil {
		if projectID != "" {
			s.invalidate(projectID)
		}
		return nil, err
	}

	fields["deleted"] = len(deleted)
	if s.cache != nil {
		s.cache.RemoveLocal(projectID, deleted...)
	}
	for _, d := range deleted {
		s.publish(ctx, feed.DeleteEvent(projectID, d))
	}
	return deleted, nil
}

func (s *wbsService) AddPredecessor(ctx context.Context, perms *permission.Set, itemID string, in PredecessorInput) (item *domain.WBSItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"item_id": itemID, "predecessor_id": in.PredecessorID}
	defer observe(ctx, s.observer, "wbs-add-predecessor", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	if err = validateInput(in); err != nil {
		return nil, err
	}
	rt, err := domain.ParseRelationType(in.RelationType)
	if err != nil {
		return nil, err
	}
	pred := domain.Predecessor{PredecessorID: strings.TrimSpace(in.PredecessorID), RelationType: rt, LagDays: in.LagDays}

	err = s.mutatePredecessors(ctx, perms, itemID, func(w *domain.WBSItem, graph *predecessor.Graph) error {
		if cycle := graph.CyclesThrough(w.ID); cycle != nil {
			return domain.NewValidationError("item %s is in an existing predecessor cycle %s; remove one of its links first",
				w.ID, strings.Join(cycle, " -> ")).WithMeta("cycle", cycle)
		}
		if err := graph.ValidateAdd(w.ID, pred.PredecessorID); err != nil {
			return err
		}
		for i := range w.Predecessors {
			if w.Predecessors[i].PredecessorID == pred.PredecessorID {
				w.Predecessors[i] = pred
				return nil
			}
		}
		w.Predecessors = append(w.Predecessors, pred)
		return nil
	}, &item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemovePredecessor is allowed on items caught in a cycle so corrupt data
// can be repaired.
func (s *wbsService) RemovePredecessor(ctx context.Context, perms *permission.Set, itemID, predecessorID string) (item *domain.WBSItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"item_id": itemID, "predecessor_id": predecessorID}
	defer observe(ctx, s.observer, "wbs-remove-predecessor", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	err = s.mutatePredecessors(ctx, perms, itemID, func(w *domain.WBSItem, _ *predecessor.Graph) error {
		kept := w.Predecessors[:0:0]
		for _, p := range w.Predecessors {
			if p.PredecessorID != predecessorID {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(w.Predecessors) {
			return domain.NewNotFoundError("%s is not a predecessor of %s", predecessorID, w.ID)
		}
		w.Predecessors = kept
		return nil
	}, &item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// mutatePredecessors loads the item and its project graph in one
// transaction, lets fn edit the list, and persists it.
func (s *wbsService) mutatePredecessors(
	ctx context.Context,
	perms *permission.Set,
	itemID string,
	fn func(w *domain.WBSItem, graph *predecessor.Graph) error,
	out **domain.WBSItem,
) error {
	var projectID string
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txItems := repository.NewSQLiteWBSItemRepo(tx)
		item, err := txItems.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		projectID = item.ProjectID
		if err := checkTenant(perms, item.CompanyID); err != nil {
			return err
		}
		projectItems, err := txItems.ListByProject(ctx, item.ProjectID)
		if err != nil {
			return err
		}
		if err := fn(item, predecessor.New(projectItems)); err != nil {
			return err
		}
		if err := txItems.Update(ctx, item); err != nil {
			return err
		}
		*out = item
		return nil
	})
	if err != nil {
		if projectID != "" {
			s.invalidate(projectID)
		}
		return err
	}
	s.applyLocal(*out)
	s.publish(ctx, feed.ItemEvent(feed.EventUpdate, *out))
	return nil
}

func (s *wbsService) applyLocal(w *domain.WBSItem) {
	if s.cache != nil && w != nil {
		s.cache.ApplyLocal(w)
	}
}

func (s *wbsService) invalidate(projectID string) {
	if s.cache != nil {
		s.cache.Invalidate(projectID)
	}
}

// publish runs after commit; a feed failure does not undo the write.
func (s *wbsService) publish(ctx context.Context, ev feed.Event) {
	publishEvent(ctx, s.events, s.log, ev)
}

func publishEvent(ctx context.Context, events feed.Publisher, log *zap.Logger, ev feed.Event) {
	if err := events.Publish(ctx, ev); err != nil {
		log.Warn("publishing change event failed",
			zap.String("event", string(ev.Type)),
			zap.String("item_id", ev.ID),
			zap.Error(err),
		)
	}
}

// checkTenant refuses records of another company. Sets without grants
// (policy fallback) carry no company and are not checked.
func checkTenant(perms *permission.Set, companyID string) error {
	if !perms.Loaded() || perms.CompanyID == "" || perms.CompanyID == companyID {
		return nil
	}
	return domain.NewForbiddenError("record belongs to another company").
		WithMeta("company_id", companyID)
}

func visibleTo(perms *permission.Set, items []*domain.WBSItem) []*domain.WBSItem {
	if !perms.Loaded() || perms.CompanyID == "" {
		return items
	}
	out := items[:0:0]
	for _, w := range items {
		if w.CompanyID == perms.CompanyID {
			out = append(out, w)
		}
	}
	return out
}
