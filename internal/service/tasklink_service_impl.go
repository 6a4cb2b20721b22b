package service

import (
	"context"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/cache"
	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/repository"
	"go.uber.org/zap"
)

type taskLinkService struct {
	uow      db.UnitOfWork
	cache    *cache.ProjectCache
	events   feed.Publisher
	log      *zap.Logger
	observer UseCaseObserver
}

func NewTaskLinkService(
	uow db.UnitOfWork,
	projectCache *cache.ProjectCache,
	events feed.Publisher,
	log *zap.Logger,
	observers ...UseCaseObserver,
) TaskLinkService {
	if log == nil {
		log = zap.NewNop()
	}
	if events == nil {
		events = feed.Nop{}
	}
	return &taskLinkService{
		uow:      uow,
		cache:    projectCache,
		events:   events,
		log:      log.Named("tasklink"),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *taskLinkService) LinkTask(ctx context.Context, perms *permission.Set, itemID, taskID string) (item *domain.WBSItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"item_id": itemID, "task_id": taskID}
	defer observe(ctx, s.observer, "task-link", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, domain.NewValidationError("task id is required")
	}

	err = s.mutate(ctx, perms, itemID, &item, func(ctx context.Context, items *repository.SQLiteWBSItemRepo, w *domain.WBSItem) (bool, error) {
		if w.HasLiveTask() {
			return false, domain.NewConflictError("wbs item %s is already linked to task %s", w.ID, derefString(w.LinkedTaskID)).
				WithMeta("linked_task_id", derefString(w.LinkedTaskID))
		}
		w.LinkTask(taskID, startedAt)
		return true, items.SetTaskLink(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *taskLinkService) UnlinkTask(ctx context.Context, perms *permission.Set, itemID string) (item *domain.WBSItem, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"item_id": itemID}
	defer observe(ctx, s.observer, "task-unlink", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, perms, itemID, &item, func(ctx context.Context, items *repository.SQLiteWBSItemRepo, w *domain.WBSItem) (bool, error) {
		if !w.HasLiveTask() && w.TaskConversionDate == nil {
			fields["noop"] = true
			return false, nil
		}
		w.UnlinkTask()
		if err := items.ClearTaskLink(ctx, w.ID); err != nil {
			return false, err
		}
		w.UpdatedAt = time.Now().UTC()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// mutate runs fn on the stored item inside one transaction. fn reports
// whether it wrote; only writes are applied to the cache and published.
func (s *taskLinkService) mutate(
	ctx context.Context,
	perms *permission.Set,
	itemID string,
	out **domain.WBSItem,
	fn func(ctx context.Context, items *repository.SQLiteWBSItemRepo, w *domain.WBSItem) (bool, error),
) error {
	var projectID string
	var changed bool
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txItems := repository.NewSQLiteWBSItemRepo(tx)
		w, err := txItems.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		projectID = w.ProjectID
		if err := checkTenant(perms, w.CompanyID); err != nil {
			return err
		}
		if changed, err = fn(ctx, txItems, w); err != nil {
			return err
		}
		*out = w
		return nil
	})
	if err != nil {
		if projectID != "" && s.cache != nil {
			s.cache.Invalidate(projectID)
		}
		return err
	}
	if !changed {
		return nil
	}
	if s.cache != nil {
		s.cache.ApplyLocal(*out)
	}
	publishEvent(ctx, s.events, s.log, feed.ItemEvent(feed.EventUpdate, *out))
	return nil
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
