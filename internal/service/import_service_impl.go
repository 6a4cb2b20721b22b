package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/cache"
	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/importer"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/repository"
	"go.uber.org/zap"
)

type importService struct {
	uow      db.UnitOfWork
	cache    *cache.ProjectCache
	events   feed.Publisher
	log      *zap.Logger
	observer UseCaseObserver
}

func NewImportService(
	uow db.UnitOfWork,
	projectCache *cache.ProjectCache,
	events feed.Publisher,
	log *zap.Logger,
	observers ...UseCaseObserver,
) ImportService {
	if log == nil {
		log = zap.NewNop()
	}
	if events == nil {
		events = feed.Nop{}
	}
	return &importService{
		uow:      uow,
		cache:    projectCache,
		events:   events,
		log:      log.Named("import"),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *importService) ImportFile(ctx context.Context, perms *permission.Set, companyID, path string) (*ImportResult, error) {
	schema, err := importer.LoadImportSchema(path)
	if err != nil {
		return nil, fmt.Errorf("loading import file: %w", err)
	}
	return s.ImportSchema(ctx, perms, companyID, schema)
}

func (s *importService) ImportSchema(ctx context.Context, perms *permission.Set, companyID string, schema *importer.ImportSchema) (result *ImportResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"project_id": schema.ProjectID}
	defer observe(ctx, s.observer, "wbs-import", startedAt, fields, &err)

	if err = perms.RequireEdit(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
		return nil, err
	}
	if strings.TrimSpace(companyID) == "" {
		return nil, domain.NewValidationError("company_id is required")
	}
	if err = checkTenant(perms, companyID); err != nil {
		return nil, err
	}
	if errs := importer.ValidateImportSchema(schema); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}

	converted, err := importer.Convert(schema, companyID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("converting import schema: %w", err)
	}
	projectID := strings.TrimSpace(schema.ProjectID)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txItems := repository.NewSQLiteWBSItemRepo(tx)
		for _, w := range converted.Items {
			if err := txItems.Create(ctx, w); err != nil {
				return fmt.Errorf("creating item %q: %w", w.Title, err)
			}
		}
		return nil
	})
	if s.cache != nil {
		s.cache.Invalidate(projectID)
	}
	if err != nil {
		return nil, err
	}

	for _, w := range converted.Items {
		publishEvent(ctx, s.events, s.log, feed.ItemEvent(feed.EventInsert, w))
	}

	fields["items"] = len(converted.Items)
	fields["predecessors"] = converted.Predecessors
	return &ImportResult{
		ProjectID:        projectID,
		Items:            converted.Items,
		PredecessorCount: converted.Predecessors,
	}, nil
}

// formatValidationErrors folds every schema problem into one validation
// error; the list is kept in Meta["errors"].
func formatValidationErrors(errs []error) error {
	msg := fmt.Sprintf("import validation failed (%d errors):", len(errs))
	list := make([]string, 0, len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
		list = append(list, e.Error())
	}
	return domain.NewValidationError("%s", msg).WithMeta("errors", list)
}
