package service

import (
	"context"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type permissionAdminService struct {
	grants   repository.PermissionRepo
	uow      db.UnitOfWork
	log      *zap.Logger
	observer UseCaseObserver
}

func NewPermissionAdminService(
	grants repository.PermissionRepo,
	uow db.UnitOfWork,
	log *zap.Logger,
	observers ...UseCaseObserver,
) PermissionAdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &permissionAdminService{
		grants:   grants,
		uow:      uow,
		log:      log.Named("permission"),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *permissionAdminService) Grant(ctx context.Context, in GrantInput) (p *domain.UserPermission, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": in.UserID, "module_id": in.ModuleID}
	defer observe(ctx, s.observer, "permission-grant", startedAt, fields, &err)

	if err = validateInput(in); err != nil {
		return nil, err
	}
	p = &domain.UserPermission{
		ID:          uuid.New().String(),
		UserID:      strings.TrimSpace(in.UserID),
		CompanyID:   strings.TrimSpace(in.CompanyID),
		ModuleID:    strings.TrimSpace(in.ModuleID),
		SubModuleID: trimmedOrNil(in.SubModuleID),
		AccessLevel: domain.AccessLevel(in.AccessLevel),
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLitePermissionRepo(tx).Upsert(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	fields["sub_module_id"] = p.SubModuleKey()
	fields["access_level"] = string(p.AccessLevel)
	return p, nil
}

func (s *permissionAdminService) Revoke(ctx context.Context, userID, companyID, moduleID string, subModuleID *string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": userID, "module_id": moduleID}
	defer observe(ctx, s.observer, "permission-revoke", startedAt, fields, &err)

	sub := trimmedOrNil(subModuleID)
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txGrants := repository.NewSQLitePermissionRepo(tx)
		existing, err := txGrants.FindGrant(ctx, userID, companyID, moduleID, sub)
		if err != nil {
			return err
		}
		return txGrants.Delete(ctx, existing.ID)
	})
}

func (s *permissionAdminService) List(ctx context.Context, userID, companyID string) ([]domain.UserPermission, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(companyID) == "" {
		return nil, domain.NewValidationError("user and company are required")
	}
	return s.grants.ListByUserCompany(ctx, userID, companyID)
}

// Check resolves the stored grants exactly as an operation by userID would.
func (s *permissionAdminService) Check(ctx context.Context, userID, companyID, moduleID, subModuleID string) (*AccessReport, error) {
	if strings.TrimSpace(moduleID) == "" {
		return nil, domain.NewValidationError("module is required")
	}
	grants, err := s.List(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}
	set := permission.NewSet(userID, companyID, grants)
	report := &AccessReport{
		UserID:       userID,
		CompanyID:    companyID,
		ModuleID:     moduleID,
		SubModuleID:  subModuleID,
		ModuleAccess: set.HasModuleAccess(moduleID),
		Grants:       grants,
	}
	if subModuleID != "" {
		report.SubModuleLevel = set.SubModuleAccessLevel(moduleID, subModuleID)
		report.CanView = set.CanView(moduleID, subModuleID)
		report.CanEdit = set.CanEdit(moduleID, subModuleID)
	}
	return report, nil
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
