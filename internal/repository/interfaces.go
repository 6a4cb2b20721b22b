package repository

import (
	"context"

	"github.com/alexanderramin/wbs/internal/domain"
)

// WBSItemRepo is the persistence boundary for WBS items. Every method works
// on the flat representation; the tree is rebuilt by the hierarchy package.
type WBSItemRepo interface {
	ListByProject(ctx context.Context, projectID string) ([]*domain.WBSItem, error)
	ListByIDs(ctx context.Context, ids []string) ([]*domain.WBSItem, error)
	GetByID(ctx context.Context, id string) (*domain.WBSItem, error)
	Create(ctx context.Context, w *domain.WBSItem) error
	Update(ctx context.Context, w *domain.WBSItem) error
	// ListSubtreeIDs returns id followed by every descendant id.
	ListSubtreeIDs(ctx context.Context, id string) ([]string, error)
	// RelevelSubtree sets id's level and renumbers its descendants by depth.
	RelevelSubtree(ctx context.Context, id string, level int) (int64, error)
	// DeleteSubtree removes id and all descendants in one statement and
	// returns the removed ids.
	DeleteSubtree(ctx context.Context, id string) ([]string, error)
	SetTaskLink(ctx context.Context, w *domain.WBSItem) error
	ClearTaskLink(ctx context.Context, id string) error
}

// PermissionRepo stores explicit grants. The resolver only reads.
type PermissionRepo interface {
	ListByUserCompany(ctx context.Context, userID, companyID string) ([]domain.UserPermission, error)
	FindGrant(ctx context.Context, userID, companyID, moduleID string, subModuleID *string) (*domain.UserPermission, error)
	Upsert(ctx context.Context, p *domain.UserPermission) error
	Delete(ctx context.Context, id string) error
}
