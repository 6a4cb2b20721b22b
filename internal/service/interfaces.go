package service

import (
	"context"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/hierarchy"
	"github.com/alexanderramin/wbs/internal/importer"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/predecessor"
)

// Every operation takes the caller's resolved grant set. Reads need
// can_view on projects/wbs, writes need can_edit.

type WBSService interface {
	Create(ctx context.Context, perms *permission.Set, in CreateItemInput) (*domain.WBSItem, error)
	Get(ctx context.Context, perms *permission.Set, id string) (*domain.WBSItem, error)
	List(ctx context.Context, perms *permission.Set, projectID string) ([]*domain.WBSItem, error)
	LoadTree(ctx context.Context, perms *permission.Set, projectID string) (*TreeView, error)
	Update(ctx context.Context, perms *permission.Set, id string, patch domain.Patch) (*UpdateResult, error)
	Delete(ctx context.Context, perms *permission.Set, id string) ([]string, error)
	AddPredecessor(ctx context.Context, perms *permission.Set, itemID string, in PredecessorInput) (*domain.WBSItem, error)
	RemovePredecessor(ctx context.Context, perms *permission.Set, itemID, predecessorID string) (*domain.WBSItem, error)
}

type TaskLinkService interface {
	LinkTask(ctx context.Context, perms *permission.Set, itemID, taskID string) (*domain.WBSItem, error)
	UnlinkTask(ctx context.Context, perms *permission.Set, itemID string) (*domain.WBSItem, error)
}

// ImportService loads a whole WBS outline into a project in one
// transaction. Imported roots are appended next to existing ones.
type ImportService interface {
	ImportFile(ctx context.Context, perms *permission.Set, companyID, path string) (*ImportResult, error)
	ImportSchema(ctx context.Context, perms *permission.Set, companyID string, schema *importer.ImportSchema) (*ImportResult, error)
}

type ImportResult struct {
	ProjectID        string
	Items            []*domain.WBSItem
	PredecessorCount int
}

// PermissionAdminService is the administrative writer of the permission
// store. It is not gated by grants itself.
type PermissionAdminService interface {
	Grant(ctx context.Context, in GrantInput) (*domain.UserPermission, error)
	Revoke(ctx context.Context, userID, companyID, moduleID string, subModuleID *string) error
	List(ctx context.Context, userID, companyID string) ([]domain.UserPermission, error)
	Check(ctx context.Context, userID, companyID, moduleID, subModuleID string) (*AccessReport, error)
}

// CreateItemInput is the payload of WBSService.Create.
type CreateItemInput struct {
	CompanyID      string             `json:"company_id" validate:"required"`
	ProjectID      string             `json:"project_id" validate:"required"`
	ParentID       *string            `json:"parent_id" validate:"omitempty,uuid"`
	WBSID          string             `json:"wbs_id"`
	Level          *int               `json:"level" validate:"required,min=0"`
	SortOrder      int                `json:"sort_order"`
	Title          string             `json:"title" validate:"required,notblank"`
	Description    string             `json:"description"`
	Category       string             `json:"category"`
	Priority       string             `json:"priority"`
	Status         string             `json:"status"`
	Health         string             `json:"health"`
	ProgressStatus string             `json:"progress_status"`
	AtRisk         bool               `json:"at_risk"`
	StartDate      *time.Time         `json:"start_date"`
	EndDate        *time.Time         `json:"end_date"`
	Duration       *int               `json:"duration" validate:"omitempty,min=0"`
	BudgetedCost   *float64           `json:"budgeted_cost"`
	ActualCost     *float64           `json:"actual_cost"`
	Progress       int                `json:"progress" validate:"min=0,max=100"`
	Predecessors   []PredecessorInput `json:"predecessors" validate:"dive"`
	IsExpanded     *bool              `json:"is_expanded"`
}

type PredecessorInput struct {
	PredecessorID string `json:"predecessor_id" validate:"required"`
	RelationType  string `json:"relation_type" validate:"omitempty,relation_type"`
	LagDays       int    `json:"lag_days"`
}

// TreeView is a built forest plus the predecessor diagnostics of the
// same snapshot.
type TreeView struct {
	ProjectID string
	Forest    *hierarchy.Forest
	Stale     []predecessor.StaleRef
	Cycles    [][]string
	FromCache bool
}

type UpdateResult struct {
	Item  *domain.WBSItem
	Patch domain.PatchResult
	// Relevelled counts descendants whose level moved with a re-parent.
	Relevelled int
}

type GrantInput struct {
	UserID      string  `json:"user_id" validate:"required"`
	CompanyID   string  `json:"company_id" validate:"required"`
	ModuleID    string  `json:"module_id" validate:"required"`
	SubModuleID *string `json:"sub_module_id" validate:"omitempty,notblank"`
	AccessLevel string  `json:"access_level" validate:"required,access_level"`
}

// AccessReport is the resolver's view of one user for a module/sub-module.
type AccessReport struct {
	UserID         string
	CompanyID      string
	ModuleID       string
	SubModuleID    string
	ModuleAccess   bool
	SubModuleLevel domain.AccessLevel
	CanView        bool
	CanEdit        bool
	Grants         []domain.UserPermission
}
