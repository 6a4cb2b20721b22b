package testutil

import (
	"encoding/json"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/google/uuid"
)

const (
	TestCompanyID = "company-1"
	TestProjectID = "project-1"
	TestUserID    = "user-1"
)

// WBSItem options
type ItemOption func(*domain.WBSItem)

// WithParent nests the item under parent and sets its level accordingly.
func WithParent(parent *domain.WBSItem) ItemOption {
	return func(w *domain.WBSItem) {
		id := parent.ID
		w.ParentID = &id
		w.Level = parent.Level + 1
	}
}

// WithParentID sets a raw parent reference without touching the level.
func WithParentID(id string) ItemOption {
	return func(w *domain.WBSItem) {
		w.ParentID = &id
	}
}

func WithLevel(l int) ItemOption {
	return func(w *domain.WBSItem) {
		w.Level = l
	}
}

func WithSortOrder(n int) ItemOption {
	return func(w *domain.WBSItem) {
		w.SortOrder = n
	}
}

func WithWBSID(code string) ItemOption {
	return func(w *domain.WBSItem) {
		w.WBSID = code
	}
}

func WithCompany(id string) ItemOption {
	return func(w *domain.WBSItem) {
		w.CompanyID = id
	}
}

func WithCreatedAt(t time.Time) ItemOption {
	return func(w *domain.WBSItem) {
		w.CreatedAt = t
		w.UpdatedAt = t
	}
}

func WithPredecessor(id string, rt domain.RelationType, lag int) ItemOption {
	return func(w *domain.WBSItem) {
		w.Predecessors = append(w.Predecessors, domain.Predecessor{
			PredecessorID: id,
			RelationType:  rt,
			LagDays:       lag,
		})
	}
}

// WithExpandedRaw stores a legacy is_expanded shape verbatim.
func WithExpandedRaw(raw string) ItemOption {
	return func(w *domain.WBSItem) {
		if raw == "" {
			w.ExpandedRaw = nil
			return
		}
		w.ExpandedRaw = json.RawMessage(raw)
	}
}

func WithLinkedTask(taskID string) ItemOption {
	return func(w *domain.WBSItem) {
		w.LinkTask(taskID, w.CreatedAt)
	}
}

func WithProgress(p int) ItemOption {
	return func(w *domain.WBSItem) {
		w.Progress = p
	}
}

// NewTestItem returns a root item in projectID with a fresh UUID.
func NewTestItem(projectID, title string, opts ...ItemOption) *domain.WBSItem {
	now := time.Now().UTC()
	w := &domain.WBSItem{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		CompanyID:    TestCompanyID,
		Title:        title,
		Predecessors: []domain.Predecessor{},
		LinkedTasks:  []string{},
		ExpandedRaw:  json.RawMessage("true"),
		IsExpanded:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// UserPermission options
type PermissionOption func(*domain.UserPermission)

func WithSubModule(id string) PermissionOption {
	return func(p *domain.UserPermission) {
		p.SubModuleID = &id
	}
}

func WithPermissionCompany(id string) PermissionOption {
	return func(p *domain.UserPermission) {
		p.CompanyID = id
	}
}

// NewTestPermission returns a module-level grant for TestCompanyID.
func NewTestPermission(userID, moduleID string, level domain.AccessLevel, opts ...PermissionOption) *domain.UserPermission {
	now := time.Now().UTC()
	p := &domain.UserPermission{
		ID:          uuid.New().String(),
		UserID:      userID,
		CompanyID:   TestCompanyID,
		ModuleID:    moduleID,
		AccessLevel: level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}
