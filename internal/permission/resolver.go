// Package permission resolves effective module and sub-module access from an
// explicit set of grants. Absence of configuration is permissive: a module
// with no rows is open and a sub-module with no row is view-only.
package permission

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alexanderramin/wbs/internal/domain"
	"go.uber.org/zap"
)

// Policy decides what a Set answers when no grants could be loaded at all.
type Policy string

const (
	// PolicyAllow grants module access and can_edit everywhere.
	PolicyAllow Policy = "allow"
	// PolicyDeny refuses module access and returns no_access everywhere.
	PolicyDeny Policy = "deny"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAllow, PolicyDeny:
		return p, nil
	case "":
		return PolicyAllow, nil
	}
	return "", fmt.Errorf("unknown permission policy %q (want allow or deny)", s)
}

// Set is the resolved grant context for one user in one company. It is
// immutable and safe for concurrent use.
type Set struct {
	UserID    string
	CompanyID string

	grants []domain.UserPermission
	loaded bool
	policy Policy

	log      *zap.Logger
	warnOnce sync.Once
}

// NewSet wraps the grants loaded for userID in companyID.
func NewSet(userID, companyID string, grants []domain.UserPermission) *Set {
	return &Set{
		UserID:    userID,
		CompanyID: companyID,
		grants:    append([]domain.UserPermission(nil), grants...),
		loaded:    true,
		log:       zap.NewNop(),
	}
}

// Unloaded returns a Set for callers with no grant context. Every answer
// comes from policy and the first one is logged as a trust-boundary decision.
func Unloaded(policy Policy, log *zap.Logger) *Set {
	if log == nil {
		log = zap.NewNop()
	}
	return &Set{policy: policy, log: log}
}

// Loaded reports whether the set carries real grants.
func (s *Set) Loaded() bool { return s != nil && s.loaded }

// Policy returns the fallback policy of an unloaded set, or "" when loaded.
func (s *Set) Policy() Policy {
	if s == nil || s.loaded {
		return ""
	}
	return s.policy
}

// Grants returns a copy of the explicit rows.
func (s *Set) Grants() []domain.UserPermission {
	if s == nil {
		return nil
	}
	return append([]domain.UserPermission(nil), s.grants...)
}

// fallback reports whether the policy answers instead of the grants. A nil
// Set always falls back, to deny.
func (s *Set) fallback() (bool, Policy) {
	if s == nil {
		return true, PolicyDeny
	}
	if s.loaded {
		return false, ""
	}
	s.warnOnce.Do(func() {
		s.log.Warn("permission grants not loaded; applying default policy",
			zap.String("policy", string(s.policy)),
		)
	})
	return true, s.policy
}

// HasModuleAccess is true when the module has no rows at all, or when at
// least one of its rows (module-level or any sub-module) is not no_access.
func (s *Set) HasModuleAccess(moduleID string) bool {
	if fb, policy := s.fallback(); fb {
		return policy == PolicyAllow
	}
	rows := 0
	for _, g := range s.grants {
		if g.ModuleID != moduleID {
			continue
		}
		rows++
		if g.AccessLevel != domain.AccessNone {
			return true
		}
	}
	return rows == 0
}

// SubModuleAccessLevel returns the exact row's level, or can_view when the
// (module, sub-module) pair has no row.
func (s *Set) SubModuleAccessLevel(moduleID, subModuleID string) domain.AccessLevel {
	if fb, policy := s.fallback(); fb {
		if policy == PolicyAllow {
			return domain.AccessEdit
		}
		return domain.AccessNone
	}
	for _, g := range s.grants {
		if g.ModuleID == moduleID && g.SubModuleID != nil && *g.SubModuleID == subModuleID {
			return g.AccessLevel
		}
	}
	return domain.AccessView
}

func (s *Set) CanEdit(moduleID, subModuleID string) bool {
	return s.SubModuleAccessLevel(moduleID, subModuleID) == domain.AccessEdit
}

func (s *Set) CanView(moduleID, subModuleID string) bool {
	switch s.SubModuleAccessLevel(moduleID, subModuleID) {
	case domain.AccessView, domain.AccessEdit:
		return true
	}
	return false
}

// RequireView returns a ForbiddenError unless the module is accessible and
// the sub-module is at least viewable.
func (s *Set) RequireView(moduleID, subModuleID string) error {
	if !s.HasModuleAccess(moduleID) || !s.CanView(moduleID, subModuleID) {
		return s.forbidden("view", moduleID, subModuleID)
	}
	return nil
}

// RequireEdit returns a ForbiddenError unless the sub-module is editable.
func (s *Set) RequireEdit(moduleID, subModuleID string) error {
	if !s.HasModuleAccess(moduleID) || !s.CanEdit(moduleID, subModuleID) {
		return s.forbidden("edit", moduleID, subModuleID)
	}
	return nil
}

func (s *Set) forbidden(action, moduleID, subModuleID string) error {
	user := ""
	if s != nil {
		user = s.UserID
	}
	return domain.NewForbiddenError("cannot %s %s/%s", action, moduleID, subModuleID).
		WithMeta("user_id", user)
}
