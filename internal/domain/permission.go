package domain

import "time"

type AccessLevel string

const (
	AccessNone AccessLevel = "no_access"
	AccessView AccessLevel = "can_view"
	AccessEdit AccessLevel = "can_edit"
)

// ValidAccessLevels is the canonical set of accepted access level strings.
var ValidAccessLevels = map[AccessLevel]bool{
	AccessNone: true,
	AccessView: true,
	AccessEdit: true,
}

func (a AccessLevel) Valid() bool { return ValidAccessLevels[a] }

// Module and sub-module identifiers gating the WBS engine itself.
const (
	ModuleProjects = "projects"
	SubModuleWBS   = "wbs"
)

// UserPermission is one explicit grant. A nil SubModuleID marks a
// module-level row.
type UserPermission struct {
	ID          string
	UserID      string
	CompanyID   string
	ModuleID    string
	SubModuleID *string
	AccessLevel AccessLevel
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SubModuleKey returns the sub-module id or "" for module-level rows.
func (p UserPermission) SubModuleKey() string {
	if p.SubModuleID == nil {
		return ""
	}
	return *p.SubModuleID
}
