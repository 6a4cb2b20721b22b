package permission

import (
	"context"
	"fmt"

	"github.com/alexanderramin/wbs/internal/domain"
	"go.uber.org/zap"
)

// Identity answers who is calling. ok is false when nobody is signed in.
type Identity interface {
	CurrentUserID(ctx context.Context) (id string, ok bool)
}

// StaticIdentity is a fixed user, as configured for the CLI.
type StaticIdentity struct {
	UserID string
}

func (s StaticIdentity) CurrentUserID(context.Context) (string, bool) {
	return s.UserID, s.UserID != ""
}

// GrantSource is the read side of the permission store.
type GrantSource interface {
	ListByUserCompany(ctx context.Context, userID, companyID string) ([]domain.UserPermission, error)
}

// Loader builds a Set for the current identity.
type Loader struct {
	source   GrantSource
	identity Identity
	policy   Policy
	log      *zap.Logger
}

func NewLoader(source GrantSource, identity Identity, policy Policy, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{source: source, identity: identity, policy: policy, log: log.Named("permission")}
}

// Load reads the grants of the current user in companyID. Without an
// identity the returned Set answers from the configured policy. Store
// errors are returned as is.
func (l *Loader) Load(ctx context.Context, companyID string) (*Set, error) {
	userID, ok := "", false
	if l.identity != nil {
		userID, ok = l.identity.CurrentUserID(ctx)
	}
	if !ok {
		return Unloaded(l.policy, l.log), nil
	}
	grants, err := l.source.ListByUserCompany(ctx, userID, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading permissions for %s: %w", userID, err)
	}
	l.log.Debug("permissions loaded",
		zap.String("user_id", userID),
		zap.String("company_id", companyID),
		zap.Int("grants", len(grants)),
	)
	return NewSet(userID, companyID, grants), nil
}

// Policy returns the fallback policy the loader applies.
func (l *Loader) Policy() Policy { return l.policy }
