package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/permission"
)

const (
	RoleOwner      = "OWNER"
	RoleSupervisor = "SUPERVISOR"
	RoleEmployee   = "EMPLOYEE"
)

var ErrUnknownRole = errors.New("unknown_role")

// Service answers what a role is granted by default, whether one role may
// hand out another's grants, and which membership a session holds in an
// organization.
type Service interface {
	DefaultPermissions(role string) ([]permission.Permission, error)
	// CanGrant reports whether every default grant of role is covered by the
	// default grants of granterRole.
	CanGrant(granterRole, role string) (bool, error)
	// ResolveMembership returns false when the caller is not a member of orgID.
	ResolveMembership(ctx context.Context, sess session.Session, orgID string) (session.Membership, bool, error)
}
