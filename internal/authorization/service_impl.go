package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/config"
	"github.com/smallbiznis/appraisal/internal/permission"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const memberStatusActive = "ACTIVE"

// defaultGrants are seeded as p, role:<role>, RESOURCE, ACTION, SCOPE.
var defaultGrants = map[string][]string{
	RoleOwner: {
		"ORGANIZATION:*:*",
		"USER:*:*",
		"RATING:*:*",
	},
	RoleSupervisor: {
		"USER:READ:OWN",
		"USER:READ:ASSIGNED",
		"RATING:READ:OWN",
		"RATING:READ:ASSIGNED",
		"RATING:CREATE:ASSIGNED",
		"RATING:UPDATE:ASSIGNED",
		"RATING:DELETE:ASSIGNED",
		"ORGANIZATION:READ:ASSIGNED",
	},
	RoleEmployee: {
		"USER:READ:OWN",
		"USER:UPDATE:OWN",
		"USER:DELETE:OWN",
		"RATING:READ:OWN",
		"ORGANIZATION:READ:ASSIGNED",
	},
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Policy   *config.AccessPolicyHolder
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	policy   *config.AccessPolicyHolder
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		policy:   p.Policy,
	}
}

func (s *ServiceImpl) DefaultPermissions(role string) ([]permission.Permission, error) {
	subject, err := roleSubject(role)
	if err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, subject)
	if err != nil {
		return nil, err
	}

	out := make([]permission.Permission, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 4 {
			continue
		}
		p, err := permission.Parse(strings.Join(rule[1:4], ":"))
		if err != nil {
			s.log.Warn("skipping malformed role grant", zap.String("role", role), zap.Strings("rule", rule))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *ServiceImpl) CanGrant(granterRole, role string) (bool, error) {
	granter, err := roleSubject(granterRole)
	if err != nil {
		return false, err
	}
	subject, err := roleSubject(role)
	if err != nil {
		return false, err
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, subject)
	if err != nil {
		return false, err
	}
	for _, rule := range rules {
		if len(rule) < 4 {
			continue
		}
		ok, err := s.enforcer.Enforce(granter, rule[1], rule[2], rule[3])
		if err != nil {
			return false, err
		}
		if !ok {
			s.log.Debug("grant not covered",
				zap.String("granter_role", granterRole),
				zap.String("role", role),
				zap.Strings("rule", rule[1:4]),
			)
			return false, nil
		}
	}
	return true, nil
}

func (s *ServiceImpl) ResolveMembership(ctx context.Context, sess session.Session, orgID string) (session.Membership, bool, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return session.Membership{}, false, nil
	}
	if s.policy == nil || !s.policy.Get().Live() {
		m, ok := sess.Membership(orgID)
		return m, ok, nil
	}
	return s.liveMembership(ctx, sess.UserID(), orgID)
}

func (s *ServiceImpl) liveMembership(ctx context.Context, userID string, orgID string) (session.Membership, bool, error) {
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return session.Membership{}, false, nil
	}
	parsedUserID, err := snowflake.ParseString(userID)
	if err != nil || parsedUserID == 0 {
		return session.Membership{}, false, nil
	}

	var rows []struct {
		Role        string                      `gorm:"column:role"`
		Permissions datatypes.JSONSlice[string] `gorm:"column:permissions"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role, permissions
		 FROM organization_members
		 WHERE org_id = ? AND user_id = ? AND status = ?
		 LIMIT 1`,
		parsedOrgID,
		parsedUserID,
		memberStatusActive,
	).Scan(&rows).Error; err != nil {
		return session.Membership{}, false, err
	}
	if len(rows) == 0 {
		return session.Membership{}, false, nil
	}

	perms := make([]permission.Permission, 0, len(rows[0].Permissions))
	for _, raw := range rows[0].Permissions {
		p, err := permission.Parse(raw)
		if err != nil {
			s.log.Warn("skipping malformed membership grant",
				zap.String("org_id", orgID),
				zap.String("user_id", userID),
				zap.String("grant", raw),
			)
			continue
		}
		perms = append(perms, p)
	}
	return session.Membership{
		OrganizationID: orgID,
		Role:           rows[0].Role,
		Permissions:    perms,
	}, true, nil
}

func roleSubject(role string) (string, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if _, ok := defaultGrants[role]; !ok {
		return "", ErrUnknownRole
	}
	return "role:" + strings.ToLower(role), nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for role, grants := range defaultGrants {
		subject, err := roleSubject(role)
		if err != nil {
			return err
		}
		perms, err := permission.ParseAll(grants)
		if err != nil {
			return fmt.Errorf("default grants for %s: %w", role, err)
		}
		for _, p := range perms {
			if _, err := enforcer.AddPolicy(subject, p.Resource.String(), p.Action.String(), p.Scope.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
