package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/appraisal/internal/auth/domain"
	"github.com/smallbiznis/appraisal/internal/auth/password"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	"github.com/smallbiznis/appraisal/internal/authorization"
	"github.com/smallbiznis/appraisal/internal/clock"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	"github.com/smallbiznis/appraisal/internal/permission"
	ratingdomain "github.com/smallbiznis/appraisal/internal/rating/domain"
	"github.com/smallbiznis/appraisal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Orgs    orgdomain.Repository
	OrgSvc  orgdomain.Service
	Ratings ratingdomain.Service
	Authz   authorization.Service
	Tokens  *token.Codec
	GenID   *snowflake.Node
	Clock   clock.Clock
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	orgs    orgdomain.Repository
	orgSvc  orgdomain.Service
	ratings ratingdomain.Service
	authz   authorization.Service
	tokens  *token.Codec
	genID   *snowflake.Node
	clock   clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("auth.service"),
		repo:    p.Repo,
		orgs:    p.Orgs,
		orgSvc:  p.OrgSvc,
		ratings: p.Ratings,
		authz:   p.Authz,
		tokens:  p.Tokens,
		genID:   p.GenID,
		clock:   p.Clock,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}
	orgName := strings.TrimSpace(req.OrganizationName)
	if orgName == "" {
		return nil, orgdomain.ErrNameRequired
	}

	ownerGrants, err := s.authz.DefaultPermissions(orgdomain.RoleOwner)
	if err != nil {
		return nil, err
	}
	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	org := orgdomain.Organization{
		ID:        s.genID.Generate(),
		Name:      orgName,
		Slug:      slug.Make(orgName),
		Status:    orgdomain.StatusActive,
		OwnerID:   user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := orgdomain.OrganizationMember{
		ID:          s.genID.Generate(),
		OrgID:       org.ID,
		UserID:      user.ID,
		Role:        orgdomain.RoleOwner,
		Status:      orgdomain.MemberActive,
		Permissions: datatypes.JSONSlice[string](permission.Strings(ownerGrants)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.repo.WithTx(tx)
		orgs := s.orgs.WithTx(tx)

		if _, err := users.FindByEmail(ctx, email); err == nil {
			return domain.ErrUserExists
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		if _, err := orgs.FindOrganizationByName(ctx, orgName); err == nil {
			return domain.ErrOrganizationExists
		} else if !errors.Is(err, orgdomain.ErrOrgNotFound) {
			return err
		}

		if err := users.Create(ctx, &user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrUserExists
			}
			return err
		}
		if err := orgs.CreateOrganization(ctx, org); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrOrganizationExists
			}
			return err
		}
		return orgs.AddMember(ctx, owner)
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.tokens.Issue(user.ID.String(), []session.Membership{owner.Snapshot()})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", org.ID.String()),
	)
	return &domain.RegisterResult{User: user, Organization: org, Token: raw}, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	memberships, err := s.orgSvc.ActiveMemberships(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	raw, err := s.tokens.Issue(user.ID.String(), memberships)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{User: *user, Token: raw}, nil
}

func (s *Service) WhoAmI(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	members, err := s.orgs.ListMembersByUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	orgIDs := make([]snowflake.ID, 0, len(members))
	supervisorIDs := []snowflake.ID{}
	for _, m := range members {
		orgIDs = append(orgIDs, m.OrgID)
		if m.SupervisorID != nil {
			supervisorIDs = append(supervisorIDs, *m.SupervisorID)
		}
	}
	orgs, err := s.orgs.ListOrganizations(ctx, orgIDs)
	if err != nil {
		return nil, err
	}
	orgByID := make(map[snowflake.ID]orgdomain.Organization, len(orgs))
	for _, o := range orgs {
		orgByID[o.ID] = o
	}
	supervisors, err := s.repo.FindByIDs(ctx, supervisorIDs)
	if err != nil {
		return nil, err
	}
	supervisorByID := make(map[snowflake.ID]domain.User, len(supervisors))
	for _, u := range supervisors {
		supervisorByID[u.ID] = u
	}

	details := make([]domain.MembershipDetail, 0, len(members))
	for _, m := range members {
		detail := domain.MembershipDetail{
			OrganizationMember: m,
			Employees:          []orgdomain.PersonSummary{},
		}
		if o, ok := orgByID[m.OrgID]; ok {
			detail.Organization = &o
		}
		if m.SupervisorID != nil {
			if u, ok := supervisorByID[*m.SupervisorID]; ok {
				summary := personSummary(u)
				detail.Supervisor = &summary
			}
		}
		if m.Role == orgdomain.RoleSupervisor {
			supervisorID := m.UserID
			employees, err := s.orgs.ListMembers(ctx, m.OrgID, orgdomain.MemberFilter{
				Role:         orgdomain.RoleEmployee,
				SupervisorID: &supervisorID,
			})
			if err != nil {
				return nil, err
			}
			for _, e := range employees {
				detail.Employees = append(detail.Employees, orgdomain.PersonSummary{
					ID:        e.UserID.String(),
					FirstName: e.FirstName,
					LastName:  e.LastName,
					Email:     e.Email,
				})
			}
		}
		details = append(details, detail)
	}

	owned, err := s.orgs.ListOwnedOrganizations(ctx, userID)
	if err != nil {
		return nil, err
	}
	received, err := s.ratings.ListReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	given, err := s.ratings.ListGiven(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.Profile{
		User:               *user,
		Memberships:        details,
		OwnedOrganizations: owned,
		RatingsReceived:    received,
		RatingsGiven:       given,
	}, nil
}

func personSummary(u domain.User) orgdomain.PersonSummary {
	return orgdomain.PersonSummary{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(raw string) (string, error) {
	return normalizeEmail(raw)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
