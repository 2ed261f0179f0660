package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/appraisal/internal/auth/domain"
	"github.com/smallbiznis/appraisal/internal/auth/password"
	authservice "github.com/smallbiznis/appraisal/internal/auth/service"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	"github.com/smallbiznis/appraisal/internal/authorization"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/config"
	"github.com/smallbiznis/appraisal/internal/invitation/domain"
	"github.com/smallbiznis/appraisal/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	"github.com/smallbiznis/appraisal/internal/permission"
	"github.com/smallbiznis/appraisal/internal/providers/email"
	"github.com/smallbiznis/appraisal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Users   authdomain.Repository
	Orgs    orgdomain.Repository
	OrgSvc  orgdomain.Service
	Authz   authorization.Service
	Tokens  *token.Codec
	Email   email.Provider
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	baseURL string
	users   authdomain.Repository
	orgs    orgdomain.Repository
	orgSvc  orgdomain.Service
	authz   authorization.Service
	tokens  *token.Codec
	email   email.Provider
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("invitation.service"),
		baseURL: p.Config.AppBaseURL,
		users:   p.Users,
		orgs:    p.Orgs,
		orgSvc:  p.OrgSvc,
		authz:   p.Authz,
		tokens:  p.Tokens,
		email:   p.Email,
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *service) Invite(ctx context.Context, inviterID snowflake.ID, orgID string, req domain.InviteRequest) (*domain.InviteResult, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrOrganizationNotFound
	}
	emailAddr, err := authservice.NormalizeEmail(req.Email)
	if err != nil {
		return nil, authdomain.ErrInvalidEmail
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role != orgdomain.RoleSupervisor && role != orgdomain.RoleEmployee {
		return nil, domain.ErrInvalidRole
	}
	grants, err := s.authz.DefaultPermissions(role)
	if err != nil {
		return nil, err
	}

	var (
		organization *orgdomain.Organization
		user         *authdomain.User
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgs := s.orgs.WithTx(tx)
		users := s.users.WithTx(tx)

		organization, err = orgs.FindOrganization(ctx, org)
		if errors.Is(err, orgdomain.ErrOrgNotFound) || (err == nil && organization.Status != orgdomain.StatusActive) {
			return domain.ErrOrganizationNotFound
		}
		if err != nil {
			return err
		}
		if err := s.authorizeGrant(ctx, orgs, org, inviterID, role); err != nil {
			return err
		}

		user, err = users.FindByEmail(ctx, emailAddr)
		switch {
		case errors.Is(err, authdomain.ErrUserNotFound):
			user, err = s.createInvitedUser(ctx, users, emailAddr)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			existing, err := orgs.FindMember(ctx, org, user.ID)
			if err == nil {
				if existing.Status == orgdomain.MemberDeactive {
					return domain.ErrUserDeactivated
				}
				return domain.ErrMemberExists
			}
			if !errors.Is(err, orgdomain.ErrMemberNotFound) {
				return err
			}
		}

		now := s.clock.Now()
		err = orgs.AddMember(ctx, orgdomain.OrganizationMember{
			ID:          s.genID.Generate(),
			OrgID:       org,
			UserID:      user.ID,
			Role:        role,
			Status:      orgdomain.MemberInvited,
			Permissions: datatypes.JSONSlice[string](permission.Strings(grants)),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrMemberExists
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("member invited",
		zap.String("org_id", org.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("role", role),
	)
	sent := s.sendInvite(ctx, inviterID, organization, user, role)
	return &domain.InviteResult{
		UserID:       user.ID.String(),
		Email:        user.Email,
		Role:         role,
		Status:       orgdomain.MemberInvited,
		Organization: domain.OrganizationRef{ID: organization.ID.String(), Name: organization.Name},
		InviteSent:   sent,
	}, nil
}

func (s *service) Resend(ctx context.Context, inviterID snowflake.ID, orgID string, req domain.ResendRequest) (*domain.InviteResult, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrOrganizationNotFound
	}
	var emailAddr string
	if strings.TrimSpace(req.UserID) == "" {
		emailAddr, err = authservice.NormalizeEmail(req.Email)
		if err != nil {
			return nil, authdomain.ErrInvalidEmail
		}
	}

	organization, err := s.orgs.FindOrganization(ctx, org)
	if errors.Is(err, orgdomain.ErrOrgNotFound) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	if organization.OwnerID != inviterID || organization.Status != orgdomain.StatusActive {
		return nil, domain.ErrOrganizationNotFound
	}

	user, err := s.findInvitee(ctx, req.UserID, emailAddr)
	if errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	member, err := s.orgs.FindMember(ctx, org, user.ID)
	if errors.Is(err, orgdomain.ErrMemberNotFound) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	if member.Status != orgdomain.MemberInvited {
		return nil, domain.ErrInvitationNotFound
	}

	sent := s.sendInvite(ctx, inviterID, organization, user, member.Role)
	return &domain.InviteResult{
		UserID:       user.ID.String(),
		Email:        user.Email,
		Role:         member.Role,
		Status:       member.Status,
		Organization: domain.OrganizationRef{ID: organization.ID.String(), Name: organization.Name},
		InviteSent:   sent,
	}, nil
}

func (s *service) Accept(ctx context.Context, req domain.AcceptRequest) (*domain.AcceptResult, error) {
	invite, err := s.tokens.DecodeInvite(req.Token)
	if err != nil {
		return nil, err
	}
	userID, err := parseID(invite.UserID)
	if err != nil {
		return nil, token.ErrInvalidToken
	}
	orgID, err := parseID(invite.OrganizationID)
	if err != nil {
		return nil, token.ErrInvalidToken
	}
	if len(req.Password) < 8 {
		return nil, authdomain.ErrWeakPassword
	}
	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	var user *authdomain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activated, err := s.orgs.WithTx(tx).UpdateMemberStatus(ctx, orgID, userID, orgdomain.MemberInvited, orgdomain.MemberActive)
		if err != nil {
			return err
		}
		if !activated {
			return domain.ErrInvitationNotFound
		}

		users := s.users.WithTx(tx)
		err = users.UpdateFields(ctx, userID, map[string]any{
			"first_name":    strings.TrimSpace(req.FirstName),
			"last_name":     strings.TrimSpace(req.LastName),
			"password_hash": hashed,
			"updated_at":    s.clock.Now(),
		})
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return domain.ErrInvitationNotFound
		}
		if err != nil {
			return err
		}
		user, err = users.FindByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	members, err := s.orgs.ListMembersByUser(ctx, userID, orgdomain.MemberActive)
	if err != nil {
		return nil, err
	}
	memberships, err := s.orgSvc.ActiveMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	raw, err := s.tokens.Issue(userID.String(), memberships)
	if err != nil {
		return nil, err
	}

	s.log.Info("invitation accepted", zap.String("org_id", orgID.String()), zap.String("user_id", userID.String()))
	return &domain.AcceptResult{User: *user, OrganizationMemberships: members, Token: raw}, nil
}

// createInvitedUser stores a placeholder account whose password is replaced on acceptance.
func (s *service) createInvitedUser(ctx context.Context, users authdomain.Repository, emailAddr string) (*authdomain.User, error) {
	placeholder, err := randomSecret()
	if err != nil {
		return nil, err
	}
	hashed, err := password.Hash(placeholder)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	user := &authdomain.User{
		ID:           s.genID.Generate(),
		Email:        emailAddr,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// sendInvite mails the acceptance link. Delivery failures are logged and
// reported through the result; the membership is already committed.
func (s *service) sendInvite(ctx context.Context, inviterID snowflake.ID, org *orgdomain.Organization, user *authdomain.User, role string) bool {
	raw, err := s.tokens.IssueInvite(user.ID.String(), org.ID.String())
	if err != nil {
		s.log.Error("failed to issue invite token", zap.Error(err))
		s.metrics.RecordInviteSent(ctx, org.ID.String(), "failed")
		return false
	}

	data := email.InviteData{
		Username:   user.Email,
		OrgName:    org.Name,
		Role:       role,
		InviteLink: s.inviteLink(raw),
	}
	if user.FirstName != "" {
		data.Username = user.FirstName
	}
	if inviter, err := s.users.FindByID(ctx, inviterID); err == nil {
		data.InvitedBy = inviter.Email
		data.InvitedByEmail = inviter.Email
		if inviter.FirstName != "" {
			data.InvitedBy = inviter.FirstName
		}
	}

	subject := fmt.Sprintf("invite to join %s", org.Name)
	if err := s.email.SendTemplate(ctx, []string{user.Email}, subject, email.TemplateInviteMember, data); err != nil {
		s.log.Warn("failed to send invite email",
			zap.String("org_id", org.ID.String()),
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		s.metrics.RecordInviteSent(ctx, org.ID.String(), "failed")
		return false
	}
	s.metrics.RecordInviteSent(ctx, org.ID.String(), "sent")
	return true
}

func (s *service) findInvitee(ctx context.Context, rawID, emailAddr string) (*authdomain.User, error) {
	if strings.TrimSpace(rawID) == "" {
		return s.users.FindByEmail(ctx, emailAddr)
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, authdomain.ErrUserNotFound
	}
	return s.users.FindByID(ctx, id)
}

// authorizeGrant checks that the inviter's role covers every default grant of
// the invited role.
func (s *service) authorizeGrant(ctx context.Context, orgs orgdomain.Repository, org, inviterID snowflake.ID, role string) error {
	inviter, err := orgs.FindMember(ctx, org, inviterID)
	if errors.Is(err, orgdomain.ErrMemberNotFound) {
		return domain.ErrGrantNotAllowed
	}
	if err != nil {
		return err
	}
	if inviter.Status != orgdomain.MemberActive {
		return domain.ErrGrantNotAllowed
	}
	ok, err := s.authz.CanGrant(inviter.Role, role)
	if errors.Is(err, authorization.ErrUnknownRole) {
		return domain.ErrGrantNotAllowed
	}
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrGrantNotAllowed
	}
	return nil
}

func (s *service) inviteLink(raw string) string {
	return s.baseURL + "/accept-invite?token=" + url.QueryEscape(raw)
}

func randomSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("zero id")
	}
	return id, nil
}
