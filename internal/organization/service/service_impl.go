package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	"github.com/smallbiznis/appraisal/internal/authorization"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/organization/domain"
	"github.com/smallbiznis/appraisal/internal/permission"
	"github.com/smallbiznis/appraisal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	GenID  *snowflake.Node
	Clock  clock.Clock
	Authz  authorization.Service
	Tokens *token.Codec
}

type service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	authz  authorization.Service
	tokens *token.Codec
}

func NewService(p Params) domain.Service {
	return &service{
		db:     p.DB,
		log:    p.Log.Named("organization.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  p.Clock,
		authz:  p.Authz,
		tokens: p.Tokens,
	}
}

func (s *service) Create(ctx context.Context, sess session.Session, req domain.CreateOrganizationRequest) (*domain.CreateOrganizationResult, error) {
	userID, err := snowflake.ParseString(sess.UserID())
	if err != nil || userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}

	if _, err := s.repo.FindOrganizationByName(ctx, name); err == nil {
		return nil, domain.ErrOrgExists
	} else if !errors.Is(err, domain.ErrOrgNotFound) {
		return nil, err
	}

	ownerGrants, err := s.authz.DefaultPermissions(domain.RoleOwner)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	org := domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Status:    domain.StatusActive,
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return repo.AddMember(ctx, domain.OrganizationMember{
			ID:          s.genID.Generate(),
			OrgID:       org.ID,
			UserID:      userID,
			Role:        domain.RoleOwner,
			Status:      domain.MemberActive,
			Permissions: datatypes.JSONSlice[string](permission.Strings(ownerGrants)),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrOrgExists
		}
		return nil, err
	}

	memberships, err := s.ActiveMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	raw, err := s.tokens.Issue(userID.String(), memberships)
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("owner_id", userID.String()),
	)
	return &domain.CreateOrganizationResult{Organization: org, Token: raw}, nil
}

func (s *service) ListOwned(ctx context.Context, userID snowflake.ID) ([]domain.Organization, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListOwnedOrganizations(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID snowflake.ID, orgID string) error {
	id, err := parseID(orgID)
	if err != nil {
		return domain.ErrOrgNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		org, err := repo.FindOrganization(ctx, id)
		if err != nil {
			return err
		}
		if org.OwnerID != userID {
			return domain.ErrUnauthorized
		}
		if err := repo.DeleteOrganization(ctx, id); err != nil {
			return err
		}
		s.log.Info("organization deleted", zap.String("org_id", id.String()))
		return nil
	})
}

func (s *service) AssignEmployees(ctx context.Context, orgID string, req domain.AssignEmployeesRequest) (*domain.AssignEmployeesResult, error) {
	id, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrOrgNotFound
	}
	supervisorID, err := parseID(req.SupervisorID)
	if err != nil {
		return nil, domain.ErrSupervisorNotFound
	}

	employeeIDs, invalid := parseIDs(req.EmployeeIDs)
	if len(invalid) > 0 {
		return nil, &domain.EmployeesNotFoundError{IDs: invalid}
	}
	for _, employeeID := range employeeIDs {
		if employeeID == supervisorID {
			return nil, domain.ErrInvalidAssignment
		}
	}

	var assigned int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		org, err := repo.FindOrganization(ctx, id)
		if err != nil {
			return err
		}
		if org.Status != domain.StatusActive {
			return domain.ErrOrgNotFound
		}

		supervisor, err := repo.FindMember(ctx, id, supervisorID)
		if errors.Is(err, domain.ErrMemberNotFound) {
			return domain.ErrSupervisorNotFound
		}
		if err != nil {
			return err
		}
		if supervisor.Role != domain.RoleSupervisor || supervisor.Status != domain.MemberActive {
			return domain.ErrSupervisorNotFound
		}

		members, err := repo.ListMembersByUsers(ctx, id, employeeIDs)
		if err != nil {
			return err
		}
		if missing := missingEmployees(employeeIDs, members); len(missing) > 0 {
			return &domain.EmployeesNotFoundError{IDs: missing}
		}

		if err := s.checkAcyclic(ctx, repo, id, supervisor, employeeIDs); err != nil {
			return err
		}

		assigned, err = repo.AssignSupervisor(ctx, id, employeeIDs, supervisorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("employees assigned",
		zap.String("org_id", id.String()),
		zap.String("supervisor_id", supervisorID.String()),
		zap.Int64("assigned", assigned),
	)
	return &domain.AssignEmployeesResult{
		AssignedEmployees: len(employeeIDs),
		SupervisorID:      supervisorID.String(),
		OrganizationID:    id.String(),
	}, nil
}

// checkAcyclic walks the supervisor chain upwards from supervisor and fails
// if it reaches one of the employees being assigned.
func (s *service) checkAcyclic(ctx context.Context, repo domain.Repository, orgID snowflake.ID, supervisor *domain.OrganizationMember, employeeIDs []snowflake.ID) error {
	targets := make(map[snowflake.ID]struct{}, len(employeeIDs))
	for _, id := range employeeIDs {
		targets[id] = struct{}{}
	}

	seen := map[snowflake.ID]struct{}{supervisor.UserID: {}}
	next := supervisor.SupervisorID
	for next != nil {
		if _, ok := targets[*next]; ok {
			return domain.ErrInvalidAssignment
		}
		if _, ok := seen[*next]; ok {
			return domain.ErrInvalidAssignment
		}
		seen[*next] = struct{}{}

		member, err := repo.FindMember(ctx, orgID, *next)
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		next = member.SupervisorID
	}
	return nil
}

func (s *service) ListMembers(ctx context.Context, orgID string) ([]domain.MemberSummary, error) {
	id, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrOrgNotFound
	}
	members, err := s.repo.ListMembers(ctx, id, domain.MemberFilter{Status: domain.MemberActive})
	if err != nil {
		return nil, err
	}
	out := make([]domain.MemberSummary, 0, len(members))
	for _, m := range members {
		out = append(out, domain.MemberSummary{
			ID:   m.UserID.String(),
			Name: m.FullName(),
			Role: m.Role,
		})
	}
	return out, nil
}

func (s *service) ListEmployees(ctx context.Context, orgID string) ([]domain.MemberUser, error) {
	id, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrOrgNotFound
	}
	return s.repo.ListMembers(ctx, id, domain.MemberFilter{Role: domain.RoleEmployee})
}

func (s *service) ListAssignments(ctx context.Context, orgID string) ([]domain.Assignment, error) {
	id, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrOrgNotFound
	}

	supervisors, err := s.repo.ListMembers(ctx, id, domain.MemberFilter{Role: domain.RoleSupervisor})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Assignment, 0, len(supervisors))
	for _, sup := range supervisors {
		supervisorID := sup.UserID
		employees, err := s.repo.ListMembers(ctx, id, domain.MemberFilter{
			Role:         domain.RoleEmployee,
			SupervisorID: &supervisorID,
		})
		if err != nil {
			return nil, err
		}
		assignment := domain.Assignment{
			Supervisor: personSummary(sup),
			Employees:  make([]domain.PersonSummary, 0, len(employees)),
		}
		for _, emp := range employees {
			assignment.Employees = append(assignment.Employees, personSummary(emp))
		}
		out = append(out, assignment)
	}
	return out, nil
}

func (s *service) ActiveMemberships(ctx context.Context, userID snowflake.ID) ([]session.Membership, error) {
	members, err := s.repo.ListMembersByUser(ctx, userID, domain.MemberActive)
	if err != nil {
		return nil, err
	}
	out := make([]session.Membership, 0, len(members))
	for _, m := range members {
		out = append(out, m.Snapshot())
	}
	return out, nil
}

func personSummary(m domain.MemberUser) domain.PersonSummary {
	return domain.PersonSummary{
		ID:        m.UserID.String(),
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
	}
}

func missingEmployees(requested []snowflake.ID, members []domain.OrganizationMember) []string {
	valid := make(map[snowflake.ID]struct{}, len(members))
	for _, m := range members {
		if m.Role == domain.RoleEmployee && m.Status == domain.MemberActive {
			valid[m.UserID] = struct{}{}
		}
	}
	var missing []string
	for _, id := range requested {
		if _, ok := valid[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	return missing
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, domain.ErrInvalidUser
	}
	return id, nil
}

// parseIDs deduplicates ids, preserving order, and returns unparseable ones separately.
func parseIDs(raw []string) ([]snowflake.ID, []string) {
	ids := make([]snowflake.ID, 0, len(raw))
	seen := make(map[snowflake.ID]struct{}, len(raw))
	var invalid []string
	for _, item := range raw {
		id, err := parseID(item)
		if err != nil {
			invalid = append(invalid, item)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, invalid
}
