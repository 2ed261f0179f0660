package server

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/appraisal/internal/auth/domain"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	criteriadomain "github.com/smallbiznis/appraisal/internal/criteria/domain"
	invitationdomain "github.com/smallbiznis/appraisal/internal/invitation/domain"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	ratingdomain "github.com/smallbiznis/appraisal/internal/rating/domain"
	"github.com/smallbiznis/appraisal/pkg/db/pagination"
)

type fakeAuthService struct {
	registerCalls int
	err           error
}

func (f *fakeAuthService) Register(ctx context.Context, req authdomain.RegisterRequest) (*authdomain.RegisterResult, error) {
	f.registerCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &authdomain.RegisterResult{
		User:         authdomain.User{ID: snowflake.ID(42), Email: req.Email, FirstName: req.FirstName, LastName: req.LastName},
		Organization: orgdomain.Organization{ID: snowflake.ID(100), Name: req.OrganizationName},
		Token:        "session-token",
	}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &authdomain.LoginResult{User: authdomain.User{ID: snowflake.ID(42), Email: req.Email}, Token: "session-token"}, nil
}

func (f *fakeAuthService) WhoAmI(ctx context.Context, userID snowflake.ID) (*authdomain.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &authdomain.Profile{User: authdomain.User{ID: userID}}, nil
}

type fakeOrgService struct {
	assigned *orgdomain.AssignEmployeesRequest
	err      error
}

func (f *fakeOrgService) Create(ctx context.Context, sess session.Session, req orgdomain.CreateOrganizationRequest) (*orgdomain.CreateOrganizationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &orgdomain.CreateOrganizationResult{
		Organization: orgdomain.Organization{ID: snowflake.ID(300), Name: req.Name},
		Token:        "reissued-token",
	}, nil
}

func (f *fakeOrgService) ListOwned(ctx context.Context, userID snowflake.ID) ([]orgdomain.Organization, error) {
	return []orgdomain.Organization{{ID: snowflake.ID(100), Name: "Acme", OwnerID: userID}}, f.err
}

func (f *fakeOrgService) Delete(ctx context.Context, userID snowflake.ID, orgID string) error {
	return f.err
}

func (f *fakeOrgService) AssignEmployees(ctx context.Context, orgID string, req orgdomain.AssignEmployeesRequest) (*orgdomain.AssignEmployeesResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.assigned = &req
	return &orgdomain.AssignEmployeesResult{
		AssignedEmployees: len(req.EmployeeIDs),
		SupervisorID:      req.SupervisorID,
		OrganizationID:    orgID,
	}, nil
}

func (f *fakeOrgService) ListMembers(ctx context.Context, orgID string) ([]orgdomain.MemberSummary, error) {
	return nil, f.err
}

func (f *fakeOrgService) ListEmployees(ctx context.Context, orgID string) ([]orgdomain.MemberUser, error) {
	return nil, f.err
}

func (f *fakeOrgService) ListAssignments(ctx context.Context, orgID string) ([]orgdomain.Assignment, error) {
	return nil, f.err
}

func (f *fakeOrgService) ActiveMemberships(ctx context.Context, userID snowflake.ID) ([]session.Membership, error) {
	return nil, f.err
}

type fakeCriteriaService struct {
	createCalls int
	lastOrgID   string
}

func (f *fakeCriteriaService) Create(ctx context.Context, orgID string, req criteriadomain.CreateCriteriaRequest) (*criteriadomain.Criteria, error) {
	f.createCalls++
	f.lastOrgID = orgID
	return &criteriadomain.Criteria{ID: snowflake.ID(500), Name: req.Name, MaxScore: req.MaxScore}, nil
}

func (f *fakeCriteriaService) List(ctx context.Context, orgID string) ([]criteriadomain.Criteria, error) {
	f.lastOrgID = orgID
	return []criteriadomain.Criteria{}, nil
}

func (f *fakeCriteriaService) Update(ctx context.Context, orgID string, criteriaID string, req criteriadomain.UpdateCriteriaRequest) (*criteriadomain.Criteria, error) {
	return nil, criteriadomain.ErrNotFound
}

func (f *fakeCriteriaService) Delete(ctx context.Context, orgID string, criteriaID string) error {
	return criteriadomain.ErrForbidden
}

type fakeRatingService struct {
	lastReader ratingdomain.Member
	lastCreate *ratingdomain.CreateRatingRequest
	lastUpdate *ratingdomain.UpdateRatingRequest
	createErr  error
	report     *ratingdomain.Report
}

func (f *fakeRatingService) Create(ctx context.Context, rater ratingdomain.Member, orgID string, req ratingdomain.CreateRatingRequest) (*ratingdomain.RatingView, error) {
	f.lastReader = rater
	f.lastCreate = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ratingdomain.RatingView{ID: "900", OrganizationID: orgID, EmployeeID: req.EmployeeID}, nil
}

func (f *fakeRatingService) List(ctx context.Context, reader ratingdomain.Member, orgID string, page pagination.Pagination) ([]ratingdomain.RatingView, *pagination.PageInfo, error) {
	f.lastReader = reader
	return []ratingdomain.RatingView{}, &pagination.PageInfo{}, nil
}

func (f *fakeRatingService) Update(ctx context.Context, rater ratingdomain.Member, orgID string, ratingID string, req ratingdomain.UpdateRatingRequest) (*ratingdomain.RatingView, error) {
	f.lastReader = rater
	f.lastUpdate = &req
	return &ratingdomain.RatingView{ID: ratingID, OrganizationID: orgID}, nil
}

func (f *fakeRatingService) Delete(ctx context.Context, rater ratingdomain.Member, orgID string, ratingID string) error {
	return ratingdomain.ErrNotFound
}

func (f *fakeRatingService) ListReceived(ctx context.Context, employeeID snowflake.ID) ([]ratingdomain.RatingView, error) {
	return []ratingdomain.RatingView{{ID: "901", EmployeeID: employeeID.String()}}, nil
}

func (f *fakeRatingService) ListGiven(ctx context.Context, supervisorID snowflake.ID) ([]ratingdomain.RatingView, error) {
	return nil, nil
}

func (f *fakeRatingService) Report(ctx context.Context, reader ratingdomain.Member, orgID string, ratingID string) (*ratingdomain.Report, error) {
	f.lastReader = reader
	if f.report == nil {
		return nil, ratingdomain.ErrReportUnavailable
	}
	return f.report, nil
}

// fakeInvitationService decodes accept tokens with the real codec so the
// handler sees the same errors the service would return.
type fakeInvitationService struct {
	codec     *token.Codec
	invite    *invitationdomain.InviteRequest
	inviteErr error
	resend    *invitationdomain.ResendRequest
}

func (f *fakeInvitationService) Invite(ctx context.Context, inviterID snowflake.ID, orgID string, req invitationdomain.InviteRequest) (*invitationdomain.InviteResult, error) {
	f.invite = &req
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	return &invitationdomain.InviteResult{
		Email:        req.Email,
		Role:         req.Role,
		Status:       orgdomain.MemberInvited,
		Organization: invitationdomain.OrganizationRef{ID: orgID, Name: "Acme"},
		InviteSent:   true,
	}, nil
}

func (f *fakeInvitationService) Resend(ctx context.Context, inviterID snowflake.ID, orgID string, req invitationdomain.ResendRequest) (*invitationdomain.InviteResult, error) {
	f.resend = &req
	return nil, invitationdomain.ErrInvitationNotFound
}

func (f *fakeInvitationService) Accept(ctx context.Context, req invitationdomain.AcceptRequest) (*invitationdomain.AcceptResult, error) {
	invite, err := f.codec.DecodeInvite(req.Token)
	if err != nil {
		return nil, err
	}
	userID, _ := snowflake.ParseString(invite.UserID)
	return &invitationdomain.AcceptResult{
		User:  authdomain.User{ID: userID, FirstName: req.FirstName, LastName: req.LastName},
		Token: "session-token",
	}, nil
}
