package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/appraisal/internal/auth/domain"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	"github.com/smallbiznis/appraisal/internal/authorization"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/config"
	criteriadomain "github.com/smallbiznis/appraisal/internal/criteria/domain"
	"github.com/smallbiznis/appraisal/internal/migration"
	"github.com/smallbiznis/appraisal/internal/organization/domain"
	"github.com/smallbiznis/appraisal/internal/organization/repository"
	"github.com/smallbiznis/appraisal/internal/permission"
	"github.com/smallbiznis/appraisal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const (
	acmeID    = snowflake.ID(100)
	ownerID   = snowflake.ID(1)
	supA      = snowflake.ID(2)
	supB      = snowflake.ID(3)
	empA      = snowflake.ID(4)
	empB      = snowflake.ID(5)
	outsider  = snowflake.ID(6)
	invitedID = snowflake.ID(7)
)

type fixture struct {
	svc    domain.Service
	db     *gorm.DB
	tokens *token.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Run(conn))

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	authz := authorization.NewService(authorization.Params{
		DB:       conn,
		Log:      log,
		Enforcer: enforcer,
		Policy:   config.NewStaticAccessPolicy(config.MembershipCheckSnapshot),
	})

	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	codec, err := token.NewCodec("test-secret", 0, 0, clk)
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &fixture{
		svc: NewService(Params{
			DB:     conn,
			Log:    log,
			Repo:   repository.NewRepository(conn),
			GenID:  node,
			Clock:  clk,
			Authz:  authz,
			Tokens: codec,
		}),
		db:     conn,
		tokens: codec,
	}
}

func (f *fixture) seedAcme(t *testing.T) {
	t.Helper()
	users := []authdomain.User{
		{ID: ownerID, Email: "owner@acme.test", FirstName: "Olive", LastName: "Owner", PasswordHash: "x"},
		{ID: supA, Email: "ann@acme.test", FirstName: "Ann", LastName: "Able", PasswordHash: "x"},
		{ID: supB, Email: "bob@acme.test", FirstName: "Bob", LastName: "Baker", PasswordHash: "x"},
		{ID: empA, Email: "cat@acme.test", FirstName: "Cat", LastName: "Cole", PasswordHash: "x"},
		{ID: empB, Email: "dan@acme.test", FirstName: "Dan", LastName: "Dale", PasswordHash: "x"},
		{ID: outsider, Email: "eli@other.test", FirstName: "Eli", PasswordHash: "x"},
		{ID: invitedID, Email: "fay@acme.test", PasswordHash: "x"},
	}
	require.NoError(t, f.db.Create(&users).Error)
	require.NoError(t, f.db.Create(&domain.Organization{
		ID: acmeID, Name: "Acme", Slug: "acme", Status: domain.StatusActive, OwnerID: ownerID,
	}).Error)
	require.NoError(t, f.db.Create(&[]domain.OrganizationMember{
		{ID: 10, OrgID: acmeID, UserID: ownerID, Role: domain.RoleOwner, Status: domain.MemberActive},
		{ID: 11, OrgID: acmeID, UserID: supA, Role: domain.RoleSupervisor, Status: domain.MemberActive},
		{ID: 12, OrgID: acmeID, UserID: supB, Role: domain.RoleSupervisor, Status: domain.MemberActive},
		{ID: 13, OrgID: acmeID, UserID: empA, Role: domain.RoleEmployee, Status: domain.MemberActive},
		{ID: 14, OrgID: acmeID, UserID: empB, Role: domain.RoleEmployee, Status: domain.MemberActive},
		{ID: 15, OrgID: acmeID, UserID: invitedID, Role: domain.RoleEmployee, Status: domain.MemberInvited},
	}).Error)
}

func userSession(id snowflake.ID) session.Session {
	return session.New(id.String(), nil, "raw", time.Now().Add(time.Hour))
}

func TestCreate_OwnerMembershipAndToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&authdomain.User{ID: ownerID, Email: "o@acme.test", PasswordHash: "x"}).Error)

	result, err := f.svc.Create(context.Background(), userSession(ownerID), domain.CreateOrganizationRequest{Name: "  Acme Corp "})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", result.Organization.Name)
	assert.Equal(t, "acme-corp", result.Organization.Slug)
	assert.Equal(t, ownerID, result.Organization.OwnerID)

	sess, err := f.tokens.Decode(result.Token)
	require.NoError(t, err)
	m, ok := sess.Membership(result.Organization.ID.String())
	require.True(t, ok)
	assert.Equal(t, domain.RoleOwner, m.Role)
	assert.True(t, m.Allows([]permission.Permission{permission.MustParse("RATING:*:*")}))

	_, err = f.svc.Create(context.Background(), userSession(ownerID), domain.CreateOrganizationRequest{Name: "Acme Corp"})
	assert.ErrorIs(t, err, domain.ErrOrgExists)

	_, err = f.svc.Create(context.Background(), userSession(ownerID), domain.CreateOrganizationRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrNameRequired)

	_, err = f.svc.Create(context.Background(), userSession(0), domain.CreateOrganizationRequest{Name: "Other"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestListOwned(t *testing.T) {
	f := newFixture(t)
	f.seedAcme(t)

	owned, err := f.svc.ListOwned(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "Acme", owned[0].Name)

	none, err := f.svc.ListOwned(context.Background(), supA)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDelete_Cascades(t *testing.T) {
	f := newFixture(t)
	f.seedAcme(t)
	require.NoError(t, f.db.Create(&criteriadomain.Criteria{ID: 500, OrgID: acmeID, Name: "Quality", MaxScore: 5}).Error)

	err := f.svc.Delete(context.Background(), supA, acmeID.String())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, f.svc.Delete(context.Background(), ownerID, acmeID.String()))

	var members, criteria int64
	require.NoError(t, f.db.Model(&domain.OrganizationMember{}).Where("org_id = ?", acmeID).Count(&members).Error)
	require.NoError(t, f.db.Model(&criteriadomain.Criteria{}).Where("org_id = ?", acmeID).Count(&criteria).Error)
	assert.Zero(t, members)
	assert.Zero(t, criteria)

	err = f.svc.Delete(context.Background(), ownerID, acmeID.String())
	assert.ErrorIs(t, err, domain.ErrOrgNotFound)
}

func TestAssignEmployees(t *testing.T) {
	f := newFixture(t)
	f.seedAcme(t)
	ctx := context.Background()

	result, err := f.svc.AssignEmployees(ctx, acmeID.String(), domain.AssignEmployeesRequest{
		SupervisorID: supA.String(),
		EmployeeIDs:  []string{empA.String(), empB.String(), empA.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.AssignedEmployees)
	assert.Equal(t, supA.String(), result.SupervisorID)

	assignments, err := f.svc.ListAssignments(ctx, acmeID.String())
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	for _, a := range assignments {
		if a.Supervisor.ID == supA.String() {
			assert.Len(t, a.Employees, 2)
		} else {
			assert.Empty(t, a.Employees)
		}
	}

	// Reassigning moves the employee.
	_, err = f.svc.AssignEmployees(ctx, acmeID.String(), domain.AssignEmployeesRequest{
		SupervisorID: supB.String(),
		EmployeeIDs:  []string{empB.String()},
	})
	require.NoError(t, err)
	member, err := repository.NewRepository(f.db).FindMember(ctx, acmeID, empB)
	require.NoError(t, err)
	require.NotNil(t, member.SupervisorID)
	assert.Equal(t, supB, *member.SupervisorID)
}

func TestAssignEmployees_Rejections(t *testing.T) {
	f := newFixture(t)
	f.seedAcme(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		supervisor string
		employees  []string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "supervisor is not a supervisor",
			supervisor: empA.String(),
			employees:  []string{empB.String()},
			check:      func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrSupervisorNotFound) },
		},
		{
			name:       "supervisor outside organization",
			supervisor: outsider.String(),
			employees:  []string{empA.String()},
			check:      func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrSupervisorNotFound) },
		},
		{
			name:       "self assignment",
			supervisor: supA.String(),
			employees:  []string{supA.String()},
			check:      func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrInvalidAssignment) },
		},
		{
			name:       "employees missing or not active",
			supervisor: supA.String(),
			employees:  []string{empA.String(), outsider.String(), invitedID.String(), supB.String(), "bogus"},
			check: func(t *testing.T, err error) {
				var notFound *domain.EmployeesNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, []string{"bogus"}, notFound.IDs)
			},
		},
		{
			name:       "non employee members",
			supervisor: supA.String(),
			employees:  []string{empA.String(), outsider.String(), invitedID.String(), supB.String()},
			check: func(t *testing.T, err error) {
				var notFound *domain.EmployeesNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, []string{outsider.String(), invitedID.String(), supB.String()}, notFound.IDs)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AssignEmployees(ctx, acmeID.String(), domain.AssignEmployeesRequest{
				SupervisorID: tc.supervisor,
				EmployeeIDs:  tc.employees,
			})
			tc.check(t, err)
		})
	}

	var assigned int64
	require.NoError(t, f.db.Model(&domain.OrganizationMember{}).Where("supervisor_id IS NOT NULL").Count(&assigned).Error)
	assert.Zero(t, assigned)
}

func TestAssignEmployees_RejectsCycle(t *testing.T) {
	f := newFixture(t)
	f.seedAcme(t)
	ctx := context.Background()

	// supB reports to supA through a direct row update; assigning supA
	// under supB would close the loop.
	require.NoError(t, f.db.Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND user_id = ?", acmeID, supB).
		Update("supervisor_id", supA).Error)
	require.NoError(t, f.db.Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND user_id = ?", acmeID, supA).
		Update("role", domain.RoleEmployee).Error)

	_, err := f.svc.AssignEmployees(ctx, acmeID.String(), domain.AssignEmployeesRequest{
		SupervisorID: supB.String(),
		EmployeeIDs:  []string{supA.String()},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignment)
}

func TestListMembersAndEmployees(t *testing.T) {
	f := newFixture(t)
	f.seedAcme(t)
	ctx := context.Background()

	members, err := f.svc.ListMembers(ctx, acmeID.String())
	require.NoError(t, err)
	assert.Len(t, members, 5, "invited members are excluded")
	names := map[string]string{}
	for _, m := range members {
		names[m.ID] = m.Name
	}
	assert.Equal(t, "Ann Able", names[supA.String()])

	employees, err := f.svc.ListEmployees(ctx, acmeID.String())
	require.NoError(t, err)
	assert.Len(t, employees, 3)

	_, err = f.svc.ListMembers(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrOrgNotFound)
}

func TestActiveMemberships(t *testing.T) {
	f := newFixture(t)
	f.seedAcme(t)

	active, err := f.svc.ActiveMemberships(context.Background(), empA)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, acmeID.String(), active[0].OrganizationID)

	pending, err := f.svc.ActiveMemberships(context.Background(), invitedID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
