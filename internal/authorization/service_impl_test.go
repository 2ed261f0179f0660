package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/config"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	"github.com/smallbiznis/appraisal/internal/permission"
	"github.com/smallbiznis/appraisal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, mode string) (Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&orgdomain.OrganizationMember{}))

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	return NewService(Params{
		DB:       conn,
		Log:      zaptest.NewLogger(t),
		Enforcer: enforcer,
		Policy:   config.NewStaticAccessPolicy(mode),
	}), conn
}

func TestDefaultPermissions(t *testing.T) {
	svc, _ := newTestService(t, config.MembershipCheckSnapshot)

	owner, err := svc.DefaultPermissions("owner")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ORGANIZATION:*:*", "USER:*:*", "RATING:*:*"}, permission.Strings(owner))

	supervisor, err := svc.DefaultPermissions(RoleSupervisor)
	require.NoError(t, err)
	assert.Contains(t, permission.Strings(supervisor), "RATING:CREATE:ASSIGNED")
	assert.NotContains(t, permission.Strings(supervisor), "RATING:*:*")

	employee, err := svc.DefaultPermissions(RoleEmployee)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"USER:READ:OWN",
		"USER:UPDATE:OWN",
		"USER:DELETE:OWN",
		"RATING:READ:OWN",
		"ORGANIZATION:READ:ASSIGNED",
	}, permission.Strings(employee))

	_, err = svc.DefaultPermissions("ADMIN")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestCanGrant(t *testing.T) {
	svc, _ := newTestService(t, config.MembershipCheckSnapshot)

	for _, tc := range []struct {
		granter, role string
		want          bool
	}{
		{RoleOwner, RoleSupervisor, true},
		{RoleOwner, RoleEmployee, true},
		{RoleOwner, RoleOwner, true},
		{RoleSupervisor, RoleEmployee, false},
		{RoleEmployee, RoleSupervisor, false},
		{RoleSupervisor, RoleOwner, false},
	} {
		got, err := svc.CanGrant(tc.granter, tc.role)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s grants %s", tc.granter, tc.role)
	}

	_, err := svc.CanGrant("ADMIN", RoleEmployee)
	assert.ErrorIs(t, err, ErrUnknownRole)
	_, err = svc.CanGrant(RoleOwner, "ADMIN")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestCanGrant_FollowsStoredPolicy(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)
	svc := NewService(Params{DB: conn, Log: zaptest.NewLogger(t), Enforcer: enforcer})

	ok, err := svc.CanGrant(RoleSupervisor, RoleEmployee)
	require.NoError(t, err)
	assert.False(t, ok)

	// USER:UPDATE:OWN and USER:DELETE:OWN are the employee grants a
	// supervisor lacks by default.
	_, err = enforcer.AddPolicy("role:supervisor", "USER", "*", "OWN")
	require.NoError(t, err)

	ok, err = svc.CanGrant(RoleSupervisor, RoleEmployee)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewEnforcer_SeedIsIdempotent(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	first, err := NewEnforcer(conn)
	require.NoError(t, err)
	before, err := first.GetPolicy()
	require.NoError(t, err)

	second, err := NewEnforcer(conn)
	require.NoError(t, err)
	after, err := second.GetPolicy()
	require.NoError(t, err)

	assert.Len(t, after, len(before))
}

func TestResolveMembership_Snapshot(t *testing.T) {
	svc, conn := newTestService(t, config.MembershipCheckSnapshot)
	sess := session.New("42", []session.Membership{{
		OrganizationID: "100",
		Role:           RoleEmployee,
		Permissions:    []permission.Permission{permission.MustParse("RATING:READ:OWN")},
	}}, "raw", time.Now().Add(time.Hour))

	// A widened row is ignored until a new token is issued.
	require.NoError(t, conn.Create(&orgdomain.OrganizationMember{
		ID:          snowflake.ID(1),
		OrgID:       snowflake.ID(100),
		UserID:      snowflake.ID(42),
		Role:        RoleEmployee,
		Status:      orgdomain.MemberActive,
		Permissions: datatypes.JSONSlice[string]{"RATING:*:*"},
	}).Error)

	m, ok, err := svc.ResolveMembership(context.Background(), sess, "100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"RATING:READ:OWN"}, permission.Strings(m.Permissions))

	_, ok, err = svc.ResolveMembership(context.Background(), sess, "200")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.ResolveMembership(context.Background(), sess, "  ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveMembership_Live(t *testing.T) {
	svc, conn := newTestService(t, config.MembershipCheckLive)
	sess := session.New("42", []session.Membership{{
		OrganizationID: "100",
		Role:           RoleOwner,
		Permissions:    []permission.Permission{permission.MustParse("ORGANIZATION:*:*")},
	}}, "raw", time.Now().Add(time.Hour))

	_, ok, err := svc.ResolveMembership(context.Background(), sess, "100")
	require.NoError(t, err)
	assert.False(t, ok, "token memberships are not trusted in live mode")

	require.NoError(t, conn.Create(&orgdomain.OrganizationMember{
		ID:          snowflake.ID(1),
		OrgID:       snowflake.ID(100),
		UserID:      snowflake.ID(42),
		Role:        RoleSupervisor,
		Status:      orgdomain.MemberActive,
		Permissions: datatypes.JSONSlice[string]{"RATING:CREATE:ASSIGNED"},
	}).Error)
	require.NoError(t, conn.Create(&orgdomain.OrganizationMember{
		ID:          snowflake.ID(2),
		OrgID:       snowflake.ID(300),
		UserID:      snowflake.ID(42),
		Role:        RoleEmployee,
		Status:      orgdomain.MemberInvited,
		Permissions: datatypes.JSONSlice[string]{"RATING:READ:OWN"},
	}).Error)

	m, ok, err := svc.ResolveMembership(context.Background(), sess, "100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RoleSupervisor, m.Role)
	assert.Equal(t, []string{"RATING:CREATE:ASSIGNED"}, permission.Strings(m.Permissions))

	_, ok, err = svc.ResolveMembership(context.Background(), sess, "300")
	require.NoError(t, err)
	assert.False(t, ok, "invited members are not active yet")

	_, ok, err = svc.ResolveMembership(context.Background(), sess, "not-an-id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveMembership_LiveSkipsMalformedGrants(t *testing.T) {
	svc, conn := newTestService(t, config.MembershipCheckLive)
	sess := session.New("42", nil, "raw", time.Now().Add(time.Hour))

	require.NoError(t, conn.Create(&orgdomain.OrganizationMember{
		ID:          snowflake.ID(1),
		OrgID:       snowflake.ID(100),
		UserID:      snowflake.ID(42),
		Role:        RoleEmployee,
		Status:      orgdomain.MemberActive,
		Permissions: datatypes.JSONSlice[string]{"RATING:READ:OWN", "BOGUS", "RATING:FLY:OWN"},
	}).Error)

	m, ok, err := svc.ResolveMembership(context.Background(), sess, "100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"RATING:READ:OWN"}, permission.Strings(m.Permissions))

	var member orgdomain.OrganizationMember
	require.NoError(t, conn.First(&member, "id = ?", 1).Error)
	assert.Equal(t, permission.Strings(member.Snapshot().Permissions), permission.Strings(m.Permissions))
}
