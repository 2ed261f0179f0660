package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/auth/domain"
	"github.com/smallbiznis/appraisal/internal/auth/repository"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	"github.com/smallbiznis/appraisal/internal/authorization"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/config"
	criteriarepo "github.com/smallbiznis/appraisal/internal/criteria/repository"
	"github.com/smallbiznis/appraisal/internal/migration"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	orgrepo "github.com/smallbiznis/appraisal/internal/organization/repository"
	orgservice "github.com/smallbiznis/appraisal/internal/organization/service"
	"github.com/smallbiznis/appraisal/internal/permission"
	ratingrepo "github.com/smallbiznis/appraisal/internal/rating/repository"
	ratingservice "github.com/smallbiznis/appraisal/internal/rating/service"
	"github.com/smallbiznis/appraisal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc    domain.Service
	db     *gorm.DB
	tokens *token.Codec
	orgs   orgdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Run(conn))

	log := zaptest.NewLogger(t)
	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
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

	orgs := orgrepo.NewRepository(conn)
	orgSvc := orgservice.NewService(orgservice.Params{
		DB: conn, Log: log, Repo: orgs, GenID: node, Clock: clk, Authz: authz, Tokens: codec,
	})
	ratings := ratingservice.NewService(ratingservice.Params{
		DB:       conn,
		Log:      log,
		Repo:     ratingrepo.NewRepository(conn),
		Members:  orgs,
		Criteria: criteriarepo.NewRepository(conn),
		GenID:    node,
		Clock:    clk,
	})

	return &fixture{
		svc: New(Params{
			DB:      conn,
			Log:     log,
			Repo:    repository.New(conn),
			Orgs:    orgs,
			OrgSvc:  orgSvc,
			Ratings: ratings,
			Authz:   authz,
			Tokens:  codec,
			GenID:   node,
			Clock:   clk,
		}),
		db:     conn,
		tokens: codec,
		orgs:   orgs,
	}
}

func registerRequest() domain.RegisterRequest {
	return domain.RegisterRequest{
		FirstName:        "Olive",
		LastName:         "Owner",
		Email:            " Olive@Acme.test ",
		Password:         "Secret#123",
		OrganizationName: "Acme",
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	assert.Equal(t, "olive@acme.test", result.User.Email)
	assert.NotEqual(t, "Secret#123", result.User.PasswordHash)
	assert.Equal(t, result.User.ID, result.Organization.OwnerID)
	assert.Equal(t, "acme", result.Organization.Slug)

	sess, err := f.tokens.Decode(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID.String(), sess.UserID())
	m, ok := sess.Membership(result.Organization.ID.String())
	require.True(t, ok)
	assert.Equal(t, orgdomain.RoleOwner, m.Role)
	assert.True(t, m.Allows([]permission.Permission{permission.MustParse("ORGANIZATION:CRITERIA:CREATE")}))

	member, err := f.orgs.FindMember(ctx, result.Organization.ID, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.MemberActive, member.Status)
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	again := registerRequest()
	again.OrganizationName = "Globex"
	_, err = f.svc.Register(ctx, again)
	assert.ErrorIs(t, err, domain.ErrUserExists)

	sameOrg := registerRequest()
	sameOrg.Email = "other@acme.test"
	_, err = f.svc.Register(ctx, sameOrg)
	assert.ErrorIs(t, err, domain.ErrOrganizationExists)

	// Nothing from the failed attempts was persisted.
	var users int64
	require.NoError(t, f.db.Model(&domain.User{}).Count(&users).Error)
	assert.EqualValues(t, 1, users)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := registerRequest()
	req.Email = "not an email"
	_, err := f.svc.Register(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	req = registerRequest()
	req.Password = "short"
	_, err = f.svc.Register(ctx, req)
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	req = registerRequest()
	req.OrganizationName = "  "
	_, err = f.svc.Register(ctx, req)
	assert.ErrorIs(t, err, orgdomain.ErrNameRequired)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	result, err := f.svc.Login(ctx, domain.LoginRequest{Email: "OLIVE@acme.test", Password: "Secret#123"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, result.User.ID)

	sess, err := f.tokens.Decode(result.Token)
	require.NoError(t, err)
	require.Len(t, sess.Memberships(), 1)

	for _, req := range []domain.LoginRequest{
		{Email: "olive@acme.test", Password: "wrong"},
		{Email: "nobody@acme.test", Password: "Secret#123"},
		{Email: "olive@acme.test", Password: ""},
		{Email: "garbage", Password: "Secret#123"},
	} {
		_, err := f.svc.Login(ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials, req.Email)
	}
}

func TestWhoAmI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	profile, err := f.svc.WhoAmI(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "olive@acme.test", profile.User.Email)
	require.Len(t, profile.Memberships, 1)
	require.NotNil(t, profile.Memberships[0].Organization)
	assert.Equal(t, "Acme", profile.Memberships[0].Organization.Name)
	assert.Empty(t, profile.Memberships[0].Employees)
	require.Len(t, profile.OwnedOrganizations, 1)
	assert.Empty(t, profile.RatingsReceived)
	assert.Empty(t, profile.RatingsGiven)

	_, err = f.svc.WhoAmI(ctx, snowflake.ID(999))
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Jane@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", email)

	for _, raw := range []string{"", "jane", "Jane <jane@example.com>"} {
		_, err := NormalizeEmail(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, raw)
	}
}
