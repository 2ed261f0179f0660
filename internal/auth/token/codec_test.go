package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, secret string, clk clock.Clock) *Codec {
	t.Helper()
	codec, err := NewCodec(secret, 0, 0, clk)
	require.NoError(t, err)
	return codec
}

func sampleMemberships() []session.Membership {
	return []session.Membership{
		{
			OrganizationID: "100",
			Role:           "OWNER",
			Permissions: []permission.Permission{
				permission.MustParse("ORGANIZATION:*:*"),
				permission.MustParse("RATING:*:*"),
			},
		},
		{
			OrganizationID: "200",
			Role:           "EMPLOYEE",
			Permissions:    []permission.Permission{permission.MustParse("RATING:READ:OWN")},
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	codec := newTestCodec(t, "secret", clk)

	raw, err := codec.Issue("42", sampleMemberships())
	require.NoError(t, err)

	s, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", s.UserID())
	assert.Equal(t, raw, s.Token())
	assert.Equal(t, sampleMemberships(), s.Memberships())
	assert.True(t, clk.Now().Add(DefaultSessionTTL).Equal(s.ExpiresAt()))
}

func TestCodec_WrongSecret(t *testing.T) {
	issuer := newTestCodec(t, "secret-a", nil)
	verifier := newTestCodec(t, "secret-b", nil)

	raw, err := issuer.Issue("42", nil)
	require.NoError(t, err)

	_, err = verifier.Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Expired(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	codec := newTestCodec(t, "secret", clk)

	raw, err := codec.Issue("42", sampleMemberships())
	require.NoError(t, err)

	clk.Advance(DefaultSessionTTL - time.Minute)
	_, err = codec.Decode(raw)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = codec.Decode(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodec_Garbage(t *testing.T) {
	codec := newTestCodec(t, "secret", nil)
	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := codec.Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec := newTestCodec(t, "secret", nil)
	claims := jwt.MapClaims{
		"id":  "42",
		"iss": issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_RejectsMalformedPermission(t *testing.T) {
	codec := newTestCodec(t, "secret", nil)
	claims := jwt.MapClaims{
		"id":  "42",
		"iss": issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
		"organizations": []map[string]any{
			{"organizationId": "1", "role": "OWNER", "permissions": []string{"not-a-permission"}},
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_InviteRoundTrip(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	codec := newTestCodec(t, "secret", clk)

	raw, err := codec.IssueInvite("7", "100")
	require.NoError(t, err)

	invite, err := codec.DecodeInvite(raw)
	require.NoError(t, err)
	assert.Equal(t, "7", invite.UserID)
	assert.Equal(t, "100", invite.OrganizationID)
	assert.True(t, clk.Now().Add(time.Hour).Equal(invite.ExpiresAt))

	clk.Advance(time.Hour + time.Second)
	_, err = codec.DecodeInvite(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodec_SessionTokenIsNotAnInvite(t *testing.T) {
	codec := newTestCodec(t, "secret", nil)

	raw, err := codec.Issue("7", sampleMemberships())
	require.NoError(t, err)

	_, err = codec.DecodeInvite(raw)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestCodec_InviteIsNotASessionToken(t *testing.T) {
	codec := newTestCodec(t, "secret", nil)

	raw, err := codec.IssueInvite("7", "100")
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec("  ", 0, 0, nil)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
