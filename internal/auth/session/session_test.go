package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/appraisal/internal/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_IsImmutable(t *testing.T) {
	perms := []permission.Permission{permission.MustParse("RATING:READ:OWN")}
	memberships := []Membership{{OrganizationID: "1", Role: "EMPLOYEE", Permissions: perms}}

	s := New("42", memberships, "raw", time.Unix(100, 0))

	memberships[0].Role = "OWNER"
	perms[0] = permission.MustParse("RATING:*:*")

	got, ok := s.Membership("1")
	require.True(t, ok)
	assert.Equal(t, "EMPLOYEE", got.Role)
	assert.Equal(t, "RATING:READ:OWN", got.Permissions[0].String())

	got.Permissions[0] = permission.MustParse("USER:*:*")
	again, _ := s.Membership("1")
	assert.Equal(t, "RATING:READ:OWN", again.Permissions[0].String())

	listed := s.Memberships()
	listed[0].OrganizationID = "2"
	_, ok = s.Membership("1")
	assert.True(t, ok)
}

func TestSession_MembershipMissing(t *testing.T) {
	s := New("42", nil, "raw", time.Time{})
	_, ok := s.Membership("1")
	assert.False(t, ok)
	assert.False(t, s.IsZero())
	assert.True(t, Session{}.IsZero())
}

func TestManager_ReadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager()

	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer   abc", "abc", true},
		{"", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			c.Request.Header.Set("Authorization", tc.header)
		}
		token, ok := m.ReadToken(c)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.token, token, tc.header)
	}
}

func TestManager_AttachAndRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := FromGin(c)
	assert.False(t, ok)

	m.Attach(c, New("7", nil, "tok", time.Time{}))
	s, ok := FromGin(c)
	require.True(t, ok)
	assert.Equal(t, "7", s.UserID())
	assert.Equal(t, "tok", s.Token())

	m.AttachMembership(c, Membership{OrganizationID: "9", Role: "OWNER"})
	membership, ok := MembershipFromGin(c)
	require.True(t, ok)
	assert.Equal(t, "9", membership.OrganizationID)
}
