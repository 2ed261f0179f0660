package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	obscontext "github.com/smallbiznis/appraisal/internal/observability/context"
	"github.com/smallbiznis/appraisal/internal/permission"
	ratingdomain "github.com/smallbiznis/appraisal/internal/rating/domain"
)

// GuardOptions configures one protected route.
type GuardOptions struct {
	// OrgParam names the path parameter holding the organization id.
	OrgParam string
	// Permissions are alternatives; holding any one of them is enough.
	Permissions []permission.Permission
}

// Guard authenticates the bearer token and, when an organization is named,
// checks the caller's membership grants before running the handler.
func (s *Server) Guard(opts GuardOptions) gin.HandlerFunc {
	required := append([]permission.Permission(nil), opts.Permissions...)
	orgParam := strings.TrimSpace(opts.OrgParam)

	return func(c *gin.Context) {
		raw, ok := s.sessions.ReadToken(c)
		if !ok {
			s.deny(c, "missing_token", ErrMissingAuthToken)
			return
		}

		sess, err := s.tokens.Decode(raw)
		if err != nil {
			s.deny(c, tokenDenyReason(err), err)
			return
		}
		ctx := obscontext.WithUserID(c.Request.Context(), sess.UserID())
		c.Request = c.Request.WithContext(ctx)
		s.sessions.Attach(c, sess)

		if len(required) > 0 && orgParam == "" {
			AbortWithError(c, misconfiguredGate(c.FullPath()))
			return
		}

		if orgParam != "" {
			orgID := strings.TrimSpace(c.Param(orgParam))
			membership, found, err := s.authz.ResolveMembership(ctx, sess, orgID)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			if !found {
				s.deny(c, "not_member", ErrNotOrganizationMember)
				return
			}
			if len(required) > 0 && !membership.Allows(required) {
				s.deny(c, "missing_permissions", ErrMissingPermissions)
				return
			}
			c.Request = c.Request.WithContext(obscontext.WithOrgID(ctx, orgID))
			s.sessions.AttachMembership(c, membership)
		}

		c.Next()
	}
}

func (s *Server) deny(c *gin.Context, reason string, err error) {
	s.obsMetrics.RecordAccessDenied(c.Request.Context(), reason)
	AbortWithError(c, err)
}

func tokenDenyReason(err error) string {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, token.ErrInvalidTokenType):
		return "invalid_token_type"
	default:
		return "invalid_token"
	}
}

func requirePermissions(raw ...string) []permission.Permission {
	out := make([]permission.Permission, 0, len(raw))
	for _, item := range raw {
		out = append(out, permission.MustParse(item))
	}
	return out
}

func (s *Server) currentSession(c *gin.Context) (session.Session, error) {
	sess, ok := session.FromGin(c)
	if !ok {
		return session.Session{}, ErrMissingAuthToken
	}
	return sess, nil
}

func (s *Server) currentUserID(c *gin.Context) (snowflake.ID, error) {
	sess, err := s.currentSession(c)
	if err != nil {
		return 0, err
	}
	userID, err := snowflake.ParseString(sess.UserID())
	if err != nil || userID == 0 {
		return 0, token.ErrInvalidToken
	}
	return userID, nil
}

// currentMember is the caller as seen by the rating rules.
func (s *Server) currentMember(c *gin.Context) (ratingdomain.Member, error) {
	userID, err := s.currentUserID(c)
	if err != nil {
		return ratingdomain.Member{}, err
	}
	membership, ok := session.MembershipFromGin(c)
	if !ok {
		return ratingdomain.Member{}, ErrNotOrganizationMember
	}
	return ratingdomain.Member{UserID: userID, Role: membership.Role}, nil
}
