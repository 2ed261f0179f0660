package session

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "bearer "

	sessionContextKey    = "auth.session"
	membershipContextKey = "auth.membership"
)

// Manager moves sessions between HTTP requests and handlers.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// ReadToken extracts the bearer credential from the Authorization header.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// Attach stores the decoded session for downstream handlers.
func (m *Manager) Attach(c *gin.Context, s Session) {
	c.Set(sessionContextKey, s)
}

// AttachMembership stores the membership the gate resolved for this request.
func (m *Manager) AttachMembership(c *gin.Context, membership Membership) {
	c.Set(membershipContextKey, membership)
}

func FromGin(c *gin.Context) (Session, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return Session{}, false
	}
	s, ok := value.(Session)
	if !ok || s.IsZero() {
		return Session{}, false
	}
	return s, true
}

func MembershipFromGin(c *gin.Context) (Membership, bool) {
	value, ok := c.Get(membershipContextKey)
	if !ok {
		return Membership{}, false
	}
	m, ok := value.(Membership)
	return m, ok
}
