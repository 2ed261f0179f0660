// Package session holds the authenticated identity decoded from a bearer
// token. A Session is immutable: handlers receive it by value and a new one
// only comes from issuing a new token.
package session

import (
	"time"

	"github.com/smallbiznis/appraisal/internal/permission"
)

// Membership is the per-organization grant snapshot carried in a token.
type Membership struct {
	OrganizationID string                  `json:"organizationId"`
	Role           string                  `json:"role"`
	Permissions    []permission.Permission `json:"permissions"`
}

func (m Membership) clone() Membership {
	m.Permissions = append([]permission.Permission(nil), m.Permissions...)
	return m
}

// Allows reports whether the membership satisfies any of required.
func (m Membership) Allows(required []permission.Permission) bool {
	return permission.Matches(m.Permissions, required)
}

type Session struct {
	userID      string
	memberships []Membership
	token       string
	expiresAt   time.Time
}

func New(userID string, memberships []Membership, token string, expiresAt time.Time) Session {
	copied := make([]Membership, 0, len(memberships))
	for _, m := range memberships {
		copied = append(copied, m.clone())
	}
	return Session{
		userID:      userID,
		memberships: copied,
		token:       token,
		expiresAt:   expiresAt,
	}
}

func (s Session) UserID() string       { return s.userID }
func (s Session) Token() string        { return s.token }
func (s Session) ExpiresAt() time.Time { return s.expiresAt }
func (s Session) IsZero() bool         { return s.userID == "" }

// Memberships returns a copy of every organization snapshot.
func (s Session) Memberships() []Membership {
	out := make([]Membership, 0, len(s.memberships))
	for _, m := range s.memberships {
		out = append(out, m.clone())
	}
	return out
}

// Membership returns the snapshot for orgID.
func (s Session) Membership(orgID string) (Membership, bool) {
	for _, m := range s.memberships {
		if m.OrganizationID == orgID {
			return m.clone(), true
		}
	}
	return Membership{}, false
}
