// Package token signs and verifies the session and invitation credentials.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/config"
)

const (
	issuer = "appraisal"

	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultInviteTTL  = time.Hour

	TypeAcceptInvite = "ACCEPT_INVITE"
)

var (
	ErrInvalidToken     = errors.New("invalid_token")
	ErrTokenExpired     = errors.New("token_expired")
	ErrInvalidTokenType = errors.New("invalid_token_type")
	ErrMissingSecret    = errors.New("auth jwt secret is not configured")
)

type sessionClaims struct {
	UserID        string               `json:"id"`
	Organizations []session.Membership `json:"organizations"`
	Type          string               `json:"type,omitempty"`
	jwt.RegisteredClaims
}

type inviteClaims struct {
	UserID         string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Type           string `json:"type"`
	jwt.RegisteredClaims
}

// Invite is the verified payload of an invitation token.
type Invite struct {
	UserID         string
	OrganizationID string
	ExpiresAt      time.Time
}

type Codec struct {
	secret     []byte
	sessionTTL time.Duration
	inviteTTL  time.Duration
	clock      clock.Clock
}

func NewCodec(secret string, sessionTTL, inviteTTL time.Duration, clk clock.Clock) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if inviteTTL <= 0 {
		inviteTTL = DefaultInviteTTL
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Codec{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		inviteTTL:  inviteTTL,
		clock:      clk,
	}, nil
}

func NewFromConfig(cfg config.Config, clk clock.Clock) (*Codec, error) {
	return NewCodec(cfg.AuthJWTSecret, cfg.AuthTokenTTL, cfg.AuthInviteTTL, clk)
}

// Issue signs a session token carrying the given membership snapshots.
func (c *Codec) Issue(userID string, memberships []session.Membership) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("userID is required")
	}
	if memberships == nil {
		memberships = []session.Membership{}
	}
	claims := sessionClaims{
		UserID:           userID,
		Organizations:    memberships,
		RegisteredClaims: c.registered(userID, c.sessionTTL),
	}
	return c.sign(claims)
}

// Decode verifies a session token and returns the session it describes.
func (c *Codec) Decode(raw string) (session.Session, error) {
	var claims sessionClaims
	if err := c.parse(raw, &claims); err != nil {
		return session.Session{}, err
	}
	if claims.Type != "" {
		return session.Session{}, ErrInvalidTokenType
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return session.Session{}, ErrInvalidToken
	}
	return session.New(claims.UserID, claims.Organizations, raw, claims.ExpiresAt.Time), nil
}

// IssueInvite signs a short-lived token proving the right to accept an invitation.
func (c *Codec) IssueInvite(userID, orgID string) (string, error) {
	userID = strings.TrimSpace(userID)
	orgID = strings.TrimSpace(orgID)
	if userID == "" || orgID == "" {
		return "", errors.New("userID and orgID are required")
	}
	claims := inviteClaims{
		UserID:           userID,
		OrganizationID:   orgID,
		Type:             TypeAcceptInvite,
		RegisteredClaims: c.registered(userID, c.inviteTTL),
	}
	return c.sign(claims)
}

// DecodeInvite verifies an invitation token. A well-signed token of any other
// type fails with ErrInvalidTokenType.
func (c *Codec) DecodeInvite(raw string) (Invite, error) {
	var claims inviteClaims
	if err := c.parse(raw, &claims); err != nil {
		return Invite{}, err
	}
	if claims.Type != TypeAcceptInvite {
		return Invite{}, ErrInvalidTokenType
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.OrganizationID) == "" {
		return Invite{}, ErrInvalidToken
	}
	return Invite{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

func (c *Codec) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.clock.Now()
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        ulid.Make().String(),
	}
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *Codec) parse(raw string, claims jwt.Claims) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidToken
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
