// Package domain describes organization invitations.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/appraisal/internal/auth/domain"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
)

type Service interface {
	// Invite creates an INVITED membership, creating the user when the email
	// is new, and emails a one hour acceptance link.
	Invite(ctx context.Context, inviterID snowflake.ID, orgID string, req InviteRequest) (*InviteResult, error)
	// Resend issues a fresh acceptance link for a pending invitation.
	Resend(ctx context.Context, inviterID snowflake.ID, orgID string, req ResendRequest) (*InviteResult, error)
	// Accept activates the membership named by an invitation token and sets the
	// user's profile and password.
	Accept(ctx context.Context, req AcceptRequest) (*AcceptResult, error)
}

type InviteRequest struct {
	Email string
	Role  string
}

// ResendRequest names the invited user by id or, when UserID is empty, by
// email.
type ResendRequest struct {
	UserID string
	Email  string
}

type AcceptRequest struct {
	Token     string
	FirstName string
	LastName  string
	Password  string
}

type OrganizationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type InviteResult struct {
	UserID       string          `json:"userId"`
	Email        string          `json:"email"`
	Role         string          `json:"role"`
	Status       string          `json:"status"`
	Organization OrganizationRef `json:"organization"`
	InviteSent   bool            `json:"inviteSent"`
}

type AcceptResult struct {
	User                    authdomain.User                `json:"user"`
	OrganizationMemberships []orgdomain.OrganizationMember `json:"organizationMemberships"`
	Token                   string                         `json:"token"`
}

var (
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrInvitationNotFound   = errors.New("invitation_not_found")
	ErrMemberExists         = errors.New("member_already_exists")
	ErrUserDeactivated      = errors.New("user_deactivated")
	ErrInvalidRole          = errors.New("invalid_invite_role")
	ErrGrantNotAllowed      = errors.New("grant_not_allowed")
)
