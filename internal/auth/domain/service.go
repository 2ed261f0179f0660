package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	ratingdomain "github.com/smallbiznis/appraisal/internal/rating/domain"
)

type Service interface {
	// Register creates the user, their organization and the owner membership
	// in one transaction.
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	WhoAmI(ctx context.Context, userID snowflake.ID) (*Profile, error)
}

type RegisterRequest struct {
	FirstName        string
	LastName         string
	Email            string
	Password         string
	OrganizationName string
}

type RegisterResult struct {
	User         User                   `json:"user"`
	Organization orgdomain.Organization `json:"organization"`
	Token        string                 `json:"token"`
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Profile is everything the caller can see about themselves.
type Profile struct {
	User               User                      `json:"user"`
	Memberships        []MembershipDetail        `json:"organizationMemberships"`
	OwnedOrganizations []orgdomain.Organization  `json:"ownedOrganizations"`
	RatingsReceived    []ratingdomain.RatingView `json:"ratingsReceived"`
	RatingsGiven       []ratingdomain.RatingView `json:"ratingsGiven"`
}

type MembershipDetail struct {
	orgdomain.OrganizationMember
	Organization *orgdomain.Organization   `json:"organization"`
	Supervisor   *orgdomain.PersonSummary  `json:"supervisor"`
	Employees    []orgdomain.PersonSummary `json:"employees"`
}
