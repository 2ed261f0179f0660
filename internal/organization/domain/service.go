package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/auth/session"
)

type Service interface {
	Create(ctx context.Context, sess session.Session, req CreateOrganizationRequest) (*CreateOrganizationResult, error)
	ListOwned(ctx context.Context, userID snowflake.ID) ([]Organization, error)
	Delete(ctx context.Context, userID snowflake.ID, orgID string) error
	AssignEmployees(ctx context.Context, orgID string, req AssignEmployeesRequest) (*AssignEmployeesResult, error)
	ListMembers(ctx context.Context, orgID string) ([]MemberSummary, error)
	ListEmployees(ctx context.Context, orgID string) ([]MemberUser, error)
	ListAssignments(ctx context.Context, orgID string) ([]Assignment, error)
	// ActiveMemberships returns the token snapshots for every ACTIVE membership of userID.
	ActiveMemberships(ctx context.Context, userID snowflake.ID) ([]session.Membership, error)
}

type CreateOrganizationRequest struct {
	Name string
}

type CreateOrganizationResult struct {
	Organization Organization
	Token        string
}

type AssignEmployeesRequest struct {
	SupervisorID string
	EmployeeIDs  []string
}

type AssignEmployeesResult struct {
	AssignedEmployees int    `json:"assignedEmployees"`
	SupervisorID      string `json:"supervisorId"`
	OrganizationID    string `json:"organizationId"`
}

type MemberSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type PersonSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type Assignment struct {
	Supervisor PersonSummary   `json:"supervisor"`
	Employees  []PersonSummary `json:"employees"`
}

var (
	ErrNameRequired       = errors.New("org_name_required")
	ErrOrgExists          = errors.New("org_exists")
	ErrOrgNotFound        = errors.New("org_not_found")
	ErrMemberNotFound     = errors.New("member_not_found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSupervisorNotFound = errors.New("supervisor_not_found")
	ErrInvalidAssignment  = errors.New("invalid_assignment")
	ErrInvalidUser        = errors.New("invalid_user")
)

// EmployeesNotFoundError lists the requested employees that are not ACTIVE
// EMPLOYEE members of the organization.
type EmployeesNotFoundError struct {
	IDs []string
}

func (e *EmployeesNotFoundError) Error() string {
	return "employees_not_found"
}
