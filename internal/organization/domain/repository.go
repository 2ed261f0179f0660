package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type MemberFilter struct {
	Role         string
	Status       string
	SupervisorID *snowflake.ID
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	FindOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*Organization, error)
	ListOwnedOrganizations(ctx context.Context, ownerID snowflake.ID) ([]Organization, error)
	ListOrganizations(ctx context.Context, ids []snowflake.ID) ([]Organization, error)
	// DeleteOrganization removes the organization together with its members,
	// criteria, ratings and criteria scores.
	DeleteOrganization(ctx context.Context, id snowflake.ID) error

	AddMember(ctx context.Context, member OrganizationMember) error
	FindMember(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	ListMembersByUser(ctx context.Context, userID snowflake.ID, status string) ([]OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID, filter MemberFilter) ([]MemberUser, error)
	ListMembersByUsers(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID) ([]OrganizationMember, error)
	UpdateMemberStatus(ctx context.Context, orgID, userID snowflake.ID, from, to string) (bool, error)
	AssignSupervisor(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID, supervisorID snowflake.ID) (int64, error)
}
