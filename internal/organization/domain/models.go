// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/permission"
	"gorm.io/datatypes"
)

const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

const (
	RoleOwner      = "OWNER"
	RoleSupervisor = "SUPERVISOR"
	RoleEmployee   = "EMPLOYEE"
)

const (
	MemberInvited  = "INVITED"
	MemberActive   = "ACTIVE"
	MemberDeactive = "DEACTIVE"
)

// Organization represents a tenant. OwnerID never changes after creation.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_name" json:"name"`
	Slug      string       `gorm:"type:text;not null;index" json:"slug"`
	Status    string       `gorm:"type:text;not null" json:"status"`
	OwnerID   snowflake.ID `gorm:"column:owner_id;not null;index" json:"ownerId"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
// SupervisorID holds the user id of a SUPERVISOR member of the same organization.
type OrganizationMember struct {
	ID           snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID                `gorm:"column:org_id;not null;index;uniqueIndex:ux_org_user,priority:1" json:"organizationId"`
	UserID       snowflake.ID                `gorm:"column:user_id;not null;index;uniqueIndex:ux_org_user,priority:2" json:"userId"`
	Role         string                      `gorm:"type:text;not null" json:"role"`
	Status       string                      `gorm:"type:text;not null" json:"status"`
	Permissions  datatypes.JSONSlice[string] `gorm:"type:json" json:"permissions"`
	SupervisorID *snowflake.ID               `gorm:"column:supervisor_id;index" json:"supervisorId"`
	CreatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

// MemberUser is a membership joined with the member's profile.
type MemberUser struct {
	OrganizationMember
	Email     string `gorm:"column:email" json:"email"`
	FirstName string `gorm:"column:first_name" json:"firstName"`
	LastName  string `gorm:"column:last_name" json:"lastName"`
}

func (m MemberUser) FullName() string {
	switch {
	case m.FirstName == "" && m.LastName == "":
		return m.Email
	case m.LastName == "":
		return m.FirstName
	case m.FirstName == "":
		return m.LastName
	default:
		return m.FirstName + " " + m.LastName
	}
}

// Snapshot converts the membership to the form embedded in session tokens.
// Grants that no longer parse are dropped.
func (m OrganizationMember) Snapshot() session.Membership {
	perms := make([]permission.Permission, 0, len(m.Permissions))
	for _, raw := range m.Permissions {
		p, err := permission.Parse(raw)
		if err != nil {
			continue
		}
		perms = append(perms, p)
	}
	return session.Membership{
		OrganizationID: m.OrgID.String(),
		Role:           m.Role,
		Permissions:    perms,
	}
}
