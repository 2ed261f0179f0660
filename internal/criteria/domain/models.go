// Package domain contains the rating criteria an organization scores against.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Criteria struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"column:org_id;not null;index" json:"organizationId"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	MaxScore  int          `gorm:"column:max_score;not null" json:"maxScore"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Criteria) TableName() string { return "criteria" }
