// Package domain holds performance ratings and the rules for who may write them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Rating is a supervisor's assessment of one employee over a period.
// OverallScore and MaxOverallScore always equal the sum of the criteria scores.
type Rating struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID    `gorm:"column:org_id;not null;index" json:"organizationId"`
	EmployeeID      snowflake.ID    `gorm:"column:employee_id;not null;index" json:"employeeId"`
	SupervisorID    snowflake.ID    `gorm:"column:supervisor_id;not null;index" json:"supervisorId"`
	PeriodStart     time.Time       `gorm:"column:period_start;not null" json:"periodStart"`
	PeriodEnd       time.Time       `gorm:"column:period_end;not null" json:"periodEnd"`
	Feedback        *string         `gorm:"type:text" json:"feedback"`
	OverallScore    int             `gorm:"column:overall_score;not null" json:"overallScore"`
	MaxOverallScore int             `gorm:"column:max_overall_score;not null" json:"maxOverallScore"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
	CriteriaScores  []CriteriaScore `gorm:"foreignKey:RatingID" json:"criteriaScores"`
}

// TableName sets the database table name.
func (Rating) TableName() string { return "ratings" }

type CriteriaScore struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	RatingID   snowflake.ID `gorm:"column:rating_id;not null;index" json:"ratingId"`
	CriteriaID snowflake.ID `gorm:"column:criteria_id;not null;index" json:"criteriaId"`
	Score      int          `gorm:"not null" json:"score"`
}

// TableName sets the database table name.
func (CriteriaScore) TableName() string { return "criteria_scores" }

// Member is the part of an organization membership the rating rules look at.
type Member struct {
	UserID       snowflake.ID
	Role         string
	SupervisorID *snowflake.ID
}

type Person struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (p Person) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	default:
		return p.Email
	}
}

type ScoreView struct {
	ID           string `json:"id"`
	CriteriaID   string `json:"criteriaId"`
	CriteriaName string `json:"criteriaName"`
	Score        int    `json:"score"`
}

type OrganizationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RatingView is a rating with the names a reader needs to display it.
type RatingView struct {
	ID              string           `json:"id"`
	OrganizationID  string           `json:"organizationId"`
	EmployeeID      string           `json:"employeeId"`
	SupervisorID    string           `json:"supervisorId"`
	PeriodStart     time.Time        `json:"periodStart"`
	PeriodEnd       time.Time        `json:"periodEnd"`
	Feedback        *string          `json:"feedback"`
	OverallScore    int              `json:"overallScore"`
	MaxOverallScore int              `json:"maxOverallScore"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	CriteriaScores  []ScoreView      `json:"criteriaScores"`
	Employee        *Person          `json:"employee,omitempty"`
	Supervisor      *Person          `json:"supervisor,omitempty"`
	Organization    *OrganizationRef `json:"organization,omitempty"`
}
