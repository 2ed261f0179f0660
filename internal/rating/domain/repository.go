package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID        *snowflake.ID
	EmployeeID   *snowflake.ID
	SupervisorID *snowflake.ID
	After        *pagination.Cursor
	// Limit of zero returns every match.
	Limit int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rating *Rating) error
	FindByID(ctx context.Context, id snowflake.ID) (*Rating, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	ReplaceScores(ctx context.Context, ratingID snowflake.ID, scores []CriteriaScore) error
	Delete(ctx context.Context, id snowflake.ID) error
	// List returns ratings newest first with their criteria scores.
	List(ctx context.Context, filter ListFilter) ([]Rating, error)

	People(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Person, error)
	CriteriaNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error)
	OrganizationNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error)
}
