package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, c *Criteria) error
	FindByID(ctx context.Context, id snowflake.ID) (*Criteria, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Criteria, error)
	// ListByIDs returns the criteria among ids that belong to orgID.
	ListByIDs(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) ([]Criteria, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	// Delete removes the criteria and its scores, then recomputes the totals
	// of every rating that lost a score.
	Delete(ctx context.Context, id snowflake.ID) error
}
