package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/criteria/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, c *domain.Criteria) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Criteria, error) {
	var c domain.Criteria
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]domain.Criteria, error) {
	var items []domain.Criteria
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByIDs(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) ([]domain.Criteria, error) {
	if len(ids) == 0 {
		return []domain.Criteria{}, nil
	}
	var items []domain.Criteria
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.Criteria{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	db := r.db.WithContext(ctx)

	var ratingIDs []int64
	if err := db.Raw(
		`SELECT DISTINCT rating_id FROM criteria_scores WHERE criteria_id = ?`,
		id,
	).Scan(&ratingIDs).Error; err != nil {
		return err
	}

	if err := db.Exec(`DELETE FROM criteria_scores WHERE criteria_id = ?`, id).Error; err != nil {
		return err
	}

	tx := db.Where("id = ?", id).Delete(&domain.Criteria{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	if len(ratingIDs) == 0 {
		return nil
	}
	return db.Exec(
		`UPDATE ratings
		 SET overall_score = (SELECT COALESCE(SUM(cs.score), 0) FROM criteria_scores cs WHERE cs.rating_id = ratings.id),
		     max_overall_score = (SELECT COALESCE(SUM(cs.score), 0) FROM criteria_scores cs WHERE cs.rating_id = ratings.id)
		 WHERE id IN ?`,
		ratingIDs,
	).Error
}
