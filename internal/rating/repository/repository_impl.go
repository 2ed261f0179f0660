package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/rating/domain"
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

func (r *repository) Create(ctx context.Context, rating *domain.Rating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Rating, error) {
	var rating domain.Rating
	err := r.db.WithContext(ctx).
		Preload("CriteriaScores", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ?", id).
		First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *repository) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.Rating{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceScores(ctx context.Context, ratingID snowflake.ID, scores []domain.CriteriaScore) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("rating_id = ?", ratingID).Delete(&domain.CriteriaScore{}).Error; err != nil {
		return err
	}
	if len(scores) == 0 {
		return nil
	}
	return db.Create(&scores).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("rating_id = ?", id).Delete(&domain.CriteriaScore{}).Error; err != nil {
		return err
	}
	tx := db.Where("id = ?", id).Delete(&domain.Rating{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Rating, error) {
	q := r.db.WithContext(ctx).Model(&domain.Rating{})
	if filter.OrgID != nil {
		q = q.Where("org_id = ?", *filter.OrgID)
	}
	if filter.EmployeeID != nil {
		q = q.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.SupervisorID != nil {
		q = q.Where("supervisor_id = ?", *filter.SupervisorID)
	}
	if filter.After != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.After.CreatedAt, filter.After.CreatedAt, filter.After.ID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var items []domain.Rating
	err := q.
		Preload("CriteriaScores", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) People(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.Person, error) {
	out := make(map[snowflake.ID]domain.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID        snowflake.ID
		Email     string
		FirstName string
		LastName  string
	}
	err := r.db.WithContext(ctx).
		Table("users").
		Select("id, email, first_name, last_name").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = domain.Person{
			ID:        row.ID.String(),
			Email:     row.Email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
		}
	}
	return out, nil
}

func (r *repository) CriteriaNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	return r.names(ctx, "criteria", ids)
}

func (r *repository) OrganizationNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	return r.names(ctx, "organizations", ids)
}

func (r *repository) names(ctx context.Context, table string, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	out := make(map[snowflake.ID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID   snowflake.ID
		Name string
	}
	err := r.db.WithContext(ctx).
		Table(table).
		Select("id, name").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Name
	}
	return out, nil
}
