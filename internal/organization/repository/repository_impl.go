package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/organization/domain"
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

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) FindOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) FindOrganizationByName(ctx context.Context, name string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListOwnedOrganizations(ctx context.Context, ownerID snowflake.ID) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) ListOrganizations(ctx context.Context, ids []snowflake.ID) ([]domain.Organization, error) {
	if len(ids) == 0 {
		return []domain.Organization{}, nil
	}
	var orgs []domain.Organization
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) DeleteOrganization(ctx context.Context, id snowflake.ID) error {
	statements := []string{
		`DELETE FROM criteria_scores WHERE rating_id IN (SELECT id FROM ratings WHERE org_id = ?)`,
		`DELETE FROM ratings WHERE org_id = ?`,
		`DELETE FROM criteria WHERE org_id = ?`,
		`DELETE FROM organization_members WHERE org_id = ?`,
	}
	db := r.db.WithContext(ctx)
	for _, stmt := range statements {
		if err := db.Exec(stmt, id).Error; err != nil {
			return err
		}
	}

	tx := db.Where("id = ?", id).Delete(&domain.Organization{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrOrgNotFound
	}
	return nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) FindMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListMembersByUser(ctx context.Context, userID snowflake.ID, status string) ([]domain.OrganizationMember, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var members []domain.OrganizationMember
	if err := q.Order("created_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID, filter domain.MemberFilter) ([]domain.MemberUser, error) {
	q := r.db.WithContext(ctx).
		Table("organization_members AS m").
		Select("m.*, u.email, u.first_name, u.last_name").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.org_id = ?", orgID)
	if filter.Role != "" {
		q = q.Where("m.role = ?", filter.Role)
	}
	if filter.Status != "" {
		q = q.Where("m.status = ?", filter.Status)
	}
	if filter.SupervisorID != nil {
		q = q.Where("m.supervisor_id = ?", *filter.SupervisorID)
	}

	var members []domain.MemberUser
	if err := q.Order("m.created_at ASC").Scan(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) ListMembersByUsers(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID) ([]domain.OrganizationMember, error) {
	if len(userIDs) == 0 {
		return []domain.OrganizationMember{}, nil
	}
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id IN ?", orgID, userIDs).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) UpdateMemberStatus(ctx context.Context, orgID, userID snowflake.ID, from, to string) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND user_id = ? AND status = ?", orgID, userID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repository) AssignSupervisor(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID, supervisorID snowflake.ID) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND user_id IN ?", orgID, userIDs).
		Updates(map[string]any{"supervisor_id": supervisorID, "updated_at": time.Now().UTC()})
	return tx.RowsAffected, tx.Error
}
