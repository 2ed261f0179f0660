package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/clock"
	"github.com/smallbiznis/appraisal/internal/criteria/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("criteria.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *service) Create(ctx context.Context, orgID string, req domain.CreateCriteriaRequest) (*domain.Criteria, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	name := strings.TrimSpace(req.Name)
	if len(name) < 2 {
		return nil, domain.ErrInvalidName
	}
	if req.MaxScore <= 0 || req.MaxScore > math.MaxInt32 {
		return nil, domain.ErrInvalidMaxScore
	}

	now := s.clock.Now()
	c := &domain.Criteria{
		ID:        s.genID.Generate(),
		OrgID:     org,
		Name:      name,
		MaxScore:  req.MaxScore,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) List(ctx context.Context, orgID string) ([]domain.Criteria, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListByOrg(ctx, org)
}

func (s *service) Update(ctx context.Context, orgID string, criteriaID string, req domain.UpdateCriteriaRequest) (*domain.Criteria, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := parseID(criteriaID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < 2 {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.MaxScore != nil {
		if *req.MaxScore <= 0 || *req.MaxScore > math.MaxInt32 {
			return nil, domain.ErrInvalidMaxScore
		}
		fields["max_score"] = *req.MaxScore
	}

	var updated *domain.Criteria
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing.OrgID != org {
			return domain.ErrForbidden
		}
		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if err := repo.UpdateFields(ctx, id, fields); err != nil {
				return err
			}
		}
		updated, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, orgID string, criteriaID string) error {
	org, err := parseID(orgID)
	if err != nil {
		return domain.ErrInvalidOrganization
	}
	id, err := parseID(criteriaID)
	if err != nil {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		// Criteria of another organization are reported as missing.
		if existing.OrgID != org {
			return domain.ErrNotFound
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		s.log.Info("criteria deleted", zap.String("org_id", org.String()), zap.String("criteria_id", id.String()))
		return nil
	})
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}
