package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, orgID string, req CreateCriteriaRequest) (*Criteria, error)
	List(ctx context.Context, orgID string) ([]Criteria, error)
	Update(ctx context.Context, orgID string, criteriaID string, req UpdateCriteriaRequest) (*Criteria, error)
	Delete(ctx context.Context, orgID string, criteriaID string) error
}

type CreateCriteriaRequest struct {
	Name     string
	MaxScore int
}

type UpdateCriteriaRequest struct {
	Name     *string
	MaxScore *int
}

var (
	ErrNotFound            = errors.New("criteria_not_found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidMaxScore     = errors.New("invalid_max_score")
	ErrInvalidOrganization = errors.New("invalid_organization")
)
