package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, rater Member, orgID string, req CreateRatingRequest) (*RatingView, error)
	List(ctx context.Context, reader Member, orgID string, page pagination.Pagination) ([]RatingView, *pagination.PageInfo, error)
	Update(ctx context.Context, rater Member, orgID string, ratingID string, req UpdateRatingRequest) (*RatingView, error)
	Delete(ctx context.Context, rater Member, orgID string, ratingID string) error
	ListReceived(ctx context.Context, employeeID snowflake.ID) ([]RatingView, error)
	ListGiven(ctx context.Context, supervisorID snowflake.ID) ([]RatingView, error)
	// Report renders the rating as a PDF document.
	Report(ctx context.Context, reader Member, orgID string, ratingID string) (*Report, error)
}

type ScoreInput struct {
	CriteriaID string
	Score      int
}

type CreateRatingRequest struct {
	EmployeeID     string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Feedback       *string
	CriteriaScores []ScoreInput
}

// UpdateRatingRequest changes only the fields that are set. CriteriaScores,
// when set, replaces every score of the rating.
type UpdateRatingRequest struct {
	EmployeeID     *string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	Feedback       *string
	CriteriaScores []ScoreInput
}

type Report struct {
	Filename string
	Content  []byte
}

// ReportData is everything a report renderer prints.
type ReportData struct {
	Organization string
	Rating       RatingView
	GeneratedAt  time.Time
}

// ReportRenderer turns a rating into a document.
type ReportRenderer interface {
	RenderRatingReport(ctx context.Context, data ReportData) ([]byte, error)
}

var (
	ErrNotFound            = errors.New("rating_not_found")
	ErrForbidden           = errors.New("forbidden")
	ErrNotAuthorized       = errors.New("not_authorized")
	ErrEmployeeNotInOrg    = errors.New("employee_not_in_org")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidScore        = errors.New("invalid_score")
	ErrNoScores            = errors.New("no_scores")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrReportUnavailable   = errors.New("report_unavailable")
)
