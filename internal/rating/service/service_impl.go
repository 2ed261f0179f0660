package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appraisal/internal/clock"
	criteriadomain "github.com/smallbiznis/appraisal/internal/criteria/domain"
	"github.com/smallbiznis/appraisal/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	"github.com/smallbiznis/appraisal/internal/rating/domain"
	"github.com/smallbiznis/appraisal/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Members  orgdomain.Repository
	Criteria criteriadomain.Repository
	GenID    *snowflake.Node
	Clock    clock.Clock
	Metrics  *metrics.Metrics      `optional:"true"`
	Renderer domain.ReportRenderer `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	members  orgdomain.Repository
	criteria criteriadomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.Metrics
	renderer domain.ReportRenderer
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("rating.service"),
		repo:     p.Repo,
		members:  p.Members,
		criteria: p.Criteria,
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
		renderer: p.Renderer,
	}
}

func (s *service) Create(ctx context.Context, rater domain.Member, orgID string, req domain.CreateRatingRequest) (*domain.RatingView, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	employeeID, err := parseID(req.EmployeeID)
	if err != nil {
		return nil, domain.ErrEmployeeNotInOrg
	}
	if req.PeriodStart.After(req.PeriodEnd) {
		return nil, domain.ErrInvalidPeriod
	}
	if err := validateScores(req.CriteriaScores); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rating := &domain.Rating{
		ID:           s.genID.Generate(),
		OrgID:        org,
		EmployeeID:   employeeID,
		SupervisorID: rater.UserID,
		PeriodStart:  req.PeriodStart,
		PeriodEnd:    req.PeriodEnd,
		Feedback:     normalizeFeedback(req.Feedback),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.authorizeTarget(ctx, tx, rater, org, employeeID); err != nil {
			return err
		}
		scores, err := s.buildScores(ctx, tx, org, rating.ID, req.CriteriaScores)
		if err != nil {
			return err
		}
		total, err := domain.TotalScore(scores)
		if err != nil {
			return err
		}
		rating.CriteriaScores = scores
		rating.OverallScore = total
		rating.MaxOverallScore = total
		return s.repo.WithTx(tx).Create(ctx, rating)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRatingWritten(ctx, org.String(), "create")
	s.log.Info("rating created",
		zap.String("org_id", org.String()),
		zap.String("rating_id", rating.ID.String()),
		zap.String("employee_id", employeeID.String()),
	)
	return s.view(ctx, *rating)
}

func (s *service) List(ctx context.Context, reader domain.Member, orgID string, page pagination.Pagination) ([]domain.RatingView, *pagination.PageInfo, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, nil, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{OrgID: &org}
	switch reader.Role {
	case domain.RoleOwner:
	case domain.RoleSupervisor:
		filter.SupervisorID = &reader.UserID
	default:
		filter.EmployeeID = &reader.UserID
	}
	if page.Enabled() {
		filter.Limit = page.Limit()
		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err != nil {
				return nil, nil, err
			}
			filter.After = cursor
		}
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	var info *pagination.PageInfo
	if page.Enabled() {
		items, info, err = pagination.Trim(items, page, func(r domain.Rating) pagination.Cursor {
			return pagination.Cursor{ID: int64(r.ID), CreatedAt: r.CreatedAt}
		})
		if err != nil {
			return nil, nil, err
		}
	}

	views, err := s.views(ctx, items, false)
	if err != nil {
		return nil, nil, err
	}
	return views, info, nil
}

func (s *service) Update(ctx context.Context, rater domain.Member, orgID string, ratingID string, req domain.UpdateRatingRequest) (*domain.RatingView, error) {
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := parseID(ratingID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	if req.CriteriaScores != nil {
		if err := validateScores(req.CriteriaScores); err != nil {
			return nil, err
		}
	}

	var updated *domain.Rating
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CanModify(rater, *existing, org); err != nil {
			return err
		}

		fields := map[string]any{}
		if req.EmployeeID != nil {
			employeeID, err := parseID(*req.EmployeeID)
			if err != nil {
				return domain.ErrEmployeeNotInOrg
			}
			if employeeID != existing.EmployeeID {
				if err := s.authorizeTarget(ctx, tx, rater, org, employeeID); err != nil {
					return err
				}
				fields["employee_id"] = employeeID
			}
		}

		start, end := existing.PeriodStart, existing.PeriodEnd
		if req.PeriodStart != nil {
			start = *req.PeriodStart
			fields["period_start"] = start
		}
		if req.PeriodEnd != nil {
			end = *req.PeriodEnd
			fields["period_end"] = end
		}
		if start.After(end) {
			return domain.ErrInvalidPeriod
		}
		if req.Feedback != nil {
			fields["feedback"] = normalizeFeedback(req.Feedback)
		}

		if req.CriteriaScores != nil {
			scores, err := s.buildScores(ctx, tx, org, id, req.CriteriaScores)
			if err != nil {
				return err
			}
			total, err := domain.TotalScore(scores)
			if err != nil {
				return err
			}
			if err := repo.ReplaceScores(ctx, id, scores); err != nil {
				return err
			}
			fields["overall_score"] = total
			fields["max_overall_score"] = total
		}

		fields["updated_at"] = s.clock.Now()
		if err := repo.UpdateFields(ctx, id, fields); err != nil {
			return err
		}
		updated, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRatingWritten(ctx, org.String(), "update")
	return s.view(ctx, *updated)
}

func (s *service) Delete(ctx context.Context, rater domain.Member, orgID string, ratingID string) error {
	org, err := parseID(orgID)
	if err != nil {
		return domain.ErrInvalidOrganization
	}
	id, err := parseID(ratingID)
	if err != nil {
		return domain.ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CanModify(rater, *existing, org); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordRatingWritten(ctx, org.String(), "delete")
	s.log.Info("rating deleted", zap.String("org_id", org.String()), zap.String("rating_id", id.String()))
	return nil
}

func (s *service) ListReceived(ctx context.Context, employeeID snowflake.ID) ([]domain.RatingView, error) {
	items, err := s.repo.List(ctx, domain.ListFilter{EmployeeID: &employeeID})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, items, true)
}

func (s *service) ListGiven(ctx context.Context, supervisorID snowflake.ID) ([]domain.RatingView, error) {
	items, err := s.repo.List(ctx, domain.ListFilter{SupervisorID: &supervisorID})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, items, true)
}

func (s *service) Report(ctx context.Context, reader domain.Member, orgID string, ratingID string) (*domain.Report, error) {
	if s.renderer == nil {
		return nil, domain.ErrReportUnavailable
	}
	org, err := parseID(orgID)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := parseID(ratingID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	rating, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CanModify(reader, *rating, org); err != nil {
		return nil, err
	}

	views, err := s.views(ctx, []domain.Rating{*rating}, true)
	if err != nil {
		return nil, err
	}
	view := views[0]

	data := domain.ReportData{Rating: view, GeneratedAt: s.clock.Now()}
	if view.Organization != nil {
		data.Organization = view.Organization.Name
	}
	content, err := s.renderer.RenderRatingReport(ctx, data)
	if err != nil {
		return nil, err
	}
	return &domain.Report{
		Filename: fmt.Sprintf("rating-%s.pdf", id.String()),
		Content:  content,
	}, nil
}

// authorizeTarget loads the target membership and applies the rating rule.
func (s *service) authorizeTarget(ctx context.Context, tx *gorm.DB, rater domain.Member, orgID, employeeID snowflake.ID) error {
	target, err := s.members.WithTx(tx).FindMember(ctx, orgID, employeeID)
	if errors.Is(err, orgdomain.ErrMemberNotFound) {
		return domain.ErrEmployeeNotInOrg
	}
	if err != nil {
		return err
	}
	if !domain.CanRate(rater, domain.Member{
		UserID:       target.UserID,
		Role:         target.Role,
		SupervisorID: target.SupervisorID,
	}) {
		return domain.ErrNotAuthorized
	}
	return nil
}

// buildScores checks every criteria id against the organization before any
// score is built, so a single bad id rejects the whole set.
func (s *service) buildScores(ctx context.Context, tx *gorm.DB, orgID, ratingID snowflake.ID, inputs []domain.ScoreInput) ([]domain.CriteriaScore, error) {
	requested := make([]string, 0, len(inputs))
	lookup := make([]snowflake.ID, 0, len(inputs))
	for _, in := range inputs {
		requested = append(requested, in.CriteriaID)
		if id, err := parseID(in.CriteriaID); err == nil {
			lookup = append(lookup, id)
		}
	}

	found, err := s.criteria.WithTx(tx).ListByIDs(ctx, orgID, lookup)
	if err != nil {
		return nil, err
	}
	known := make(map[snowflake.ID]struct{}, len(found))
	for _, c := range found {
		known[c.ID] = struct{}{}
	}

	ids, err := domain.ValidateCriteria(requested, known)
	if err != nil {
		return nil, err
	}

	scores := make([]domain.CriteriaScore, 0, len(ids))
	for i, criteriaID := range ids {
		scores = append(scores, domain.CriteriaScore{
			ID:         s.genID.Generate(),
			RatingID:   ratingID,
			CriteriaID: criteriaID,
			Score:      inputs[i].Score,
		})
	}
	return scores, nil
}

func (s *service) view(ctx context.Context, rating domain.Rating) (*domain.RatingView, error) {
	views, err := s.views(ctx, []domain.Rating{rating}, false)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *service) views(ctx context.Context, items []domain.Rating, withOrg bool) ([]domain.RatingView, error) {
	people := make([]snowflake.ID, 0, len(items)*2)
	criteria := []snowflake.ID{}
	orgs := []snowflake.ID{}
	for _, r := range items {
		people = append(people, r.EmployeeID, r.SupervisorID)
		orgs = append(orgs, r.OrgID)
		for _, sc := range r.CriteriaScores {
			criteria = append(criteria, sc.CriteriaID)
		}
	}

	personByID, err := s.repo.People(ctx, dedupe(people))
	if err != nil {
		return nil, err
	}
	criteriaNames, err := s.repo.CriteriaNames(ctx, dedupe(criteria))
	if err != nil {
		return nil, err
	}
	orgNames := map[snowflake.ID]string{}
	if withOrg {
		orgNames, err = s.repo.OrganizationNames(ctx, dedupe(orgs))
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.RatingView, 0, len(items))
	for _, r := range items {
		v := domain.RatingView{
			ID:              r.ID.String(),
			OrganizationID:  r.OrgID.String(),
			EmployeeID:      r.EmployeeID.String(),
			SupervisorID:    r.SupervisorID.String(),
			PeriodStart:     r.PeriodStart,
			PeriodEnd:       r.PeriodEnd,
			Feedback:        r.Feedback,
			OverallScore:    r.OverallScore,
			MaxOverallScore: r.MaxOverallScore,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
			CriteriaScores:  make([]domain.ScoreView, 0, len(r.CriteriaScores)),
		}
		for _, sc := range r.CriteriaScores {
			v.CriteriaScores = append(v.CriteriaScores, domain.ScoreView{
				ID:           sc.ID.String(),
				CriteriaID:   sc.CriteriaID.String(),
				CriteriaName: criteriaNames[sc.CriteriaID],
				Score:        sc.Score,
			})
		}
		if p, ok := personByID[r.EmployeeID]; ok {
			v.Employee = &p
		}
		if p, ok := personByID[r.SupervisorID]; ok {
			v.Supervisor = &p
		}
		if withOrg {
			v.Organization = &domain.OrganizationRef{ID: r.OrgID.String(), Name: orgNames[r.OrgID]}
		}
		out = append(out, v)
	}
	return out, nil
}

func validateScores(inputs []domain.ScoreInput) error {
	if len(inputs) == 0 {
		return domain.ErrNoScores
	}
	total := 0
	for _, in := range inputs {
		if in.Score < 0 || in.Score > domain.MaxScore-total {
			return domain.ErrInvalidScore
		}
		total += in.Score
	}
	return nil
}

func normalizeFeedback(feedback *string) *string {
	if feedback == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*feedback)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("zero id")
	}
	return id, nil
}
