package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ratingdomain "github.com/smallbiznis/appraisal/internal/rating/domain"
)

type scoreRequest struct {
	CriteriaID string `json:"criteriaId" binding:"required"`
	Score      *int   `json:"score" binding:"required,gte=0,lte=2147483647"`
}

type createRatingRequest struct {
	EmployeeID     string         `json:"employeeId" binding:"required"`
	PeriodStart    string         `json:"periodStart" binding:"required,date"`
	PeriodEnd      string         `json:"periodEnd" binding:"required,date"`
	Feedback       *string        `json:"feedback" binding:"omitempty,max=5000"`
	CriteriaScores []scoreRequest `json:"criteriaScores" binding:"required,min=1,dive"`
}

func (r *createRatingRequest) normalize() {
	r.EmployeeID = strings.TrimSpace(r.EmployeeID)
	r.Feedback = trimOptional(r.Feedback)
	normalizeScores(r.CriteriaScores)
}

type updateRatingRequest struct {
	EmployeeID     *string        `json:"employeeId" binding:"omitempty,min=1"`
	PeriodStart    *string        `json:"periodStart" binding:"omitempty,date"`
	PeriodEnd      *string        `json:"periodEnd" binding:"omitempty,date"`
	Feedback       *string        `json:"feedback" binding:"omitempty,max=5000"`
	CriteriaScores []scoreRequest `json:"criteriaScores" binding:"omitempty,min=1,dive"`
}

func (r *updateRatingRequest) normalize() {
	r.EmployeeID = trimOptional(r.EmployeeID)
	r.Feedback = trimOptional(r.Feedback)
	normalizeScores(r.CriteriaScores)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func normalizeScores(scores []scoreRequest) {
	for i := range scores {
		scores[i].CriteriaID = strings.TrimSpace(scores[i].CriteriaID)
	}
}

// toScoreInputs keeps nil distinct from empty: nil leaves scores untouched on update.
func toScoreInputs(scores []scoreRequest) []ratingdomain.ScoreInput {
	if scores == nil {
		return nil
	}
	out := make([]ratingdomain.ScoreInput, 0, len(scores))
	for _, item := range scores {
		score := 0
		if item.Score != nil {
			score = *item.Score
		}
		out = append(out, ratingdomain.ScoreInput{CriteriaID: item.CriteriaID, Score: score})
	}
	return out
}

func (s *Server) CreateRating(c *gin.Context) {
	rater, err := s.currentMember(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createRatingRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	start, err := parseDate(req.PeriodStart)
	if err != nil {
		AbortWithError(c, newValidationError("periodStart", "periodStart must be a date (YYYY-MM-DD or RFC3339)"))
		return
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		AbortWithError(c, newValidationError("periodEnd", "periodEnd must be a date (YYYY-MM-DD or RFC3339)"))
		return
	}

	view, err := s.ratingSvc.Create(c.Request.Context(), rater, c.Param("id"), ratingdomain.CreateRatingRequest{
		EmployeeID:     req.EmployeeID,
		PeriodStart:    start,
		PeriodEnd:      end,
		Feedback:       req.Feedback,
		CriteriaScores: toScoreInputs(req.CriteriaScores),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, view)
}

func (s *Server) ListRatings(c *gin.Context) {
	reader, err := s.currentMember(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, pageInfo, err := s.ratingSvc.List(c.Request.Context(), reader, c.Param("id"), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondPage(c, http.StatusOK, items, pageInfo)
}

func (s *Server) UpdateRating(c *gin.Context) {
	rater, err := s.currentMember(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateRatingRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	start, err := parseOptionalDate(req.PeriodStart)
	if err != nil {
		AbortWithError(c, newValidationError("periodStart", "periodStart must be a date (YYYY-MM-DD or RFC3339)"))
		return
	}
	end, err := parseOptionalDate(req.PeriodEnd)
	if err != nil {
		AbortWithError(c, newValidationError("periodEnd", "periodEnd must be a date (YYYY-MM-DD or RFC3339)"))
		return
	}

	view, err := s.ratingSvc.Update(c.Request.Context(), rater, c.Param("id"), c.Param("ratingId"), ratingdomain.UpdateRatingRequest{
		EmployeeID:     req.EmployeeID,
		PeriodStart:    start,
		PeriodEnd:      end,
		Feedback:       req.Feedback,
		CriteriaScores: toScoreInputs(req.CriteriaScores),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, view)
}

func (s *Server) DeleteRating(c *gin.Context) {
	rater, err := s.currentMember(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ratingID := c.Param("ratingId")
	if err := s.ratingSvc.Delete(c.Request.Context(), rater, c.Param("id"), ratingID); err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"id": ratingID})
}

func (s *Server) RatingReport(c *gin.Context) {
	reader, err := s.currentMember(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.ratingSvc.Report(c.Request.Context(), reader, c.Param("id"), c.Param("ratingId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, "application/pdf", report.Content)
}

// ListMyRatings returns the ratings the caller received in every organization.
func (s *Server) ListMyRatings(c *gin.Context) {
	userID, err := s.currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.ratingSvc.ListReceived(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, items)
}
