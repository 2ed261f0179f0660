package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/appraisal/internal/rating/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRatingReport(t *testing.T) {
	feedback := "Consistent delivery."
	data := domain.ReportData{
		Organization: "Acme",
		GeneratedAt:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Rating: domain.RatingView{
			ID:              "1",
			PeriodStart:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:       time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			Feedback:        &feedback,
			OverallScore:    12,
			MaxOverallScore: 12,
			CriteriaScores: []domain.ScoreView{
				{CriteriaID: "10", CriteriaName: "Quality", Score: 7},
				{CriteriaID: "11", CriteriaName: "Teamwork", Score: 5},
			},
			Employee:   &domain.Person{FirstName: "Dana", LastName: "Lee", Email: "dana@example.com"},
			Supervisor: &domain.Person{Email: "sam@example.com"},
		},
	}

	out, err := New().RenderRatingReport(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRatingReport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().RenderRatingReport(ctx, domain.ReportData{})
	assert.ErrorIs(t, err, context.Canceled)
}
