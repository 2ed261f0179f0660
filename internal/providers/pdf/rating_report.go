package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/appraisal/internal/rating/domain"
)

const dateLayout = "2006-01-02"

// RenderRatingReport lays out a single rating: header, the people involved,
// one row per criteria and the overall score.
func (p *PDFProvider) RenderRatingReport(ctx context.Context, data domain.ReportData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := data.Rating

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Performance rating", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, data.Organization, props.Text{Size: 11}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Employee", props.Text{Style: fontstyle.Bold}),
			text.New(personName(r.Employee), props.Text{Top: 5}),
			text.New(personEmail(r.Employee), props.Text{Top: 10, Size: 8}),
		),
		col.New(6).Add(
			text.New("Rated by", props.Text{Style: fontstyle.Bold}),
			text.New(personName(r.Supervisor), props.Text{Top: 5}),
			text.New(personEmail(r.Supervisor), props.Text{Top: 10, Size: 8}),
		),
	)

	m.AddRow(10,
		text.NewCol(12, fmt.Sprintf("Period: %s to %s",
			r.PeriodStart.Format(dateLayout), r.PeriodEnd.Format(dateLayout)),
			props.Text{Size: 10}),
	)

	m.AddRow(10,
		text.NewCol(9, "Criteria", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Score", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, sc := range r.CriteriaScores {
		name := sc.CriteriaName
		if name == "" {
			name = sc.CriteriaID
		}
		m.AddRow(8,
			text.NewCol(9, name, props.Text{Size: 9}),
			text.NewCol(3, fmt.Sprintf("%d", sc.Score), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(10,
		text.NewCol(9, "Overall score", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, fmt.Sprintf("%d / %d", r.OverallScore, r.MaxOverallScore),
			props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if r.Feedback != nil && *r.Feedback != "" {
		m.AddRow(10, text.NewCol(12, "Feedback", props.Text{Style: fontstyle.Bold, Top: 4}))
		m.AddRow(20, text.NewCol(12, *r.Feedback, props.Text{Size: 9}))
	}

	m.AddRow(10,
		text.NewCol(12, "Generated "+data.GeneratedAt.Format("2006-01-02 15:04 MST"),
			props.Text{Size: 7, Top: 4, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func personName(p *domain.Person) string {
	if p == nil {
		return "-"
	}
	return p.DisplayName()
}

func personEmail(p *domain.Person) string {
	if p == nil {
		return ""
	}
	return p.Email
}
