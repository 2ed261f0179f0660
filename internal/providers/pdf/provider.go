package pdf

import (
	"github.com/smallbiznis/appraisal/internal/rating/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(fx.Annotate(New, fx.As(new(domain.ReportRenderer)))),
)

type PDFProvider struct{}

func New() *PDFProvider {
	return &PDFProvider{}
}
