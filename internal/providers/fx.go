package providers

import (
	"github.com/smallbiznis/appraisal/internal/providers/email"
	"github.com/smallbiznis/appraisal/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
