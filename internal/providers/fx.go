package providers

import (
	"github.com/smallbiznis/eroom/internal/providers/pdf"
	"github.com/smallbiznis/eroom/internal/providers/sms"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	sms.Module,
	pdf.Module,
)
