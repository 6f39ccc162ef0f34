package providers

import (
	"github.com/smallbiznis/eventra/internal/providers/email"
	"github.com/smallbiznis/eventra/internal/providers/pdf"
	"github.com/smallbiznis/eventra/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	slack.Module,
)
