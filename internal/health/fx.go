package health

import (
	"github.com/smallbiznis/givebox/internal/payment/connect"
	"go.uber.org/fx"
)

var Module = fx.Module("health",
	fx.Provide(
		fx.Annotate(
			func(svc *connect.Service) Pinger { return svc },
			fx.ResultTags(`name:"payment_processor"`),
		),
	),
	fx.Provide(NewChecker),
)
