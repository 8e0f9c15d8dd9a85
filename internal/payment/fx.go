package payment

import (
	"github.com/smallbiznis/givebox/internal/payment/connect"
	"github.com/smallbiznis/givebox/internal/payment/repository"
	"github.com/smallbiznis/givebox/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(connect.NewStripeGateway),
	fx.Provide(connect.NewService),
	fx.Provide(webhook.NewService),
)
