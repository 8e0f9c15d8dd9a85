package user

import (
	"github.com/smallbiznis/givebox/internal/user/repository"
	"github.com/smallbiznis/givebox/internal/user/service"
	"github.com/smallbiznis/givebox/internal/user/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(webhook.NewService),
)
