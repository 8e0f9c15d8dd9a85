package donation

import (
	"github.com/smallbiznis/givebox/internal/donation/repository"
	"github.com/smallbiznis/givebox/internal/donation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("donation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
