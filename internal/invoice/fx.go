package invoice

import (
	"github.com/smallbiznis/givebox/internal/invoice/repository"
	"github.com/smallbiznis/givebox/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
