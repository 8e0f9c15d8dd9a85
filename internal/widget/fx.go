package widget

import (
	"github.com/smallbiznis/givebox/internal/widget/repository"
	"github.com/smallbiznis/givebox/internal/widget/service"
	"go.uber.org/fx"
)

var Module = fx.Module("widget.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
