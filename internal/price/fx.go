package price

import (
	"github.com/smallbiznis/meterbill/internal/price/repository"
	"github.com/smallbiznis/meterbill/internal/price/service"
	"go.uber.org/fx"
)

var Module = fx.Module("price.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
