package bill

import (
	"github.com/smallbiznis/meterbill/internal/bill/repository"
	"github.com/smallbiznis/meterbill/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.service",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
