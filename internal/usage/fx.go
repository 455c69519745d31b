package usage

import (
	usagedomain "github.com/smallbiznis/meterbill/internal/usage/domain"
	"github.com/smallbiznis/meterbill/internal/usage/provider"
	"github.com/smallbiznis/meterbill/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(
		fx.Annotate(
			provider.NewRecordProvider,
			fx.As(new(usagedomain.Provider)),
			fx.ResultTags(`group:"usage.providers"`),
		),
	),
	fx.Provide(service.NewService),
)
