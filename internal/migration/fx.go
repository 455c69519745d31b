package migration

import (
	billdomain "github.com/smallbiznis/meterbill/internal/bill/domain"
	"github.com/smallbiznis/meterbill/internal/config"
	ledgerdomain "github.com/smallbiznis/meterbill/internal/ledger/domain"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	subscriberdomain "github.com/smallbiznis/meterbill/internal/subscriber/domain"
	usagedomain "github.com/smallbiznis/meterbill/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL path is Postgres-only. Other dialects, sqlite in
		// local setups in particular, fall back to schema sync from models.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&pricedomain.PriceConfiguration{},
				&usagedomain.UsageRecord{},
				&subscriberdomain.Subscriber{},
				&ledgerdomain.Account{},
				&ledgerdomain.Transaction{},
				&billdomain.Bill{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
