package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterbill/internal/bill"
	"github.com/smallbiznis/meterbill/internal/clock"
	"github.com/smallbiznis/meterbill/internal/config"
	"github.com/smallbiznis/meterbill/internal/ledger"
	"github.com/smallbiznis/meterbill/internal/migration"
	"github.com/smallbiznis/meterbill/internal/observability"
	"github.com/smallbiznis/meterbill/internal/price"
	"github.com/smallbiznis/meterbill/internal/pricing"
	"github.com/smallbiznis/meterbill/internal/subscriber"
	"github.com/smallbiznis/meterbill/internal/sweeper"
	"github.com/smallbiznis/meterbill/internal/usage"
	"github.com/smallbiznis/meterbill/pkg/db"
	"github.com/smallbiznis/meterbill/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		observability.Module,
		migration.Module,

		// Functional domains
		price.Module,
		pricing.Module,
		usage.Module,
		subscriber.Module,
		ledger.Module,
		bill.Module,
		sweeper.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
