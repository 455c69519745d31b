package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/meterbill/internal/bill/domain"
	billrepository "github.com/smallbiznis/meterbill/internal/bill/repository"
	"github.com/smallbiznis/meterbill/internal/billingcycle"
	ledgerdomain "github.com/smallbiznis/meterbill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/meterbill/internal/ledger/service"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	pricingdomain "github.com/smallbiznis/meterbill/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/meterbill/internal/pricing/service"
	subscriberdomain "github.com/smallbiznis/meterbill/internal/subscriber/domain"
	usagedomain "github.com/smallbiznis/meterbill/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// stubUsage returns a fixed count for every resource key.
type stubUsage struct {
	usage int64
	err   error
}

func (s *stubUsage) Usage(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (int64, error) {
	return s.usage, s.err
}

func (s *stubUsage) UsageDetail(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (datatypes.JSONMap, error) {
	if s.err != nil {
		return nil, s.err
	}
	return datatypes.JSONMap{"count": s.usage}, nil
}

func (s *stubUsage) BatchUsage(ctx context.Context, subscriberID snowflake.ID, resourceKeys []string, start, end time.Time) map[string]usagedomain.BatchEntry {
	result := make(map[string]usagedomain.BatchEntry, len(resourceKeys))
	for _, key := range resourceKeys {
		result[key] = usagedomain.BatchEntry{Usage: s.usage, Err: s.err}
	}
	return result
}

func (s *stubUsage) HasProvider(resourceKey string) bool { return true }

type billFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	svc        billdomain.Service
	ledgerSvc  ledgerdomain.Service
	usage      *stubUsage
	subscriber *subscriberdomain.Subscriber
}

func setupBillService(t *testing.T, usage int64) *billFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&pricedomain.PriceConfiguration{},
		&subscriberdomain.Subscriber{},
		&ledgerdomain.Account{},
		&ledgerdomain.Transaction{},
		&billdomain.Bill{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: logger, GenID: node})
	stub := &stubUsage{usage: usage}
	registry := pricingdomain.NewRegistry(
		pricingservice.NewFlatStrategy(),
		pricingservice.NewTieredStrategy(),
	)

	svc := NewService(Params{
		DB:         db,
		Log:        logger,
		GenID:      node,
		BillRepo:   billrepository.NewRepository(db),
		UsageSvc:   stub,
		LedgerSvc:  ledgerSvc,
		Strategies: registry,
	})

	subscriber := &subscriberdomain.Subscriber{
		ID:         node.Generate(),
		ExternalID: "sub-001",
		Roles:      datatypes.JSONSlice[string]{"member"},
		Active:     true,
	}
	require.NoError(t, db.Create(subscriber).Error)

	return &billFixture{
		db:         db,
		node:       node,
		svc:        svc,
		ledgerSvc:  ledgerSvc,
		usage:      stub,
		subscriber: subscriber,
	}
}

func (f *billFixture) priceConfig(t *testing.T, unitPrice string) *pricedomain.PriceConfiguration {
	t.Helper()
	cfg := &pricedomain.PriceConfiguration{
		ID:           f.node.Generate(),
		ResourceKey:  "api.calls",
		Title:        "API calls",
		CurrencyCode: "USD",
		Cycle:        billingcycle.NewByMonth,
		UnitPrice:    decimal.RequireFromString(unitPrice),
		Active:       true,
	}
	require.NoError(t, f.db.Create(cfg).Error)
	return cfg
}

func (f *billFixture) fund(t *testing.T, amount string) *ledgerdomain.Account {
	t.Helper()
	account, err := f.ledgerSvc.EnsureAccount(context.Background(), f.subscriber.ID, "USD")
	require.NoError(t, err)
	_, err = f.ledgerSvc.Credit(context.Background(), "SEED_"+f.node.Generate().String(), account.ID, decimal.RequireFromString(amount), "seed")
	require.NoError(t, err)
	return account
}

var billTime = time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

func TestGenerateBill_FlatPricing(t *testing.T) {
	f := setupBillService(t, 200)
	cfg := f.priceConfig(t, "0.70")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	assert.Equal(t, billdomain.BillStatusPending, bill.Status)
	assert.Equal(t, int64(200), bill.UsageCount)
	assert.Equal(t, "140.00000", bill.GrossAmount.StringFixed(5))
	assert.Equal(t, "140.00000", bill.SettledAmount.StringFixed(5))
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), bill.PeriodStart)
	assert.Equal(t, billTime, bill.PeriodEnd)
	assert.NotZero(t, bill.LedgerAccountID)
	assert.Equal(t, int64(200), bill.UsageDetail["count"])
}

func TestGenerateBill_SameWindowIsRejected(t *testing.T) {
	f := setupBillService(t, 10)
	cfg := f.priceConfig(t, "1.00")

	_, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	_, err = f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	assert.ErrorIs(t, err, billdomain.ErrBillAlreadyExists)

	// A different window for the same pair is fine.
	_, err = f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime.AddDate(0, 1, 0))
	assert.NoError(t, err)
}

func TestGenerateBill_ZeroUsage(t *testing.T) {
	f := setupBillService(t, 0)
	cfg := f.priceConfig(t, "1.00")

	_, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	assert.ErrorIs(t, err, billdomain.ErrZeroUsage)
}

func TestGenerateBill_ZeroUsageWithFloorStillBills(t *testing.T) {
	f := setupBillService(t, 0)
	cfg := f.priceConfig(t, "1.00")
	floor := decimal.RequireFromString("5")
	cfg.FloorPrice = &floor
	require.NoError(t, f.db.Save(cfg).Error)

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)
	assert.Equal(t, "5.00000", bill.SettledAmount.StringFixed(5))
}

func TestGenerateBill_FreeQuotaCoversUsage(t *testing.T) {
	f := setupBillService(t, 4)
	cfg := f.priceConfig(t, "1.00")
	quota := int64(10)
	cfg.FreeQuota = &quota
	require.NoError(t, f.db.Save(cfg).Error)

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)
	assert.Equal(t, "4.00000", bill.GrossAmount.StringFixed(5))
	assert.True(t, bill.SettledAmount.IsZero())
}

func TestGenerateBill_FreeQuotaBillsOnlyExcess(t *testing.T) {
	f := setupBillService(t, 10)
	cfg := f.priceConfig(t, "1.00")
	quota := int64(4)
	cfg.FreeQuota = &quota
	require.NoError(t, f.db.Save(cfg).Error)

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)
	assert.Equal(t, "10.00000", bill.GrossAmount.StringFixed(5))
	assert.Equal(t, "6.00000", bill.SettledAmount.StringFixed(5))
}

func TestGenerateBill_UsageClamping(t *testing.T) {
	f := setupBillService(t, 1000)
	cfg := f.priceConfig(t, "1.00")
	maxAmount := int64(100)
	cfg.MaxAmount = &maxAmount
	require.NoError(t, f.db.Save(cfg).Error)

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	// The raw count is recorded; the amount is priced from the clamp.
	assert.Equal(t, int64(1000), bill.UsageCount)
	assert.Equal(t, "100.00000", bill.SettledAmount.StringFixed(5))
}

func TestProcessBill_Settles(t *testing.T) {
	f := setupBillService(t, 200)
	cfg := f.priceConfig(t, "0.70")
	account := f.fund(t, "500")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	require.NoError(t, f.svc.ProcessBill(context.Background(), bill))

	assert.Equal(t, billdomain.BillStatusPaid, bill.Status)
	require.NotNil(t, bill.SettledAt)
	require.NotNil(t, bill.LedgerTransactionRef)
	assert.Equal(t, "BILL_"+bill.ID.String(), *bill.LedgerTransactionRef)

	reloaded, err := f.ledgerSvc.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "360.00000", reloaded.Balance.StringFixed(5))
}

func TestProcessBill_InsufficientFundsFailsBill(t *testing.T) {
	f := setupBillService(t, 200)
	cfg := f.priceConfig(t, "0.70")
	f.fund(t, "10")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	err = f.svc.ProcessBill(context.Background(), bill)
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)
	assert.Equal(t, billdomain.BillStatusFailed, bill.Status)
	require.NotNil(t, bill.FailureReason)
	assert.Nil(t, bill.SettledAt)
}

func TestProcessBill_ZeroSettledSkipsLedger(t *testing.T) {
	f := setupBillService(t, 4)
	cfg := f.priceConfig(t, "1.00")
	quota := int64(10)
	cfg.FreeQuota = &quota
	require.NoError(t, f.db.Save(cfg).Error)

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	// No funding at all; a zero-amount settlement must not touch the ledger.
	require.NoError(t, f.svc.ProcessBill(context.Background(), bill))
	assert.Equal(t, billdomain.BillStatusPaid, bill.Status)
	assert.Nil(t, bill.LedgerTransactionRef)

	var txns int64
	require.NoError(t, f.db.Model(&ledgerdomain.Transaction{}).Count(&txns).Error)
	assert.Zero(t, txns)
}

func TestProcessBill_RejectsNonPending(t *testing.T) {
	f := setupBillService(t, 4)
	cfg := f.priceConfig(t, "1.00")
	f.fund(t, "100")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)
	require.NoError(t, f.svc.ProcessBill(context.Background(), bill))

	err = f.svc.ProcessBill(context.Background(), bill)
	assert.ErrorIs(t, err, billdomain.ErrInvalidBillState)
}

func TestRetryBill_AfterTopUp(t *testing.T) {
	f := setupBillService(t, 100)
	cfg := f.priceConfig(t, "1.00")
	account := f.fund(t, "10")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	require.Error(t, f.svc.ProcessBill(context.Background(), bill))
	assert.Equal(t, billdomain.BillStatusFailed, bill.Status)

	_, err = f.ledgerSvc.Credit(context.Background(), "TOPUP_RETRY", account.ID, decimal.RequireFromString("200"), "top up")
	require.NoError(t, err)

	require.NoError(t, f.svc.RetryBill(context.Background(), bill))
	assert.Equal(t, billdomain.BillStatusPaid, bill.Status)
	assert.Nil(t, bill.FailureReason)
}

func TestRetryBill_RequiresFailedState(t *testing.T) {
	f := setupBillService(t, 4)
	cfg := f.priceConfig(t, "1.00")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	err = f.svc.RetryBill(context.Background(), bill)
	assert.ErrorIs(t, err, billdomain.ErrInvalidBillState)
}

func TestCancelBill(t *testing.T) {
	f := setupBillService(t, 4)
	cfg := f.priceConfig(t, "1.00")
	f.fund(t, "100")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelBill(context.Background(), bill, "operator request"))
	assert.Equal(t, billdomain.BillStatusCancelled, bill.Status)
	require.NotNil(t, bill.FailureReason)
	assert.Equal(t, "operator request", *bill.FailureReason)

	// Terminal; nothing else is allowed.
	assert.ErrorIs(t, f.svc.ProcessBill(context.Background(), bill), billdomain.ErrInvalidBillState)
	assert.ErrorIs(t, f.svc.CancelBill(context.Background(), bill, "again"), billdomain.ErrInvalidBillState)
}

func TestQueryBills(t *testing.T) {
	f := setupBillService(t, 10)
	cfg := f.priceConfig(t, "1.00")
	f.fund(t, "100")

	first, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)
	require.NoError(t, f.svc.ProcessBill(context.Background(), first))

	_, err = f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime.AddDate(0, 1, 0))
	require.NoError(t, err)

	all, err := f.svc.QueryBills(context.Background(), f.subscriber.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	paid, err := f.svc.QueryBills(context.Background(), f.subscriber.ID, map[string]any{"status": billdomain.BillStatusPaid})
	require.NoError(t, err)
	assert.Len(t, paid, 1)
	assert.Equal(t, first.ID, paid[0].ID)
}

func TestQueryBills_RejectsUnknownField(t *testing.T) {
	f := setupBillService(t, 10)

	// Criteria keys reach the SQL text, so only known columns pass.
	_, err := f.svc.QueryBills(context.Background(), f.subscriber.ID, map[string]any{"settled_amount": "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not filterable")

	_, err = f.svc.QueryBills(context.Background(), f.subscriber.ID, map[string]any{"status = status OR 1": "1"})
	require.Error(t, err)
}

func TestBillSummary(t *testing.T) {
	f := setupBillService(t, 10)
	cfg := f.priceConfig(t, "1.00")
	f.fund(t, "100")

	bill, err := f.svc.GenerateBill(context.Background(), f.subscriber, cfg, billTime)
	require.NoError(t, err)
	require.NoError(t, f.svc.ProcessBill(context.Background(), bill))

	rows, err := f.svc.BillSummary(context.Background(), f.subscriber.ID,
		billTime.AddDate(0, 0, -1), billTime.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].TotalCount)
	assert.Equal(t, int64(1), rows[0].PaidCount)
	assert.Zero(t, rows[0].FailedCount)
	assert.Equal(t, "10.00000", rows[0].PaidAmount.StringFixed(5))
}
