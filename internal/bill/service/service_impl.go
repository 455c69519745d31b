package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/meterbill/internal/bill/domain"
	"github.com/smallbiznis/meterbill/internal/billingcycle"
	ledgerdomain "github.com/smallbiznis/meterbill/internal/ledger/domain"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	pricingdomain "github.com/smallbiznis/meterbill/internal/pricing/domain"
	subscriberdomain "github.com/smallbiznis/meterbill/internal/subscriber/domain"
	usagedomain "github.com/smallbiznis/meterbill/internal/usage/domain"
	"github.com/smallbiznis/meterbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock func() time.Time

	billRepo   billdomain.Repository
	usageSvc   usagedomain.Service
	ledgerSvc  ledgerdomain.Service
	strategies *pricingdomain.Registry
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	BillRepo   billdomain.Repository
	UsageSvc   usagedomain.Service
	LedgerSvc  ledgerdomain.Service
	Strategies *pricingdomain.Registry
}

func NewService(p Params) billdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("bill.service"),
		genID:      p.GenID,
		clock:      func() time.Time { return time.Now().UTC() },
		billRepo:   p.BillRepo,
		usageSvc:   p.UsageSvc,
		ledgerSvc:  p.LedgerSvc,
		strategies: p.Strategies,
	}
}

func (s *Service) GenerateBill(
	ctx context.Context,
	subscriber *subscriberdomain.Subscriber,
	cfg *pricedomain.PriceConfiguration,
	billTime time.Time,
) (*billdomain.Bill, error) {
	window, err := billingcycle.Resolve(cfg.Cycle, billTime)
	if err != nil {
		return nil, err
	}

	exists, err := s.billRepo.ExistsBill(ctx, subscriber.ID, cfg.ID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("subscriber %s configuration %s window [%s, %s): %w",
			subscriber.ExternalID, cfg.ID,
			window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339),
			billdomain.ErrBillAlreadyExists)
	}

	usage, err := s.usageSvc.Usage(ctx, subscriber.ID, cfg.ResourceKey, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	// Zero usage produces no bill unless a positive floor price forces a
	// minimum charge for the period.
	if usage == 0 && !cfg.HasPositiveFloor() {
		return nil, fmt.Errorf("resource %s: %w", cfg.ResourceKey, billdomain.ErrZeroUsage)
	}

	detail, err := s.usageSvc.UsageDetail(ctx, subscriber.ID, cfg.ResourceKey, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	strategy, err := s.strategies.ForConfiguration(cfg)
	if err != nil {
		return nil, err
	}

	// Ordering is fixed: clamp usage, apply the free quota, price the
	// billable remainder. The strategy re-applies cap/floor to whatever it
	// prices.
	billable := cfg.ClampUsage(usage)

	gross, err := strategy.Calculate(cfg, billable)
	if err != nil {
		return nil, err
	}

	settled, err := s.applyFreeQuota(cfg, strategy, billable, gross)
	if err != nil {
		return nil, err
	}

	account, err := s.ledgerSvc.EnsureAccount(ctx, subscriber.ID, cfg.CurrencyCode)
	if err != nil {
		return nil, err
	}

	bill := &billdomain.Bill{
		ID:                   s.genID.Generate(),
		SubscriberID:         subscriber.ID,
		PriceConfigurationID: cfg.ID,
		LedgerAccountID:      account.ID,
		BillTime:             billTime.UTC(),
		PeriodStart:          window.Start,
		PeriodEnd:            window.End,
		UsageCount:           usage,
		UsageDetail:          detail,
		CurrencyCode:         cfg.CurrencyCode,
		UnitPrice:            cfg.UnitPrice,
		GrossAmount:          gross,
		SettledAmount:        settled,
		Status:               billdomain.BillStatusPending,
	}

	if err := s.billRepo.Create(ctx, bill); err != nil {
		// A concurrent generation for the same window won the insert. The
		// unique index makes that a duplicate, not a double bill.
		if db.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("subscriber %s configuration %s: %w",
				subscriber.ExternalID, cfg.ID, billdomain.ErrBillAlreadyExists)
		}
		return nil, err
	}

	s.log.Info("bill generated",
		zap.String("bill_id", bill.ID.String()),
		zap.String("subscriber", subscriber.ExternalID),
		zap.String("resource", cfg.ResourceKey),
		zap.Int64("usage", usage),
		zap.String("settled_amount", settled.StringFixed(pricingdomain.Scale)),
	)

	return bill, nil
}

// applyFreeQuota zeroes the charge when usage fits inside the quota and
// reprices only the excess otherwise.
func (s *Service) applyFreeQuota(
	cfg *pricedomain.PriceConfiguration,
	strategy pricingdomain.Strategy,
	usage int64,
	gross decimal.Decimal,
) (decimal.Decimal, error) {
	if cfg.FreeQuota == nil || *cfg.FreeQuota <= 0 {
		return gross, nil
	}
	if usage <= *cfg.FreeQuota {
		return decimal.Zero, nil
	}
	return strategy.Calculate(cfg, usage-*cfg.FreeQuota)
}

func (s *Service) ProcessBill(ctx context.Context, bill *billdomain.Bill) error {
	if !bill.Status.CanTransitionTo(billdomain.BillStatusProcessing) {
		return fmt.Errorf("bill %s in status %s cannot enter processing: %w",
			bill.ID, bill.Status, billdomain.ErrInvalidBillState)
	}

	// Persist the intermediate state first so a crash-recovery sweep can
	// find bills stuck mid-settlement.
	bill.Status = billdomain.BillStatusProcessing
	if err := s.billRepo.Save(ctx, bill); err != nil {
		return err
	}

	if bill.SettledAmount.IsZero() {
		now := s.clock()
		bill.Status = billdomain.BillStatusPaid
		bill.SettledAt = &now
		if err := s.billRepo.Save(ctx, bill); err != nil {
			return err
		}

		s.log.Info("zero-amount bill settled without ledger call",
			zap.String("bill_id", bill.ID.String()),
		)
		return nil
	}

	ref := transactionRef(bill)
	memo := fmt.Sprintf("bill %s period %s - %s",
		bill.ID,
		bill.PeriodStart.Format("2006-01-02 15:04:05"),
		bill.PeriodEnd.Format("2006-01-02 15:04:05"),
	)

	txn, err := s.ledgerSvc.Debit(ctx, ref, bill.LedgerAccountID, bill.SettledAmount, memo)
	if err != nil {
		reason := err.Error()
		bill.Status = billdomain.BillStatusFailed
		bill.FailureReason = &reason
		if saveErr := s.billRepo.Save(ctx, bill); saveErr != nil {
			return saveErr
		}

		s.log.Error("bill settlement failed",
			zap.String("bill_id", bill.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("settle bill %s: %w", bill.ID, err)
	}

	now := s.clock()
	bill.Status = billdomain.BillStatusPaid
	bill.SettledAt = &now
	bill.LedgerTransactionRef = &txn.Ref
	if err := s.billRepo.Save(ctx, bill); err != nil {
		return err
	}

	s.log.Info("bill settled",
		zap.String("bill_id", bill.ID.String()),
		zap.String("amount", bill.SettledAmount.StringFixed(pricingdomain.Scale)),
		zap.String("transaction_ref", txn.Ref),
	)
	return nil
}

func (s *Service) RetryBill(ctx context.Context, bill *billdomain.Bill) error {
	if bill.Status != billdomain.BillStatusFailed {
		return fmt.Errorf("bill %s in status %s is not retryable: %w",
			bill.ID, bill.Status, billdomain.ErrInvalidBillState)
	}

	bill.Status = billdomain.BillStatusPending
	bill.FailureReason = nil
	if err := s.billRepo.Save(ctx, bill); err != nil {
		return err
	}

	return s.ProcessBill(ctx, bill)
}

func (s *Service) CancelBill(ctx context.Context, bill *billdomain.Bill, reason string) error {
	if !bill.Status.CanTransitionTo(billdomain.BillStatusCancelled) {
		return fmt.Errorf("bill %s in status %s cannot be cancelled: %w",
			bill.ID, bill.Status, billdomain.ErrInvalidBillState)
	}

	bill.Status = billdomain.BillStatusCancelled
	bill.FailureReason = &reason
	if err := s.billRepo.Save(ctx, bill); err != nil {
		return err
	}

	s.log.Info("bill cancelled",
		zap.String("bill_id", bill.ID.String()),
		zap.String("reason", reason),
	)
	return nil
}

// queryableBillFields lists the columns QueryBills accepts as criteria.
// Field names end up in SQL, so anything outside this set is rejected.
var queryableBillFields = map[string]bool{
	"status":                 true,
	"price_configuration_id": true,
	"currency_code":          true,
	"bill_time":              true,
	"period_start":           true,
	"period_end":             true,
}

func (s *Service) QueryBills(ctx context.Context, subscriberID snowflake.ID, criteria map[string]any) ([]*billdomain.Bill, error) {
	stmt := s.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("bill_time DESC")

	for field, value := range criteria {
		if !queryableBillFields[field] {
			return nil, fmt.Errorf("bill query field %q is not filterable", field)
		}
		stmt = stmt.Where(fmt.Sprintf("%s = ?", field), value)
	}

	var bills []*billdomain.Bill
	err := stmt.Find(&bills).Error
	return bills, err
}

func (s *Service) BillSummary(ctx context.Context, subscriberID snowflake.ID, start, end time.Time) ([]billdomain.SummaryRow, error) {
	var rows []billdomain.SummaryRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT b.price_configuration_id,
		        p.title,
		        COUNT(b.id) AS total_count,
		        SUM(CASE WHEN b.status = ? THEN 1 ELSE 0 END) AS paid_count,
		        SUM(CASE WHEN b.status = ? THEN 1 ELSE 0 END) AS failed_count,
		        COALESCE(SUM(CASE WHEN b.status = ? THEN b.settled_amount ELSE 0 END), 0) AS paid_amount
		 FROM bills b
		 LEFT JOIN price_configurations p ON p.id = b.price_configuration_id
		 WHERE b.subscriber_id = ? AND b.bill_time >= ? AND b.bill_time < ?
		 GROUP BY b.price_configuration_id, p.title`,
		billdomain.BillStatusPaid,
		billdomain.BillStatusFailed,
		billdomain.BillStatusPaid,
		subscriberID,
		start,
		end,
	).Scan(&rows).Error
	return rows, err
}

// transactionRef derives the ledger reference deterministically from the
// bill id so a retried debit is detected by the ledger, not double-charged.
func transactionRef(bill *billdomain.Bill) string {
	return "BILL_" + bill.ID.String()
}
