package sweeper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	billdomain "github.com/smallbiznis/meterbill/internal/bill/domain"
	"github.com/smallbiznis/meterbill/internal/billingcycle"
	"github.com/smallbiznis/meterbill/internal/clock"
	obsmetrics "github.com/smallbiznis/meterbill/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	subscriberdomain "github.com/smallbiznis/meterbill/internal/subscriber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("sweeper: missing dependency")

type Params struct {
	fx.In

	Log            *zap.Logger
	Clock          clock.Clock
	PriceSvc       pricedomain.Service
	BillSvc        billdomain.Service
	BillRepo       billdomain.Repository
	SubscriberRepo subscriberdomain.Repository
	Config         Config `optional:"true"`
}

// Sweeper walks billable price configurations on a schedule, generates the
// bills that are due and settles them. A second job retries bills whose
// settlement failed earlier.
type Sweeper struct {
	log            *zap.Logger
	cfg            Config
	clock          clock.Clock
	priceSvc       pricedomain.Service
	billSvc        billdomain.Service
	billRepo       billdomain.Repository
	subscriberRepo subscriberdomain.Repository
}

func New(p Params) (*Sweeper, error) {
	if p.Log == nil || p.Clock == nil || p.PriceSvc == nil || p.BillSvc == nil || p.BillRepo == nil || p.SubscriberRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		log:            p.Log.Named("sweeper").With(zap.String("component", "sweeper")),
		cfg:            p.Config.withDefaults(),
		clock:          p.Clock,
		priceSvc:       p.PriceSvc,
		billSvc:        p.BillSvc,
		billRepo:       p.BillRepo,
		subscriberRepo: p.SubscriberRepo,
	}, nil
}

func (s *Sweeper) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	sweepMetrics := obsmetrics.Sweep()
	sweepMetrics.IncJobRun(name)

	err := fn(ctx)
	sweepMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	sweepMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Sweeper) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"sweep", s.isJobEnabled("sweep"), func(ctx context.Context) error {
			return s.runJob(ctx, "sweep", s.cfg.JobTimeout, s.SweepJob)
		}},
		{"retry_failed", s.isJobEnabled("retry_failed"), func(ctx context.Context) error {
			return s.runJob(ctx, "retry_failed", s.cfg.JobTimeout, s.RetryFailedJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) isJobEnabled(jobName string) bool {
	for _, disabled := range s.cfg.DisabledJobs {
		if strings.EqualFold(disabled, jobName) {
			return false
		}
	}
	return true
}

func (s *Sweeper) SweepJob(ctx context.Context) error {
	return s.SweepAt(ctx, s.clock.Now())
}

// SweepAt bills every due configuration against every applicable subscriber
// at the given instant. Expected per-candidate outcomes, a window already
// billed or one with no usage, are skips, not failures. Unexpected errors on
// one candidate are logged and counted without stopping the sweep.
func (s *Sweeper) SweepAt(ctx context.Context, now time.Time) error {
	configs, err := s.priceSvc.ListBillableAt(ctx, now)
	if err != nil {
		return err
	}

	sweepMetrics := obsmetrics.Sweep()
	var sweepErr error

	for _, cfg := range configs {
		if !billingcycle.ShouldBill(cfg.Cycle, now) {
			continue
		}

		subscribers, err := s.subscriberRepo.ListByRoles(ctx, cfg.ApplicableRoles)
		if err != nil {
			sweepErr = errors.Join(sweepErr, fmt.Errorf("list subscribers for %s: %w", cfg.ResourceKey, err))
			continue
		}

		for _, subscriber := range subscribers {
			if ctx.Err() != nil {
				return errors.Join(sweepErr, ctx.Err())
			}

			bill, err := s.billSvc.GenerateBill(ctx, subscriber, cfg, now)
			if err != nil {
				if reason, skipped := obsmetrics.ClassifySweepSkipReason(err); skipped {
					sweepMetrics.IncBillSkipped(reason)
					s.log.Debug("billing candidate skipped",
						zap.String("subscriber", subscriber.ExternalID),
						zap.String("resource", cfg.ResourceKey),
						zap.String("reason", reason),
					)
					continue
				}
				sweepMetrics.IncJobError("sweep", err)
				s.log.Error("bill generation failed",
					zap.String("subscriber", subscriber.ExternalID),
					zap.String("resource", cfg.ResourceKey),
					zap.Error(err),
				)
				continue
			}
			sweepMetrics.IncBillGenerated()

			if err := s.billSvc.ProcessBill(ctx, bill); err != nil {
				// The bill stays Failed and the retry job picks it up.
				sweepMetrics.IncSettlement(obsmetrics.SettlementOutcomeFailed)
				s.log.Warn("bill settlement deferred to retry",
					zap.String("bill_id", bill.ID.String()),
					zap.Error(err),
				)
				continue
			}
			sweepMetrics.IncSettlement(obsmetrics.SettlementOutcomePaid)
			amount, _ := bill.SettledAmount.Float64()
			sweepMetrics.AddSettledAmount(bill.CurrencyCode, amount)
		}
	}

	return sweepErr
}

// RetryFailedJob reprocesses bills that failed settlement long enough ago to
// be worth another attempt.
func (s *Sweeper) RetryFailedJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.RetryThreshold)
	bills, err := s.billRepo.FindRetryable(ctx, cutoff, s.cfg.MaxRetryBatchSize)
	if err != nil {
		return err
	}

	sweepMetrics := obsmetrics.Sweep()
	var retryErr error

	for _, bill := range bills {
		if ctx.Err() != nil {
			return errors.Join(retryErr, ctx.Err())
		}

		if err := s.billSvc.RetryBill(ctx, bill); err != nil {
			sweepMetrics.IncSettlement(obsmetrics.SettlementOutcomeFailed)
			s.log.Warn("bill retry failed",
				zap.String("bill_id", bill.ID.String()),
				zap.Error(err),
			)
			continue
		}
		sweepMetrics.IncSettlement(obsmetrics.SettlementOutcomePaid)
	}

	return retryErr
}
