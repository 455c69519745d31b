package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	billdomain "github.com/smallbiznis/meterbill/internal/bill/domain"
	ledgerdomain "github.com/smallbiznis/meterbill/internal/ledger/domain"
	pricingdomain "github.com/smallbiznis/meterbill/internal/pricing/domain"
	usagedomain "github.com/smallbiznis/meterbill/internal/usage/domain"
	"gorm.io/gorm"
)

const (
	SweepSkipReasonAlreadyBilled = "already_billed"
	SweepSkipReasonZeroUsage     = "zero_usage"
	SweepSkipReasonNoUsageSource = "no_usage_source"
	SweepSkipReasonNoStrategy    = "no_strategy"
)

const (
	SweepErrorReasonDeadlineExceeded  = "deadline_exceeded"
	SweepErrorReasonInsufficientFunds = "insufficient_funds"
	SweepErrorReasonInvalidState      = "invalid_state"
	SweepErrorReasonDB                = "db"
	SweepErrorReasonUnknown           = "unknown"
)

const (
	SettlementOutcomePaid   = "paid"
	SettlementOutcomeFailed = "failed"
)

// SweepMetrics captures bill sweep and settlement health signals.
type SweepMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobErrors      *prometheus.CounterVec
	billsGenerated prometheus.Counter
	billsSkipped   *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	settledAmount  *prometheus.CounterVec
}

var (
	sweepMetricsOnce sync.Once
	sweepMetrics     *SweepMetrics
)

// Sweep returns the singleton sweep metrics registry.
func Sweep() *SweepMetrics {
	sweepMetricsOnce.Do(func() {
		sweepMetrics = newSweepMetrics(prometheus.DefaultRegisterer)
	})
	return sweepMetrics
}

// ResetSweepMetricsForTest resets the sweep metrics singleton for tests.
func ResetSweepMetricsForTest() {
	sweepMetricsOnce = sync.Once{}
	sweepMetrics = nil
}

func newSweepMetrics(registerer prometheus.Registerer) *SweepMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_sweep_job_runs_total",
		Help: "Sweep job runs by name.",
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meterbill_sweep_job_duration_seconds",
		Help:    "Sweep job latency to keep billing windows from backing up.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_sweep_job_errors_total",
		Help: "Sweep job errors by low-cardinality reason.",
	}, []string{"job", "reason"})
	billsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meterbill_bills_generated_total",
		Help: "Bills created by the sweep to gauge billing throughput.",
	})
	billsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_bills_skipped_total",
		Help: "Billing candidates skipped by reason.",
	}, []string{"reason"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_settlements_total",
		Help: "Bill settlement attempts by outcome.",
	}, []string{"outcome"})
	settledAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_settled_amount_total",
		Help: "Sum of settled amounts by currency.",
	}, []string{"currency"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobErrors,
		billsGenerated,
		billsSkipped,
		settlements,
		settledAmount,
	)

	return &SweepMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobErrors:      jobErrors,
		billsGenerated: billsGenerated,
		billsSkipped:   billsSkipped,
		settlements:    settlements,
		settledAmount:  settledAmount,
	}
}

// IncJobRun increments the run counter for a sweep job.
func (m *SweepMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records sweep job latency in seconds.
func (m *SweepMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobError increments the sweep job error counter with classification.
func (m *SweepMetrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySweepErrorReason(err)).Inc()
}

// IncBillGenerated increments the generated bill counter.
func (m *SweepMetrics) IncBillGenerated() {
	if m == nil || m.billsGenerated == nil {
		return
	}
	m.billsGenerated.Inc()
}

// IncBillSkipped increments the skipped candidate counter for a reason.
func (m *SweepMetrics) IncBillSkipped(reason string) {
	if m == nil || m.billsSkipped == nil {
		return
	}
	m.billsSkipped.WithLabelValues(reason).Inc()
}

// IncSettlement increments the settlement counter by outcome.
func (m *SweepMetrics) IncSettlement(outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

// AddSettledAmount accumulates settled value per currency.
func (m *SweepMetrics) AddSettledAmount(currency string, amount float64) {
	if m == nil || m.settledAmount == nil || amount <= 0 {
		return
	}
	m.settledAmount.WithLabelValues(currency).Add(amount)
}

// ClassifySweepErrorReason maps sweep errors to low-cardinality reasons.
func ClassifySweepErrorReason(err error) string {
	if err == nil {
		return SweepErrorReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SweepErrorReasonDeadlineExceeded
	}
	if errors.Is(err, ledgerdomain.ErrInsufficientFunds) {
		return SweepErrorReasonInsufficientFunds
	}
	if errors.Is(err, billdomain.ErrInvalidBillState) {
		return SweepErrorReasonInvalidState
	}
	if isDBError(err) {
		return SweepErrorReasonDB
	}
	return SweepErrorReasonUnknown
}

// ClassifySweepSkipReason maps expected generation outcomes to skip reasons,
// returning false for errors that are not skips.
func ClassifySweepSkipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, billdomain.ErrBillAlreadyExists):
		return SweepSkipReasonAlreadyBilled, true
	case errors.Is(err, billdomain.ErrZeroUsage):
		return SweepSkipReasonZeroUsage, true
	case errors.Is(err, usagedomain.ErrNoUsageSource):
		return SweepSkipReasonNoUsageSource, true
	case errors.Is(err, pricingdomain.ErrNoStrategy):
		return SweepSkipReasonNoStrategy, true
	}
	return "", false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	return errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrDuplicatedKey)
}
