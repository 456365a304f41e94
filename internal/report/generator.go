package report

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/customer"
	"github.com/pulseboard/pulseboard/internal/ledger"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/subscription"
	"github.com/pulseboard/pulseboard/internal/traces"
)

// ErrQueueFull is returned by Enqueue when the worker cannot keep up.
var ErrQueueFull = errors.New("report: generation queue is full")

type job struct {
	orgID    string
	reportID string
}

// Generator aggregates report summaries in a background goroutine. Handlers
// enqueue pending reports; the worker fills in the summary and flips the
// status to completed or failed.
type Generator struct {
	store     Store
	customers customer.Store
	subs      subscription.Store
	txns      ledger.Store

	jobs chan job
	wg   sync.WaitGroup
}

// NewGenerator creates a report generator with a bounded job queue.
func NewGenerator(store Store, customers customer.Store, subs subscription.Store, txns ledger.Store, queueSize int) *Generator {
	return &Generator{
		store:     store,
		customers: customers,
		subs:      subs,
		txns:      txns,
		jobs:      make(chan job, queueSize),
	}
}

// Start launches the worker. It drains the queue until ctx is cancelled or
// Stop closes the queue.
func (g *Generator) Start(ctx context.Context) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-g.jobs:
				if !ok {
					return
				}
				g.generate(ctx, j)
			}
		}
	}()
}

// Stop closes the queue and waits for in-flight generation to finish.
func (g *Generator) Stop() {
	close(g.jobs)
	g.wg.Wait()
}

// Enqueue schedules a pending report for generation without blocking the
// request handler.
func (g *Generator) Enqueue(orgID, reportID string) error {
	select {
	case g.jobs <- job{orgID: orgID, reportID: reportID}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (g *Generator) generate(ctx context.Context, j job) {
	ctx, span := traces.StartSpan(ctx, "report.Generate",
		traces.OrgID(j.orgID), traces.ReportID(j.reportID))
	defer span.End()

	start := time.Now()

	r, err := g.store.Get(ctx, j.orgID, j.reportID)
	if err != nil {
		logging.L(ctx).Error("report lookup failed", "error", err, "report_id", j.reportID)
		metrics.ReportsGeneratedTotal.WithLabelValues("failed").Inc()
		return
	}

	summary, err := g.summarize(ctx, r)
	now := time.Now()
	if err != nil {
		logging.L(ctx).Error("report generation failed", "error", err, "report_id", r.ID)
		r.Status = StatusFailed
		r.CompletedAt = &now
		if uerr := g.store.Update(ctx, r); uerr != nil {
			logging.L(ctx).Error("report status update failed", "error", uerr, "report_id", r.ID)
		}
		metrics.ReportsGeneratedTotal.WithLabelValues("failed").Inc()
		return
	}

	r.Status = StatusCompleted
	r.Summary = summary
	r.CompletedAt = &now
	if err := g.store.Update(ctx, r); err != nil {
		logging.L(ctx).Error("report completion update failed", "error", err, "report_id", r.ID)
		metrics.ReportsGeneratedTotal.WithLabelValues("failed").Inc()
		return
	}

	metrics.ReportsGeneratedTotal.WithLabelValues("completed").Inc()
	metrics.ReportGenerationDuration.Observe(time.Since(start).Seconds())
	logging.L(ctx).Info("report generated", "report_id", r.ID, "type", string(r.Type))
}

func (g *Generator) summarize(ctx context.Context, r *Report) (*Summary, error) {
	orgID := r.OrganizationID

	totalUsers, err := g.customers.CountSignedUpBefore(ctx, orgID, r.PeriodEnd)
	if err != nil {
		return nil, err
	}
	activeUsers, err := g.customers.CountActiveBetween(ctx, orgID, r.PeriodStart, r.PeriodEnd)
	if err != nil {
		return nil, err
	}
	revenue, err := g.txns.SumSucceededBetween(ctx, orgID, r.PeriodStart, r.PeriodEnd)
	if err != nil {
		return nil, err
	}
	mrr, err := g.subs.SumActiveMonthlyPrice(ctx, orgID)
	if err != nil {
		return nil, err
	}
	cancelled, err := g.subs.CountCancelledBetween(ctx, orgID, r.PeriodStart, r.PeriodEnd)
	if err != nil {
		return nil, err
	}
	totalSubs, err := g.subs.CountAll(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var churnRate float64
	if totalSubs > 0 {
		churnRate = math.Round(float64(cancelled)/float64(totalSubs)*100) / 100
	}

	return &Summary{
		TotalUsers:  totalUsers,
		ActiveUsers: activeUsers,
		Revenue:     math.Round(revenue*100) / 100,
		ChurnRate:   churnRate,
		MRR:         math.Round(mrr*100) / 100,
		ARR:         math.Round(mrr*12*100) / 100,
	}, nil
}
