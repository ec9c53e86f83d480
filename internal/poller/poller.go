package poller

import (
	"context"
	"sync"
	"time"

	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/pkg/logger"
	"github.com/ikimina/tontine-gateway/pkg/prom"
	"github.com/ikimina/tontine-gateway/pkg/worker"
)

type PollJobRepository interface {
	Due(ctx context.Context, now time.Time, limit int) ([]*model.PollJob, error)
	Reschedule(ctx context.Context, id string, attempts int, nextRunAt time.Time) error
	MarkDone(ctx context.Context, id string) error
	MarkExhausted(ctx context.Context, id string) error
}

type StatusClient interface {
	QueryStatus(ctx context.Context, transactionID string) (*gateway.Response, error)
}

// PaymentSettler flips ledger rows once the gateway gives a verdict.
type PaymentSettler interface {
	ConfirmPayment(ctx context.Context, ref string) (bool, error)
	FailPayment(ctx context.Context, ref string, reason string) (bool, error)
}

type Config struct {
	// Interval is the gap between two checks of the same payment.
	Interval time.Duration
	// TickInterval is the cadence of the scheduler loop.
	TickInterval time.Duration
	BatchSize    int
	Workers      int
}

// Poller drains due poll jobs and asks the gateway what became of each
// payment. Jobs live in the database, so checks survive restarts: whatever
// was due while the process was down is picked up on the first tick.
type Poller struct {
	jobs    PollJobRepository
	gateway StatusClient
	settler PaymentSettler
	config  Config
	workers *worker.WorkerManager
	wg      sync.WaitGroup
}

func New(jobs PollJobRepository, gw StatusClient, settler PaymentSettler, config Config) *Poller {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 2 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Workers <= 0 {
		config.Workers = 8
	}

	p := &Poller{
		jobs:    jobs,
		gateway: gw,
		settler: settler,
		config:  config,
	}
	p.workers = worker.NewWorkerManager(config.BatchSize*2, config.Workers, nil)
	p.workers.SetWorker(p.handle)
	return p
}

// Run blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	logger.Info("poller started",
		"interval", p.config.Interval.String(),
		"tick", p.config.TickInterval.String(),
		"workers", p.config.Workers)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.config.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.workers.Exit()
				return
			case <-ticker.C:
				p.Tick(ctx)
			}
		}
	}()

	err := p.workers.Start()
	p.wg.Wait()
	logger.Info("poller stopped")
	return err
}

// Tick claims every due job and hands it to the worker pool. Claiming
// means bumping the attempt counter and pushing next_run_at forward before
// dispatch, so a crash mid-check costs one attempt, never the job.
func (p *Poller) Tick(ctx context.Context) int {
	due, err := p.jobs.Due(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		logger.Error("failed to fetch due poll jobs", "error", err)
		return 0
	}

	dispatched := 0
	for _, job := range due {
		job.Attempts++
		if err := p.jobs.Reschedule(ctx, job.ID, job.Attempts, time.Now().Add(p.config.Interval)); err != nil {
			logger.Error("failed to claim poll job", "error", err, "job_id", job.ID)
			continue
		}
		p.workers.Enqueue(job)
		dispatched++
	}
	return dispatched
}

func (p *Poller) handle(workerIndex int, j interface{}) {
	job, ok := j.(*model.PollJob)
	if !ok {
		logger.Error("unexpected job type on poll queue", "worker", workerIndex)
		return
	}
	p.process(context.Background(), job)
}

func (p *Poller) process(ctx context.Context, job *model.PollJob) {
	start := time.Now()
	resp, err := p.gateway.QueryStatus(ctx, job.PollID())
	prom.AddPollCheckDuration(time.Since(start).Seconds())

	outcome := gateway.StatusPending
	if err != nil {
		// transport problems are ambiguous: the charge may well have gone
		// through, so the payment must not be failed on this evidence
		logger.Warn("status check failed",
			"error", err,
			"ref", job.TransactionRef,
			"attempt", job.Attempts)
	} else {
		outcome = gateway.ClassifyStatus(resp)
	}

	switch outcome {
	case gateway.StatusConfirmed:
		if _, err := p.settler.ConfirmPayment(ctx, job.TransactionRef); err != nil {
			logger.Error("failed to confirm payment", "error", err, "ref", job.TransactionRef)
			return // job stays scheduled, retried next interval
		}
		p.finish(ctx, job)

	case gateway.StatusFailed:
		if _, err := p.settler.FailPayment(ctx, job.TransactionRef, failureReason(resp)); err != nil {
			logger.Error("failed to fail payment", "error", err, "ref", job.TransactionRef)
			return
		}
		p.finish(ctx, job)

	case gateway.StatusPending:
		if job.Exhausted() {
			if err := p.jobs.MarkExhausted(ctx, job.ID); err != nil {
				logger.Error("failed to exhaust poll job", "error", err, "job_id", job.ID)
				return
			}
			prom.IncPollExhausted()
			// deliberate: the ledger row stays pending, manual
			// reconciliation is the recovery path
			logger.Warn("poll budget exhausted, payment left pending",
				"ref", job.TransactionRef,
				"attempts", job.Attempts)
		}
	}
}

func (p *Poller) finish(ctx context.Context, job *model.PollJob) {
	if err := p.jobs.MarkDone(ctx, job.ID); err != nil {
		logger.Error("failed to finish poll job", "error", err, "job_id", job.ID)
	}
}

func failureReason(resp *gateway.Response) string {
	if resp != nil && resp.Message != "" {
		return resp.Message
	}
	return "payment failed, confirmed by gateway"
}
