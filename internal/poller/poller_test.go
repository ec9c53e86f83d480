package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* --------------------------------- fakes ----------------------------------- */

type claim struct {
	attempts  int
	nextRunAt time.Time
}

type fakeJobs struct {
	due         []*model.PollJob
	dueErr      error
	rescheduled map[string]claim
	done        []string
	exhausted   []string
}

func newFakeJobs(due ...*model.PollJob) *fakeJobs {
	return &fakeJobs{due: due, rescheduled: make(map[string]claim)}
}

func (f *fakeJobs) Due(ctx context.Context, now time.Time, limit int) ([]*model.PollJob, error) {
	return f.due, f.dueErr
}

func (f *fakeJobs) Reschedule(ctx context.Context, id string, attempts int, nextRunAt time.Time) error {
	f.rescheduled[id] = claim{attempts: attempts, nextRunAt: nextRunAt}
	return nil
}

func (f *fakeJobs) MarkDone(ctx context.Context, id string) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeJobs) MarkExhausted(ctx context.Context, id string) error {
	f.exhausted = append(f.exhausted, id)
	return nil
}

type fakeStatus struct {
	resp  *gateway.Response
	err   error
	calls []string
}

func (f *fakeStatus) QueryStatus(ctx context.Context, transactionID string) (*gateway.Response, error) {
	f.calls = append(f.calls, transactionID)
	return f.resp, f.err
}

type fakeSettler struct {
	confirmed  []string
	failed     []string
	reasons    []string
	confirmErr error
}

func (f *fakeSettler) ConfirmPayment(ctx context.Context, ref string) (bool, error) {
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	f.confirmed = append(f.confirmed, ref)
	return true, nil
}

func (f *fakeSettler) FailPayment(ctx context.Context, ref string, reason string) (bool, error) {
	f.failed = append(f.failed, ref)
	f.reasons = append(f.reasons, reason)
	return true, nil
}

func testJob(attempts int) *model.PollJob {
	return &model.PollJob{
		ID:             "job-1",
		PaymentID:      1,
		TransactionRef: "ref-1",
		Attempts:       attempts,
		MaxAttempts:    10,
		NextRunAt:      time.Now().Add(-time.Second),
		Status:         model.PollJobStatusScheduled,
	}
}

func newTestPoller(jobs *fakeJobs, status *fakeStatus, settler *fakeSettler) *Poller {
	return New(jobs, status, settler, Config{
		Interval:     30 * time.Second,
		TickInterval: time.Second,
		BatchSize:    10,
		Workers:      2,
	})
}

/* --------------------------------- tests ----------------------------------- */

func TestPoller_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("claims due jobs before dispatch", func(t *testing.T) {
		jobs := newFakeJobs(testJob(2))
		p := newTestPoller(jobs, &fakeStatus{}, &fakeSettler{})

		dispatched := p.Tick(ctx)
		assert.Equal(t, 1, dispatched)

		c, ok := jobs.rescheduled["job-1"]
		require.True(t, ok)
		assert.Equal(t, 3, c.attempts)
		assert.WithinDuration(t, time.Now().Add(30*time.Second), c.nextRunAt, time.Second)
	})

	t.Run("fetch error dispatches nothing", func(t *testing.T) {
		jobs := newFakeJobs()
		jobs.dueErr = errors.New("db gone")
		p := newTestPoller(jobs, &fakeStatus{}, &fakeSettler{})

		assert.Equal(t, 0, p.Tick(ctx))
	})
}

func TestPoller_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed settles and finishes the job", func(t *testing.T) {
		jobs := newFakeJobs()
		settler := &fakeSettler{}
		status := &fakeStatus{resp: &gateway.Response{Status: "completed"}}
		p := newTestPoller(jobs, status, settler)

		p.process(ctx, testJob(1))

		assert.Equal(t, []string{"ref-1"}, settler.confirmed)
		assert.Equal(t, []string{"job-1"}, jobs.done)
		assert.Empty(t, jobs.exhausted)
	})

	t.Run("failed settles with the gateway message", func(t *testing.T) {
		jobs := newFakeJobs()
		settler := &fakeSettler{}
		status := &fakeStatus{resp: &gateway.Response{Status: "failed", Message: "customer declined"}}
		p := newTestPoller(jobs, status, settler)

		p.process(ctx, testJob(1))

		assert.Equal(t, []string{"ref-1"}, settler.failed)
		assert.Equal(t, []string{"customer declined"}, settler.reasons)
		assert.Equal(t, []string{"job-1"}, jobs.done)
	})

	t.Run("ambiguous response leaves the job scheduled", func(t *testing.T) {
		jobs := newFakeJobs()
		settler := &fakeSettler{}
		status := &fakeStatus{resp: &gateway.Response{Status: "processing"}}
		p := newTestPoller(jobs, status, settler)

		p.process(ctx, testJob(3))

		assert.Empty(t, settler.confirmed)
		assert.Empty(t, settler.failed)
		assert.Empty(t, jobs.done)
		assert.Empty(t, jobs.exhausted)
	})

	t.Run("transport error is ambiguous, never a failure", func(t *testing.T) {
		jobs := newFakeJobs()
		settler := &fakeSettler{}
		status := &fakeStatus{err: &gateway.TransportError{Err: errors.New("timeout")}}
		p := newTestPoller(jobs, status, settler)

		p.process(ctx, testJob(3))

		assert.Empty(t, settler.failed)
		assert.Empty(t, jobs.done)
	})

	t.Run("attempt budget exhausted leaves the ledger alone", func(t *testing.T) {
		jobs := newFakeJobs()
		settler := &fakeSettler{}
		status := &fakeStatus{resp: &gateway.Response{Status: "processing"}}
		p := newTestPoller(jobs, status, settler)

		p.process(ctx, testJob(10))

		assert.Equal(t, []string{"job-1"}, jobs.exhausted)
		assert.Empty(t, settler.confirmed)
		assert.Empty(t, settler.failed)
	})

	t.Run("settle error keeps the job scheduled for a retry", func(t *testing.T) {
		jobs := newFakeJobs()
		settler := &fakeSettler{confirmErr: errors.New("db gone")}
		status := &fakeStatus{resp: &gateway.Response{Status: "success"}}
		p := newTestPoller(jobs, status, settler)

		p.process(ctx, testJob(1))

		assert.Empty(t, jobs.done)
		assert.Empty(t, jobs.exhausted)
	})

	t.Run("polls with the gateway transaction id when present", func(t *testing.T) {
		jobs := newFakeJobs()
		status := &fakeStatus{resp: &gateway.Response{Status: "processing"}}
		p := newTestPoller(jobs, status, &fakeSettler{})

		job := testJob(1)
		job.GatewayTxnID = "LP-77"
		p.process(ctx, job)

		assert.Equal(t, []string{"LP-77"}, status.calls)
	})
}
