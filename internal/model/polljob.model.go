package model

import "time"

// PollJobStatus is the lifecycle state of a status poll job.
type PollJobStatus string

const (
	PollJobStatusScheduled PollJobStatus = "scheduled"
	PollJobStatusDone      PollJobStatus = "done"
	PollJobStatusExhausted PollJobStatus = "exhausted"
)

// PollJob is one persisted unit of status-polling work. A job survives
// process restarts; the scheduler picks up whatever is due.
type PollJob struct {
	ID             string        `json:"id"`
	PaymentID      int64         `json:"payment_id"`
	TransactionRef string        `json:"transaction_ref"`
	GatewayTxnID   string        `json:"gateway_txn_id"`
	Attempts       int           `json:"attempts"`
	MaxAttempts    int           `json:"max_attempts"`
	NextRunAt      time.Time     `json:"next_run_at"`
	Status         PollJobStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Exhausted reports whether the job has used up its attempt budget.
func (j PollJob) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// PollID is what the gateway is asked about: its own transaction id when
// the initiate response carried one, otherwise our reference.
func (j PollJob) PollID() string {
	if j.GatewayTxnID != "" {
		return j.GatewayTxnID
	}
	return j.TransactionRef
}
