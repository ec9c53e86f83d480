package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/pkg/pg"
)

type PollJobEntity struct {
	pg.Model
	PaymentID      int64     `db:"payment_id"      gorm:"column:payment_id;not null;index"`
	TransactionRef string    `db:"transaction_ref" gorm:"column:transaction_ref;not null;uniqueIndex"`
	GatewayTxnID   string    `db:"gateway_txn_id"  gorm:"column:gateway_txn_id"`
	Attempts       int       `db:"attempts"        gorm:"column:attempts;not null;default:0"`
	MaxAttempts    int       `db:"max_attempts"    gorm:"column:max_attempts;not null"`
	NextRunAt      time.Time `db:"next_run_at"     gorm:"column:next_run_at;not null;index"`
	Status         string    `db:"status"          gorm:"column:status;not null;default:scheduled;index"`
}

func (PollJobEntity) TableName() string {
	return "poll_jobs"
}

func toPollJobEntity(j *model.PollJob) *PollJobEntity {
	if j == nil {
		return nil
	}
	e := &PollJobEntity{
		PaymentID:      j.PaymentID,
		TransactionRef: j.TransactionRef,
		GatewayTxnID:   j.GatewayTxnID,
		Attempts:       j.Attempts,
		MaxAttempts:    j.MaxAttempts,
		NextRunAt:      j.NextRunAt,
		Status:         string(j.Status),
	}
	if j.ID != "" {
		if id, err := uuid.Parse(j.ID); err == nil {
			e.ID = id
		}
	}
	return e
}

func toPollJobModel(e *PollJobEntity) *model.PollJob {
	if e == nil {
		return nil
	}
	return &model.PollJob{
		ID:             e.ID.String(),
		PaymentID:      e.PaymentID,
		TransactionRef: e.TransactionRef,
		GatewayTxnID:   e.GatewayTxnID,
		Attempts:       e.Attempts,
		MaxAttempts:    e.MaxAttempts,
		NextRunAt:      e.NextRunAt,
		Status:         model.PollJobStatus(e.Status),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toPollJobModels(entities []*PollJobEntity) []*model.PollJob {
	if entities == nil {
		return nil
	}
	models := make([]*model.PollJob, len(entities))
	for i, e := range entities {
		models[i] = toPollJobModel(e)
	}
	return models
}
