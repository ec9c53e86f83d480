package repository

import (
	"time"

	"github.com/ikimina/tontine-gateway/internal/model"
)

type PaymentEntity struct {
	ID             int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64     `db:"user_id"         gorm:"column:user_id;not null;index"`
	TontineID      int64     `db:"tontine_id"      gorm:"column:tontine_id;not null;index"`
	LoanID         *int64    `db:"loan_id"         gorm:"column:loan_id"`
	PenaltyID      *int64    `db:"penalty_id"      gorm:"column:penalty_id"`
	Kind           string    `db:"kind"            gorm:"column:kind;not null"`
	Amount         int64     `db:"amount"          gorm:"column:amount;not null"`
	PhoneNumber    string    `db:"phone_number"    gorm:"column:phone_number;not null"`
	Method         string    `db:"payment_method"  gorm:"column:payment_method;not null"`
	TransactionRef string    `db:"transaction_ref" gorm:"column:transaction_ref;not null;uniqueIndex"`
	Status         string    `db:"status"          gorm:"column:status;not null;default:pending;index"`
	FailureReason  string    `db:"failure_reason"  gorm:"column:failure_reason"`
	CreatedAt      time.Time `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `db:"updated_at"      gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentEntity) TableName() string {
	return "payments"
}

func toPaymentEntity(p *model.Payment) *PaymentEntity {
	if p == nil {
		return nil
	}
	return &PaymentEntity{
		ID:             p.ID,
		UserID:         p.UserID,
		TontineID:      p.TontineID,
		LoanID:         p.LoanID,
		PenaltyID:      p.PenaltyID,
		Kind:           string(p.Kind),
		Amount:         p.Amount,
		PhoneNumber:    p.PhoneNumber,
		Method:         p.Method,
		TransactionRef: p.TransactionRef,
		Status:         string(p.Status),
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPaymentModel(e *PaymentEntity) *model.Payment {
	if e == nil {
		return nil
	}
	return &model.Payment{
		ID:             e.ID,
		UserID:         e.UserID,
		TontineID:      e.TontineID,
		LoanID:         e.LoanID,
		PenaltyID:      e.PenaltyID,
		Kind:           model.PaymentKind(e.Kind),
		Amount:         e.Amount,
		PhoneNumber:    e.PhoneNumber,
		Method:         e.Method,
		TransactionRef: e.TransactionRef,
		Status:         model.PaymentStatus(e.Status),
		FailureReason:  e.FailureReason,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toPaymentModels(entities []*PaymentEntity) []*model.Payment {
	if entities == nil {
		return nil
	}
	models := make([]*model.Payment, len(entities))
	for i, e := range entities {
		models[i] = toPaymentModel(e)
	}
	return models
}
