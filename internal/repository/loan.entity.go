package repository

import (
	"time"

	"github.com/ikimina/tontine-gateway/internal/model"
)

type LoanEntity struct {
	ID           int64      `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	UserID       int64      `db:"user_id"       gorm:"column:user_id;not null;index"`
	TontineID    int64      `db:"tontine_id"    gorm:"column:tontine_id;not null;index"`
	Amount       int64      `db:"amount"        gorm:"column:amount;not null"`
	AmountRepaid int64      `db:"amount_repaid" gorm:"column:amount_repaid;not null;default:0"`
	Status       string     `db:"status"        gorm:"column:status;not null;default:pending"`
	DueDate      *time.Time `db:"due_date"      gorm:"column:due_date"`
	CreatedAt    time.Time  `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `db:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`
}

func (LoanEntity) TableName() string {
	return "loan_requests"
}

func toLoanModel(e *LoanEntity) *model.Loan {
	if e == nil {
		return nil
	}
	return &model.Loan{
		ID:           e.ID,
		UserID:       e.UserID,
		TontineID:    e.TontineID,
		Amount:       e.Amount,
		AmountRepaid: e.AmountRepaid,
		Status:       model.LoanStatus(e.Status),
		DueDate:      e.DueDate,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}
