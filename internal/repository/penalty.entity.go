package repository

import (
	"time"

	"github.com/ikimina/tontine-gateway/internal/model"
)

type PenaltyEntity struct {
	ID        int64      `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64      `db:"user_id"    gorm:"column:user_id;not null;index"`
	TontineID int64      `db:"tontine_id" gorm:"column:tontine_id;not null;index"`
	Amount    int64      `db:"amount"     gorm:"column:amount;not null"`
	Reason    string     `db:"reason"     gorm:"column:reason"`
	Status    string     `db:"status"     gorm:"column:status;not null;default:unpaid"`
	PaidAt    *time.Time `db:"paid_at"    gorm:"column:paid_at"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (PenaltyEntity) TableName() string {
	return "penalties"
}

func toPenaltyModel(e *PenaltyEntity) *model.Penalty {
	if e == nil {
		return nil
	}
	return &model.Penalty{
		ID:        e.ID,
		UserID:    e.UserID,
		TontineID: e.TontineID,
		Amount:    e.Amount,
		Reason:    e.Reason,
		Status:    model.PenaltyStatus(e.Status),
		PaidAt:    e.PaidAt,
		CreatedAt: e.CreatedAt,
	}
}
