package model

import "time"

type PenaltyStatus string

const (
	PenaltyStatusUnpaid PenaltyStatus = "unpaid"
	PenaltyStatusPaid   PenaltyStatus = "paid"
)

type Penalty struct {
	ID        int64         `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64         `json:"user_id"    db:"user_id"    gorm:"column:user_id;not null;index"`
	TontineID int64         `json:"tontine_id" db:"tontine_id" gorm:"column:tontine_id;not null;index"`
	Amount    int64         `json:"amount"     db:"amount"     gorm:"column:amount;not null"`
	Reason    string        `json:"reason"     db:"reason"     gorm:"column:reason"`
	Status    PenaltyStatus `json:"status"     db:"status"     gorm:"column:status;not null;default:unpaid"`
	PaidAt    *time.Time    `json:"paid_at,omitempty" db:"paid_at" gorm:"column:paid_at"`
	CreatedAt time.Time     `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Penalty) TableName() string { return "penalties" }
