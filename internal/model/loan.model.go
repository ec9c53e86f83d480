package model

import "time"

type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusApproved LoanStatus = "approved"
	LoanStatusRepaid   LoanStatus = "repaid"
	LoanStatusRejected LoanStatus = "rejected"
)

type Loan struct {
	ID           int64      `json:"id"            db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	UserID       int64      `json:"user_id"       db:"user_id"       gorm:"column:user_id;not null;index"`
	TontineID    int64      `json:"tontine_id"    db:"tontine_id"    gorm:"column:tontine_id;not null;index"`
	Amount       int64      `json:"amount"        db:"amount"        gorm:"column:amount;not null"`
	AmountRepaid int64      `json:"amount_repaid" db:"amount_repaid" gorm:"column:amount_repaid;not null;default:0"`
	Status       LoanStatus `json:"status"        db:"status"        gorm:"column:status;not null;default:pending"`
	DueDate      *time.Time `json:"due_date,omitempty" db:"due_date" gorm:"column:due_date"`
	CreatedAt    time.Time  `json:"created_at"    db:"created_at"    gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at"    db:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`
}

func (Loan) TableName() string { return "loan_requests" }

// Outstanding is what remains to be repaid.
func (l Loan) Outstanding() int64 {
	if l.AmountRepaid >= l.Amount {
		return 0
	}
	return l.Amount - l.AmountRepaid
}
