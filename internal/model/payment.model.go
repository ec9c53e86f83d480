package model

import (
	"errors"
	"strings"
	"time"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// PaymentKind says what obligation the payment settles.
type PaymentKind string

const (
	PaymentKindContribution PaymentKind = "contribution"
	PaymentKindLoanPayment  PaymentKind = "loan_payment"
	PaymentKindPenalty      PaymentKind = "penalty"
)

// MethodMobileMoney is the only payment method that settles
// asynchronously through the gateway.
const MethodMobileMoney = "mobile_money"

// Prefixes accepted by the mobile money operators (MTN and Airtel Rwanda).
var allowedPhonePrefixes = []string{"078", "079", "072", "073"}

type Payment struct {
	ID             int64         `json:"id"              db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64         `json:"user_id"         db:"user_id"         gorm:"column:user_id;not null;index"`
	TontineID      int64         `json:"tontine_id"      db:"tontine_id"      gorm:"column:tontine_id;not null;index"`
	LoanID         *int64        `json:"loan_id,omitempty"    db:"loan_id"    gorm:"column:loan_id"`
	PenaltyID      *int64        `json:"penalty_id,omitempty" db:"penalty_id" gorm:"column:penalty_id"`
	Kind           PaymentKind   `json:"kind"            db:"kind"            gorm:"column:kind;not null"`
	Amount         int64         `json:"amount"          db:"amount"          gorm:"column:amount;not null"` // whole RWF, no minor unit
	PhoneNumber    string        `json:"phone_number"    db:"phone_number"    gorm:"column:phone_number;not null"`
	Method         string        `json:"payment_method"  db:"payment_method"  gorm:"column:payment_method;not null"`
	TransactionRef string        `json:"transaction_ref" db:"transaction_ref" gorm:"column:transaction_ref;not null;uniqueIndex"`
	Status         PaymentStatus `json:"status"          db:"status"          gorm:"column:status;not null;default:pending;index"`
	FailureReason  string        `json:"failure_reason,omitempty" db:"failure_reason" gorm:"column:failure_reason"`
	CreatedAt      time.Time     `json:"created_at"      db:"created_at"      gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time     `json:"updated_at"      db:"updated_at"      gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

// PaymentCreateRequest is the input for initiating a payment.
type PaymentCreateRequest struct {
	UserID      int64  `json:"user_id"`
	TontineID   int64  `json:"tontine_id"`
	LoanID      int64  `json:"loan_id,omitempty"`
	PenaltyID   int64  `json:"penalty_id,omitempty"`
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phone_number"`
	Method      string `json:"payment_method"`
}

func (p PaymentCreateRequest) Validate() error {
	if p.UserID == 0 {
		return errors.New("user_id is required")
	}
	if p.TontineID == 0 {
		return errors.New("tontine_id is required")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if p.Method == "" {
		return errors.New("payment_method is required")
	}
	// only mobile money charges a handset
	if p.Method == MethodMobileMoney {
		return ValidatePhone(p.PhoneNumber)
	}
	return nil
}

// ValidatePhone enforces the operator rules: at least 10 digits and a
// supported mobile money prefix. Formatting characters are ignored.
func ValidatePhone(phone string) error {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) < 10 {
		return errors.New("phone_number must contain at least 10 digits")
	}
	for _, prefix := range allowedPhonePrefixes {
		if strings.HasPrefix(digits, prefix) {
			return nil
		}
	}
	return errors.New("phone_number must start with 078, 079, 072 or 073")
}

// PaymentFilter controls List queries.
type PaymentFilter struct {
	UserID    *int64          // equals
	TontineID *int64          // equals
	Statuses  []PaymentStatus // IN (...)
	Kinds     []PaymentKind   // IN (...)
	From      *time.Time
	To        *time.Time
	Limit     int  // default 50
	Offset    int  // for pagination
	Desc      bool // order by created_at
}
