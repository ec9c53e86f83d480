package services

import (
	"errors"
)

var (
	ErrNotFound              = errors.New("error notfound")
	ErrNoApprovedLoan        = errors.New("no approved loan to repay")
	ErrPenaltyAlreadySettled = errors.New("penalty is already settled")
	ErrExceedsOutstanding    = errors.New("payment amount exceeds remaining loan balance")
)

// ValidationError marks client input problems. Handlers map it to 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RejectedError means the gateway answered but refused to start the
// charge. Nothing was persisted.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "payment was not completed"
	}
	return "payment was not completed: " + e.Message
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
