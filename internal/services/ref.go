package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewTransactionRef returns a 32 character hex reference. Generated before
// the gateway call so the reference exists even when the gateway times out
// mid-flight.
func NewTransactionRef() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewPenaltyRef keeps the historical "PEN-" shape so support staff can
// spot penalty settlements in the ledger at a glance.
func NewPenaltyRef(penaltyID int64) string {
	return fmt.Sprintf("PEN-%d-%d", time.Now().UnixMilli(), penaltyID)
}
