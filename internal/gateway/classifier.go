package gateway

import "strings"

// The live endpoint answers with several shapes depending on deployment:
// sometimes a success flag, sometimes only a status string or a free-text
// message. Acceptance therefore checks every known positive signal instead
// of trusting a single field.

// Response is the decoded body of both process and status calls.
type Response struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

// Transaction ids the gateway uses as placeholders when nothing was
// actually created.
var placeholderTxnIDs = map[string]struct{}{
	"":        {},
	"pending": {},
	"failed":  {},
}

var acceptedPhrases = []string{"successfully", "confirmed", "completed"}

// InitiationAccepted reports whether a process call was taken up by the
// gateway. Accepted means the charge was started, not that money moved.
func InitiationAccepted(r *Response) bool {
	if r == nil {
		return false
	}
	if r.Success {
		return true
	}
	if r.Status == "success" {
		return true
	}
	if _, placeholder := placeholderTxnIDs[r.TransactionID]; !placeholder {
		return true
	}
	msg := strings.ToLower(r.Message)
	for _, phrase := range acceptedPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// RealTransactionID returns the gateway's transaction id, or "" when the
// response only carried a placeholder.
func RealTransactionID(r *Response) string {
	if r == nil {
		return ""
	}
	if _, placeholder := placeholderTxnIDs[r.TransactionID]; placeholder {
		return ""
	}
	return r.TransactionID
}

// StatusOutcome is the verdict of a status call.
type StatusOutcome int

const (
	// StatusPending covers every response that neither confirms nor
	// denies the payment. The caller keeps polling.
	StatusPending StatusOutcome = iota
	StatusConfirmed
	StatusFailed
)

// ClassifyStatus maps a status response onto an outcome. Failure needs an
// explicit "failed" status; anything ambiguous stays pending so a payment
// is never failed on a vague answer.
func ClassifyStatus(r *Response) StatusOutcome {
	if r == nil {
		return StatusPending
	}
	if r.Status == "success" || r.Status == "completed" {
		return StatusConfirmed
	}
	msg := strings.ToLower(r.Message)
	if strings.Contains(msg, "successful") || strings.Contains(msg, "completed") {
		return StatusConfirmed
	}
	if r.Status == "failed" {
		return StatusFailed
	}
	return StatusPending
}
