package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitiationAccepted(t *testing.T) {
	t.Run("success flag", func(t *testing.T) {
		assert.True(t, InitiationAccepted(&Response{Success: true}))
	})

	t.Run("status success", func(t *testing.T) {
		assert.True(t, InitiationAccepted(&Response{Status: "success"}))
	})

	t.Run("real transaction id", func(t *testing.T) {
		assert.True(t, InitiationAccepted(&Response{TransactionID: "LP-20250901-0042"}))
	})

	t.Run("placeholder transaction ids do not count", func(t *testing.T) {
		assert.False(t, InitiationAccepted(&Response{TransactionID: "pending"}))
		assert.False(t, InitiationAccepted(&Response{TransactionID: "failed"}))
		assert.False(t, InitiationAccepted(&Response{TransactionID: ""}))
	})

	t.Run("message phrases", func(t *testing.T) {
		assert.True(t, InitiationAccepted(&Response{Message: "Payment processed Successfully"}))
		assert.True(t, InitiationAccepted(&Response{Message: "transaction CONFIRMED by operator"}))
		assert.True(t, InitiationAccepted(&Response{Message: "charge completed"}))
	})

	t.Run("rejections", func(t *testing.T) {
		assert.False(t, InitiationAccepted(nil))
		assert.False(t, InitiationAccepted(&Response{}))
		assert.False(t, InitiationAccepted(&Response{Status: "error", Message: "insufficient funds"}))
		assert.False(t, InitiationAccepted(&Response{Status: "failed", TransactionID: "failed"}))
	})
}

func TestClassifyStatus(t *testing.T) {
	t.Run("confirmed by status", func(t *testing.T) {
		assert.Equal(t, StatusConfirmed, ClassifyStatus(&Response{Status: "success"}))
		assert.Equal(t, StatusConfirmed, ClassifyStatus(&Response{Status: "completed"}))
	})

	t.Run("confirmed by message", func(t *testing.T) {
		assert.Equal(t, StatusConfirmed, ClassifyStatus(&Response{Message: "Payment was Successful"}))
		assert.Equal(t, StatusConfirmed, ClassifyStatus(&Response{Message: "transfer completed at 10:32"}))
	})

	t.Run("failed needs the explicit status", func(t *testing.T) {
		assert.Equal(t, StatusFailed, ClassifyStatus(&Response{Status: "failed"}))
		// a failure-sounding message alone is not enough
		assert.Equal(t, StatusPending, ClassifyStatus(&Response{Message: "payment failed?"}))
	})

	t.Run("message wins over failed status", func(t *testing.T) {
		// seen in the wild: status says failed while the message says the
		// opposite; the confirming signal is checked first
		assert.Equal(t, StatusConfirmed, ClassifyStatus(&Response{Status: "failed", Message: "payment successful"}))
	})

	t.Run("ambiguous stays pending", func(t *testing.T) {
		assert.Equal(t, StatusPending, ClassifyStatus(nil))
		assert.Equal(t, StatusPending, ClassifyStatus(&Response{}))
		assert.Equal(t, StatusPending, ClassifyStatus(&Response{Status: "processing"}))
		assert.Equal(t, StatusPending, ClassifyStatus(&Response{Message: "awaiting customer approval"}))
	})
}

func TestSanitizeDescription(t *testing.T) {
	assert.Equal(t, "Tontine payment", sanitizeDescription(""))
	assert.Equal(t, "Tontine payment", sanitizeDescription("!!!###"))
	assert.Equal(t, "Round 3 contribution", sanitizeDescription("Round #3 contribution!"))
}
