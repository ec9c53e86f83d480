package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ikimina/tontine-gateway/pkg/redis"
)

// Event names mirror what the web client listens for.
const (
	EventPaymentStatus        = "payment-status"
	EventPaymentStatusUpdated = "payment-status-updated"
	EventLoanPaymentUpdated   = "loan-payment-status-updated"
	EventAutoRefresh          = "auto-refresh"
	EventPenaltyPaid          = "penalty-paid"
)

// GroupChannel is the pub/sub room everyone in a tontine subscribes to.
func GroupChannel(tontineID int64) string {
	return fmt.Sprintf("group-%d", tontineID)
}

// UserChannel is the private room of a single member.
func UserChannel(userID int64) string {
	return fmt.Sprintf("user-%d", userID)
}

// PaymentEvent is the envelope for every payment lifecycle broadcast.
type PaymentEvent struct {
	Event          string    `json:"event"`
	UserID         int64     `json:"userId"`
	Status         string    `json:"status"`
	TransactionRef string    `json:"transactionRef,omitempty"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RefreshEvent tells a client to re-fetch a view.
type RefreshEvent struct {
	Event     string    `json:"event"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier fans payment events out over redis pub/sub. Publishing is
// fire-and-forget from the caller's point of view: a lost event never
// blocks or fails a payment, the ledger stays the source of truth.
type Notifier struct {
	redis redis.RedisAdapter
}

func NewNotifier(r redis.RedisAdapter) *Notifier {
	return &Notifier{redis: r}
}

func (n *Notifier) PublishToGroup(ctx context.Context, tontineID int64, event *PaymentEvent) error {
	return n.publish(ctx, GroupChannel(tontineID), eventWithTimestamp(event))
}

func (n *Notifier) PublishToUser(ctx context.Context, userID int64, event *PaymentEvent) error {
	return n.publish(ctx, UserChannel(userID), eventWithTimestamp(event))
}

// PublishRefresh nudges the user's client to reload the given view.
func (n *Notifier) PublishRefresh(ctx context.Context, userID int64, viewType string) error {
	return n.publish(ctx, UserChannel(userID), &RefreshEvent{
		Event:     EventAutoRefresh,
		Type:      viewType,
		Timestamp: time.Now(),
	})
}

func (n *Notifier) publish(ctx context.Context, channel string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.redis.Publish(ctx, channel, payload)
}

func eventWithTimestamp(event *PaymentEvent) *PaymentEvent {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}
