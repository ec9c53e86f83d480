package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ikimina/tontine-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNotifier(t *testing.T, connName string) *Notifier {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(connName, "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return NewNotifier(adapter)
}

func receiveEvent(t *testing.T, sub *goredis.PubSub) []byte {
	msg, err := sub.ReceiveTimeout(context.Background(), 2*time.Second)
	require.NoError(t, err)
	m, ok := msg.(*goredis.Message)
	require.True(t, ok, "expected a message, got %T", msg)
	return []byte(m.Payload)
}

func TestNotifier_PublishToGroup(t *testing.T) {
	n := setupNotifier(t, "notifier-group-test")
	ctx := context.Background()

	sub := n.redis.Client().Subscribe(ctx, GroupChannel(7))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = n.PublishToGroup(ctx, 7, &PaymentEvent{
		Event:          EventPaymentStatusUpdated,
		UserID:         3,
		Status:         "approved",
		TransactionRef: "abc123",
		Message:        "Payment confirmed",
	})
	require.NoError(t, err)

	var got PaymentEvent
	require.NoError(t, json.Unmarshal(receiveEvent(t, sub), &got))
	assert.Equal(t, EventPaymentStatusUpdated, got.Event)
	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, "approved", got.Status)
	assert.Equal(t, "abc123", got.TransactionRef)
	assert.False(t, got.Timestamp.IsZero())
}

func TestNotifier_PublishToUser(t *testing.T) {
	n := setupNotifier(t, "notifier-user-test")
	ctx := context.Background()

	sub := n.redis.Client().Subscribe(ctx, UserChannel(42))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = n.PublishToUser(ctx, 42, &PaymentEvent{
		Event:  EventPaymentStatus,
		UserID: 42,
		Status: "initiated",
	})
	require.NoError(t, err)

	var got PaymentEvent
	require.NoError(t, json.Unmarshal(receiveEvent(t, sub), &got))
	assert.Equal(t, EventPaymentStatus, got.Event)
	assert.Equal(t, "initiated", got.Status)
}

func TestNotifier_PublishRefresh(t *testing.T) {
	n := setupNotifier(t, "notifier-refresh-test")
	ctx := context.Background()

	sub := n.redis.Client().Subscribe(ctx, UserChannel(9))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, n.PublishRefresh(ctx, 9, "loan-payment"))

	var got RefreshEvent
	require.NoError(t, json.Unmarshal(receiveEvent(t, sub), &got))
	assert.Equal(t, EventAutoRefresh, got.Event)
	assert.Equal(t, "loan-payment", got.Type)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "group-12", GroupChannel(12))
	assert.Equal(t, "user-7", UserChannel(7))
}
