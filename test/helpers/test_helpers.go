package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ikimina/tontine-gateway/internal/repository"
	"github.com/ikimina/tontine-gateway/pkg/pg"
	"github.com/ikimina/tontine-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.PaymentEntity{},
		&repository.PollJobEntity{},
		&repository.LoanEntity{},
		&repository.PenaltyEntity{},
		&repository.NotificationEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per call, the adapter registry is global.
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestLoan(t *testing.T, db *pg.DB, userID, tontineID, amount int64, status string) *repository.LoanEntity {
	ctx := context.Background()
	loan := &repository.LoanEntity{
		UserID:    userID,
		TontineID: tontineID,
		Amount:    amount,
		Status:    status,
	}
	err := db.Write(ctx).Create(loan).Error
	require.NoError(t, err)
	return loan
}

func CreateTestPenalty(t *testing.T, db *pg.DB, userID, tontineID, amount int64) *repository.PenaltyEntity {
	ctx := context.Background()
	penalty := &repository.PenaltyEntity{
		UserID:    userID,
		TontineID: tontineID,
		Amount:    amount,
		Reason:    "missed weekly meeting",
		Status:    "unpaid",
	}
	err := db.Write(ctx).Create(penalty).Error
	require.NoError(t, err)
	return penalty
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
